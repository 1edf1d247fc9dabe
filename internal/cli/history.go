package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/rollcall/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
	RunID string
}

// RunDetail is a journaled run with its task outcomes.
type RunDetail struct {
	Run      store.Run             `json:"run"`
	Outcomes []store.OutcomeRecord `json:"outcomes"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show runs recorded in the audit journal",
		Long: `List recent mutating runs from the audit journal, newest first, or show
every task outcome of one run.

A run still marked "running" was killed before it finished; its outcomes
show exactly which users were attempted.

Exit codes:
  0 - History printed
  2 - No journal configured, or the journal could not be read

Examples:
  rollcall history --audit-db ./rollcall.db
  rollcall history --audit-db ./rollcall.db --limit 5
  rollcall history --audit-db ./rollcall.db --run 0192d6a4-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to show (0 for all)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the outcomes of one run")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	s, err := loadSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	path := journalPath(opts.RootOptions, s.cfg)
	if path == "" {
		return s.formatter.Fail(ExitCommandError, "no audit journal",
			errors.New("set --audit-db or journal.path"))
	}

	st, err := store.Open(path)
	if err != nil {
		return s.formatter.Fail(ExitCommandError, "failed to open audit journal", err)
	}
	defer st.Close()

	ctx := context.Background()
	if opts.RunID != "" {
		return showRun(ctx, s, st, opts.RunID)
	}

	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return s.formatter.Fail(ExitCommandError, "failed to read audit journal", err)
	}
	return s.formatter.Emit("", runs, func(io.Writer) {
		renderRuns(s.printer, runs)
	})
}

func showRun(ctx context.Context, s *session, st *store.Store, runID string) error {
	run, err := st.GetRun(ctx, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return s.formatter.Fail(ExitCommandError, "unknown run", fmt.Errorf("no run %q in journal", runID))
	}
	if err != nil {
		return s.formatter.Fail(ExitCommandError, "failed to read audit journal", err)
	}

	outcomes, err := st.RunOutcomes(ctx, runID)
	if err != nil {
		return s.formatter.Fail(ExitCommandError, "failed to read audit journal", err)
	}

	detail := RunDetail{Run: run, Outcomes: outcomes}
	return s.formatter.Emit(run.ID, detail, func(io.Writer) {
		renderRuns(s.printer, []store.Run{run})
		if len(outcomes) == 0 {
			s.printer.Print("No users were attempted.")
			return
		}
		rows := make([][]string, 0, len(outcomes))
		for _, o := range outcomes {
			rows = append(rows, []string{
				strconv.Itoa(o.Seq), o.Kind, o.Email, o.RecordID,
				s.printer.StatusBadge(o.Status), strconv.Itoa(o.Attempts), o.Reason,
			})
		}
		s.printer.Header("Outcomes")
		s.printer.Table([]string{"Seq", "Kind", "Email", "Record ID", "Status", "Attempts", "Reason"}, rows)
	})
}
