package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/rollcall/internal/engine"
)

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	cutoffFlags
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <all|no-login|inactive>",
		Short: "Delete users from the directory",
		Long: `Fetch the full roster, select users and delete them after confirmation.

"all" deletes every user except the last one in the roster, so the
directory is never left empty. Deletions run one at a time, paced to the
service's rate limit; throttled calls are retried up to executor.max_attempts
times. A failure on one user never stops the rest of the batch.

Exit codes:
  0 - Batch completed, or cancelled at the confirmation prompt
  1 - Some users could not be deleted, or the run was interrupted
  2 - Configuration, authentication or fetch error

Examples:
  rollcall delete no-login
  rollcall delete inactive --months 12
  rollcall delete all --audit-db ./rollcall.db
  rollcall delete no-login --yes --format json`,
		Args:          cobra.ExactArgs(1),
		ValidArgs:     selections,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			which, err := selection(args)
			if err != nil {
				return err
			}
			return runDelete(opts, cmd, which)
		},
	}

	opts.register(cmd)

	return cmd
}

func runDelete(opts *DeleteOptions, cmd *cobra.Command, which string) error {
	s, err := openSession(opts.RootOptions, cmd, opts.apply(cmd))
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	return deleteUsers(ctx, s, which)
}

func deleteUsers(ctx context.Context, s *session, which string) error {
	report, err := deleteFor(ctx, s.orch, which)
	if err != nil {
		return s.formatter.Fail(exitCodeFor(err), "delete failed", err)
	}
	return emitReport(s, report)
}

func deleteFor(ctx context.Context, orch *engine.Orchestrator, which string) (*engine.Report, error) {
	switch which {
	case SelectNoLogin:
		return orch.DeleteNoLogin(ctx)
	case SelectInactive:
		return orch.DeleteInactive(ctx)
	default:
		return orch.DeleteAll(ctx)
	}
}

// emitReport writes a run report and turns its terminal state into an
// exit code.
func emitReport(s *session, report *engine.Report) error {
	if err := s.formatter.Emit(report.RunID, report, func(io.Writer) {
		renderReport(s.printer, report)
	}); err != nil {
		return err
	}
	return reportExit(report)
}

// reportExit is nil for completed and aborted runs without per-item
// failures. The report has already been printed, so the error is marked
// reported.
func reportExit(r *engine.Report) error {
	var exitErr *ExitError
	switch {
	case r.Status == engine.RunInterrupted:
		exitErr = NewExitError(ExitFailure,
			fmt.Sprintf("%s interrupted after %d of %d users", r.Operation, r.Attempted, r.Matched))
	case r.HasFailures():
		exitErr = NewExitError(ExitFailure,
			fmt.Sprintf("%s: %d of %d users did not succeed", r.Operation, r.Failed+r.Abandoned, r.Attempted))
	default:
		return nil
	}
	exitErr.Reported = true
	return exitErr
}
