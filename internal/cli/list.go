package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/rollcall/internal/config"
	"github.com/roach88/rollcall/internal/directory"
	"github.com/roach88/rollcall/internal/engine"
)

// Roster selections shared by list and delete.
const (
	SelectAll      = "all"
	SelectNoLogin  = "no-login"
	SelectInactive = "inactive"
)

var selections = []string{SelectAll, SelectNoLogin, SelectInactive}

// cutoffFlags override the configured inactivity cutoff.
type cutoffFlags struct {
	Months int
	Days   int
}

func (f *cutoffFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.Months, "months", 0, "inactivity cutoff in months (overrides INACTIVE)")
	cmd.Flags().IntVar(&f.Days, "days", 0, "inactivity cutoff in days (overrides INACTIVE_DAYS)")
}

// apply returns a setup step that copies flags the user actually set.
func (f *cutoffFlags) apply(cmd *cobra.Command) sessionSetup {
	return func(cfg *config.Config) {
		if cmd.Flags().Changed("months") {
			cfg.Inactive.Months = f.Months
		}
		if cmd.Flags().Changed("days") {
			cfg.Inactive.Days = f.Days
		}
	}
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	cutoffFlags
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list [all|no-login|inactive]",
		Short: "List users in the directory",
		Long: `Fetch the full roster and list every user, the users that never
logged in, or the users whose last login is older than the cutoff.

The inactivity cutoff is INACTIVE months plus INACTIVE_DAYS days before now;
--months and --days override it. Users that never logged in count as
inactive.

Exit codes:
  0 - Listing printed (including "no users found")
  2 - Configuration, authentication or fetch error

Examples:
  rollcall list
  rollcall list no-login
  rollcall list inactive --months 6
  rollcall list inactive --days 45 --format json`,
		Args:          cobra.MaximumNArgs(1),
		ValidArgs:     selections,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			which, err := selection(args)
			if err != nil {
				return err
			}
			return runList(opts, cmd, which)
		},
	}

	opts.register(cmd)

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command, which string) error {
	s, err := openSession(opts.RootOptions, cmd, opts.apply(cmd))
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	return showListing(ctx, s, which)
}

func showListing(ctx context.Context, s *session, which string) error {
	listing, err := listFor(ctx, s.orch, which)
	if err != nil {
		return s.formatter.Fail(exitCodeFor(err), "list failed", err)
	}

	return s.formatter.Emit("", listing, func(io.Writer) {
		renderListing(s.printer, listing)
	})
}

func listFor(ctx context.Context, orch *engine.Orchestrator, which string) (*engine.Listing, error) {
	switch which {
	case SelectNoLogin:
		return orch.ListNoLogin(ctx)
	case SelectInactive:
		return orch.ListInactive(ctx)
	default:
		return orch.ListAll(ctx)
	}
}

// selection reads the optional roster selection argument.
func selection(args []string) (string, error) {
	if len(args) == 0 {
		return SelectAll, nil
	}
	if !slices.Contains(selections, args[0]) {
		return "", NewExitError(ExitCommandError,
			fmt.Sprintf("unknown selection %q: must be one of %v", args[0], selections))
	}
	return args[0], nil
}

// exitCodeFor maps an operation error to an exit code. Errors raised
// before any mutation (configuration, credentials, fetch, rejected input)
// are command errors. An interrupt or anything else that stopped a run
// midway is a failure.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return ExitFailure
	case directory.IsConfigError(err),
		directory.IsAuthError(err),
		directory.IsFetchError(err),
		directory.IsValidationError(err):
		return ExitCommandError
	default:
		return ExitFailure
	}
}
