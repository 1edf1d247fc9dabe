package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/rollcall/internal/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	Yes        bool   // approve every confirmation without asking
	AuditDB    string // journal path; overrides journal.path
	Color      string // "auto" | "always" | "never"

	// Clock overrides the wall clock (for testing). If nil, SystemClock.
	Clock engine.Clock

	// RunIDs overrides the run id generator (for testing). If nil, UUIDv7.
	RunIDs engine.RunIDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the rollcall CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOptions(&RootOptions{})
}

// NewRootCommandWithOptions creates the root command around opts, letting
// callers preset the test hooks.
func NewRootCommandWithOptions(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollcall",
		Short: "rollcall - directory roster maintenance",
		Long: `Bulk maintenance for an identity directory's user roster.

rollcall lists users, deletes users that never logged in or have been
inactive past a cutoff, and creates users one at a time or from an import
file. Every mutating batch asks for confirmation first, is paced to stay
under the service's rate limits, and ends with a report of what happened
to each record.

Configuration comes from .rollcall.yaml, ROLLCALL_* variables, or the
DOMAIN, CLIENT_ID, SECRET, CONNECTION and INACTIVE variables (a .env file
in the working directory is read first).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateRootOptions(opts)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default is .rollcall.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Yes, "yes", "y", false, "approve confirmations without prompting")
	cmd.PersistentFlags().StringVar(&opts.AuditDB, "audit-db", "", "path to SQLite audit journal")
	cmd.PersistentFlags().StringVar(&opts.Color, "color", "auto", "color output (auto|always|never)")

	// Add subcommands
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewMenuCommand(opts))

	return cmd
}

func validateRootOptions(opts *RootOptions) error {
	if !isValidFormat(opts.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
	}
	if opts.Color == "" {
		opts.Color = "auto"
	}
	if _, err := ParseColorMode(opts.Color); err != nil {
		return WrapExitError(ExitCommandError, "invalid --color", err)
	}
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
