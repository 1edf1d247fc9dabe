package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/rollcall/internal/importer"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Create users from a JSON or YAML file",
		Long: `Create every user listed in an import file.

The file is a list of {email, password} objects in JSON (.json) or YAML
(.yaml, .yml). A record may name a connection only if it matches the
configured one. The whole file is validated before anything is created;
a file with any problem is rejected with every problem listed.

Without a path, users.import_file is used (default ./data/users.json).

Exit codes:
  0 - Batch completed, or cancelled at the confirmation prompt
  1 - Some users could not be created, or the run was interrupted
  2 - Invalid file, configuration or authentication error

Examples:
  rollcall import
  rollcall import ./people.yaml
  rollcall import ./people.json --yes --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runImport(opts, cmd, path)
		},
	}

	return cmd
}

func runImport(opts *ImportOptions, cmd *cobra.Command, path string) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	return importUsers(ctx, s, path)
}

func importUsers(ctx context.Context, s *session, path string) error {
	if err := s.cfg.RequireConnection(); err != nil {
		return s.formatter.Fail(ExitCommandError, "incomplete configuration", err)
	}
	if path == "" {
		path = s.cfg.Users.ImportFile
	}
	s.logger.Debug("reading import file", "path", path)

	users, err := importer.Load(path)
	if err != nil {
		return s.formatter.Fail(ExitCommandError, "import file rejected", err)
	}

	report, err := s.orch.ImportUsers(ctx, users)
	if err != nil {
		return s.formatter.Fail(exitCodeFor(err), "import failed", err)
	}
	return emitReport(s, report)
}
