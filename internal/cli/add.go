package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/rollcall/internal/engine"
	"github.com/roach88/rollcall/internal/importer"
)

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	Email        string
	PasswordFile string
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a single user",
		Long: `Create one user in the configured connection.

The password is read from --password-file, from the terminal with echo
disabled, or from the next line of standard input. When the service
rejects a password as too weak you are asked for another one; the email
is kept.

Exit codes:
  0 - User created
  1 - The service rejected the user, or the password could not be read
  2 - Configuration, authentication or invalid email

Examples:
  rollcall add --email ada@example.com
  rollcall add --email ada@example.com --password-file ./secret.txt`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "email of the user (prompted when omitted)")
	cmd.Flags().StringVar(&opts.PasswordFile, "password-file", "", "read the password from this file")

	return cmd
}

func runAdd(opts *AddOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	return addUser(ctx, s, opts.Email, opts.PasswordFile)
}

// addUser asks for a missing email, validates it and runs the creation.
func addUser(ctx context.Context, s *session, email, passwordFile string) error {
	if err := s.cfg.RequireConnection(); err != nil {
		return s.formatter.Fail(ExitCommandError, "incomplete configuration", err)
	}
	if email == "" {
		answer, err := s.console.Ask("Enter the email of the user:")
		if err != nil {
			return s.formatter.Fail(ExitCommandError, "no email given", err)
		}
		email = answer
	}

	email, err := importer.NewValidator().Email(email)
	if err != nil {
		return s.formatter.Fail(ExitCommandError, "invalid email", err)
	}

	src := &passwordPrompt{console: s.console, file: passwordFile}
	report, err := s.orch.AddUser(ctx, email, src)
	if err != nil {
		return s.formatter.Fail(exitCodeFor(err), "add failed", err)
	}
	return emitReport(s, report)
}

var _ engine.PasswordSource = (*passwordPrompt)(nil)
