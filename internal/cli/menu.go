package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

// MenuOptions holds flags for the menu command.
type MenuOptions struct {
	*RootOptions
	cutoffFlags
}

// menuAction runs one leaf of the menu.
type menuAction func(ctx context.Context, s *session) error

// menuEntry is a leaf action or a submenu. An entry with neither is Back,
// or Exit at the top level.
type menuEntry struct {
	Label  string
	Action menuAction
	Title  string
	Sub    []menuEntry
}

const mainTitle = "What do you want to do?"

// mainMenu is the interactive dispatch table.
var mainMenu = []menuEntry{
	{Label: "List Users", Title: mainTitle, Sub: []menuEntry{
		{Label: "List All Users", Action: listAction(SelectAll)},
		{Label: "List Users with No Logins", Action: listAction(SelectNoLogin)},
		{Label: "List Inactive Accounts", Action: listAction(SelectInactive)},
		{Label: "Back"},
	}},
	{Label: "Delete Users", Title: "What do you want to delete?", Sub: []menuEntry{
		{Label: "Delete All Users", Action: deleteAction(SelectAll)},
		{Label: "Delete Users with No Logins", Action: deleteAction(SelectNoLogin)},
		{Label: "Delete Inactive Users", Action: deleteAction(SelectInactive)},
		{Label: "Back"},
	}},
	{Label: "Add Users", Title: mainTitle, Sub: []menuEntry{
		{Label: "Add User", Action: func(ctx context.Context, s *session) error {
			return addUser(ctx, s, "", "")
		}},
		{Label: "Import Users", Action: func(ctx context.Context, s *session) error {
			return importUsers(ctx, s, "")
		}},
		{Label: "Back"},
	}},
	{Label: "Exit"},
}

func listAction(which string) menuAction {
	return func(ctx context.Context, s *session) error {
		return showListing(ctx, s, which)
	}
}

func deleteAction(which string) menuAction {
	return func(ctx context.Context, s *session) error {
		return deleteUsers(ctx, s, which)
	}
}

// NewMenuCommand creates the menu command.
func NewMenuCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MenuOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Interactive menu",
		Long: `Browse the list, delete and add operations from a menu.

Choose an entry by number or by name. Every operation returns to the main
menu when it finishes; errors are shown and the menu continues. Choose
Exit, or close standard input, to leave.

Example:
  rollcall menu`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(opts, cmd)
		},
	}

	opts.register(cmd)

	return cmd
}

func runMenu(opts *MenuOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd, opts.apply(cmd))
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	err = mainLoop(ctx, s)
	if errors.Is(err, errNoInput) {
		return nil
	}
	return err
}

// mainLoop shows the main menu until Exit is chosen. Every submenu and
// every action returns here.
func mainLoop(ctx context.Context, s *session) error {
	for ctx.Err() == nil {
		i, err := s.console.Choose(mainTitle, labels(mainMenu))
		if err != nil {
			return err
		}
		entry := mainMenu[i]
		if entry.Sub == nil {
			s.printer.Print("Exiting...")
			return nil
		}
		if err := submenu(ctx, s, entry); err != nil {
			return err
		}
	}
	return nil
}

// submenu asks once and runs the chosen action. Back runs nothing. Action
// errors were already reported and do not leave the menu.
func submenu(ctx context.Context, s *session, menu menuEntry) error {
	i, err := s.console.Choose(menu.Title, labels(menu.Sub))
	if err != nil {
		return err
	}
	entry := menu.Sub[i]
	if entry.Action == nil {
		return nil
	}
	if err := entry.Action(ctx, s); err != nil {
		s.logger.Debug("menu action ended with error", "entry", entry.Label, "error", err)
	}
	return nil
}

func labels(entries []menuEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Label
	}
	return out
}
