package main

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/patric-chuzhbe/scratchpad/internal/client/reconciler"
)

func newRegisterCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "register <username> <pin>",
		Short: "Create an account and upload the local tabs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.session.Register(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return env.settle()
		},
	}
}

func newLoginCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "login <username> <pin>",
		Short: "Sign in and load the account's tabs",
		Long: "Sign in and load the account's tabs. When the account already has tabs\n" +
			"they replace the local ones; otherwise the local tabs are uploaded.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.session.Login(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return env.settle()
		},
	}
}

func newLogoutCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the signed-in account; local tabs are kept",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			env.session.Logout()
		},
	}
}

func newSyncCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Load the account's tabs from the server",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := env.session.SyncNow(); err != nil {
				return err
			}
			return env.settle()
		},
	}
}

func newTabsCmd(env *cliEnv) *cobra.Command {
	tabs := &cobra.Command{
		Use:   "tabs",
		Short: "Inspect and edit local tabs",
	}

	tabs.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List tabs; the selected one is marked with *",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				selected := env.session.Selected()
				for _, tab := range env.session.Tabs() {
					marker := " "
					if tab.ID == selected {
						marker = "*"
					}
					fmt.Fprintf(
						cmd.OutOrStdout(),
						"%s %s\t%s\t%d chars\n",
						marker, tab.ID, tab.Name, utf8.RuneCountInString(tab.Content),
					)
				}
			},
		},
		&cobra.Command{
			Use:   "new",
			Short: "Add a tab and select it",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				tabID, err := env.session.AddTab()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), tabID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "select <id>",
			Short: "Select a tab",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return env.session.Select(args[0])
			},
		},
		&cobra.Command{
			Use:   "show [id]",
			Short: "Print the content of a tab (the selected one by default)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				tabID := env.session.Selected()
				if len(args) == 1 {
					tabID = args[0]
				}
				tab, ok := env.session.Tab(tabID)
				if !ok {
					return fmt.Errorf("unknown tab %q", tabID)
				}
				fmt.Fprint(cmd.OutOrStdout(), tab.Content)
				return nil
			},
		},
		&cobra.Command{
			Use:   "write <id> <text|->",
			Short: "Replace the content of a tab; \"-\" reads it from stdin",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				content := args[1]
				if content == "-" {
					data, err := io.ReadAll(cmd.InOrStdin())
					if err != nil {
						return err
					}
					content = string(data)
				}
				return env.session.EditContent(args[0], content)
			},
		},
		&cobra.Command{
			Use:   "rename <id> <name>",
			Short: "Rename a tab",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(_ *cobra.Command, args []string) error {
				return env.session.Rename(args[0], strings.Join(args[1:], " "))
			},
		},
		&cobra.Command{
			Use:   "close <id>",
			Short: "Remove a tab; the last tab cannot be removed",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				if err := env.session.RemoveTab(args[0]); err != nil {
					return err
				}
				return env.settle()
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every tab and start over with one empty tab",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				if err := env.session.ClearAll(); err != nil {
					return err
				}
				return env.settle()
			},
		},
	)

	return tabs
}

func newThemeCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "theme",
		Short: "Toggle between the dark and the light theme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dark, err := env.session.ToggleTheme()
			if err != nil {
				return err
			}
			theme := "light"
			if dark {
				theme = "dark"
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme)
			return nil
		},
	}
}

func newWatchCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the session open, pushing periodically, until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, ok := env.session.Account()
			if !ok {
				return reconciler.ErrNotSignedIn
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "syncing as %s every %s, press Ctrl+C to stop\n", account.Username, env.cfg.SyncInterval)
			<-cmd.Context().Done()
			return nil
		},
	}
}

func newHealthCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the sync server is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			health, err := env.client.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", health.Status, health.Timestamp.Format(time.RFC3339))
			return nil
		},
	}
}
