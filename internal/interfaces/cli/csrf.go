package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewCsrfCommand creates the csrf command
func NewCsrfCommand(container *CLIContainer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csrf",
		Short: "Inspect the CSRF token used on state-changing requests",
	}

	cmd.AddCommand(newCsrfTokenCommand(container))
	cmd.AddCommand(newCsrfValidateCommand(container))
	return cmd
}

func newCsrfTokenCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Fetch a CSRF token and print it with its expiry",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := container.Container.Session.Csrf()
			value, err := manager.GetValidToken(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			row(out, "Token", value)
			if t := manager.Token(); t != nil {
				row(out, "Expires", fmt.Sprintf("%s %s", t.ExpiresAt.Local().Format(time.RFC3339),
					dimStyle.Render(fmt.Sprintf("(in %s)", time.Until(t.ExpiresAt).Round(time.Second)))))
			}
			return nil
		},
	}
}

func newCsrfValidateCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Ask the backend to check a freshly obtained CSRF token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := container.Container.Accounts.ValidateCsrf(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("✅ CSRF token accepted"))
			return nil
		},
	}
}
