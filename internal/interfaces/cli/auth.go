package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"ytd.app/adminctl/internal/infrastructure/auth"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Width(16)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

// NewAuthCommand creates the auth subcommand
func NewAuthCommand(container *CLIContainer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, sign out and inspect the session",
	}

	cmd.AddCommand(newAuthLoginCommand(container))
	cmd.AddCommand(newAuthLogoutCommand(container))
	cmd.AddCommand(newAuthStatusCommand(container))
	cmd.AddCommand(newAuthRefreshCommand(container))

	return cmd
}

func newAuthLoginCommand(container *CLIContainer) *cobra.Command {
	var (
		email         string
		password      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Example: `  adminctl auth login --email admin@example.com --password-stdin < pass.txt
  adminctl auth login --email admin@example.com --password secret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if passwordStdin {
				line, err := readLine(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = line
			}
			if password == "" {
				return errors.New("password is required (use --password or --password-stdin)")
			}

			c := container.Container
			if err := c.Accounts.Login(cmd.Context(), email, password); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			user, err := c.Accounts.CurrentUser(cmd.Context())
			if err != nil {
				fmt.Fprintf(out, "✅ Signed in as %s\n", strings.ToLower(strings.TrimSpace(email)))
				return nil
			}
			fmt.Fprintf(out, "✅ Signed in as %s (%s)\n", user.Email, user.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newAuthLogoutCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := container.Container.Accounts.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "👋 Signed out, local tokens removed")
			return err
		},
	}
}

func newAuthStatusCommand(container *CLIContainer) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := container.Container
			out := cmd.OutOrStdout()
			cred := c.Session.Credentials().Get()

			row(out, "API URL", c.Config.APIURL)
			if cred.IsZero() {
				row(out, "Session", badStyle.Render("not signed in"))
				fmt.Fprintln(out, dimStyle.Render("Run 'adminctl auth login' to sign in"))
				return nil
			}

			if cred.HasAccessToken() {
				row(out, "Access token", describeAccessToken(cred.AccessToken, time.Now()))
			} else {
				row(out, "Access token", badStyle.Render("missing"))
			}
			if cred.HasRefreshToken() {
				row(out, "Refresh token", okStyle.Render("stored"))
			} else {
				row(out, "Refresh token", badStyle.Render("missing"))
			}
			if c.Session.Credentials().Degraded() {
				row(out, "Storage", badStyle.Render("memory only"))
			} else {
				row(out, "Storage", string(c.Config.Storage))
			}

			if !remote {
				return nil
			}
			user, err := c.Accounts.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			row(out, "Account", fmt.Sprintf("%s (%s)", user.Email, user.Role))
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Also ask the backend who is signed in")
	return cmd
}

// describeAccessToken summarizes the unverified claims of token
func describeAccessToken(token string, now time.Time) string {
	claims, err := auth.InspectAccessToken(token)
	if err != nil {
		return okStyle.Render("stored") + dimStyle.Render(" (opaque)")
	}
	subject := ""
	if claims.Subject != "" {
		subject = " for " + claims.Subject
	}
	switch {
	case claims.ExpiresAt.IsZero():
		return okStyle.Render("stored") + subject
	case claims.IsExpired(now):
		return badStyle.Render("expired") + subject + dimStyle.Render(" (refreshed on next request)")
	}
	left := claims.TimeUntilExpiry(now).Round(time.Second)
	return okStyle.Render("valid") + subject + dimStyle.Render(fmt.Sprintf(" (expires in %s)", left))
}

func row(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render(label+":"), value)
}

func newAuthRefreshCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token now",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := container.Container.Session.Refresher().Refresh(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "🔄 Access token refreshed")
			return nil
		},
	}
}
