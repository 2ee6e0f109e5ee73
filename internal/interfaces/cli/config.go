package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	configdomain "ytd.app/adminctl/internal/core/domain/config"
)

// NewConfigCommand creates the config command
func NewConfigCommand(container *CLIContainer) *cobra.Command {
	var configCmd = &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
	}

	// Add subcommands
	configCmd.AddCommand(NewConfigShowCommand(container))
	configCmd.AddCommand(NewConfigPathCommand(container))

	return configCmd
}

// NewConfigShowCommand creates the show subcommand
func NewConfigShowCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show every setting with the source it came from",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := container.Container
			printConfig(cmd.OutOrStdout(), c.Config, c.Snapshot)
			return nil
		},
	}
}

func printConfig(w io.Writer, cfg configdomain.Config, snap configdomain.Snapshot) {
	fmt.Fprintln(w, "Current Configuration:")
	fields := []struct {
		name  string
		value interface{}
	}{
		{configdomain.FieldAPIURL, cfg.APIURL},
		{configdomain.FieldUserAgent, cfg.UserAgent},
		{configdomain.FieldTimeout, cfg.Timeout},
		{configdomain.FieldRefreshTimeout, cfg.RefreshTimeout},
		{configdomain.FieldCsrfTimeout, cfg.CsrfTimeout},
		{configdomain.FieldLogLevel, cfg.LogLevel},
		{configdomain.FieldDebug, cfg.Debug},
		{configdomain.FieldStorage, cfg.Storage},
		{configdomain.FieldStoragePath, cfg.StoragePath},
		{configdomain.FieldRedisAddr, cfg.RedisAddr},
		{configdomain.FieldRedisPrefix, cfg.RedisPrefix},
	}
	for _, f := range fields {
		source := "default"
		if e, ok := snap[f.name]; ok {
			source = fmt.Sprintf("%s: %s", e.Source, e.SourcePath)
		}
		fmt.Fprintf(w, "%s %v %s\n", labelStyle.Render(f.name+":"), f.value, dimStyle.Render("("+source+")"))
	}
}

// NewConfigPathCommand creates the path subcommand
func NewConfigPathCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file path: %s\n", container.Container.ConfigPath())
			return nil
		},
	}
}
