package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	configdomain "ytd.app/adminctl/internal/core/domain/config"
	"ytd.app/adminctl/internal/interfaces/di"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// CLIContainer holds the dependencies shared by CLI commands. Container is
// built once the persistent flags are parsed.
type CLIContainer struct {
	Options   di.Options
	Container *di.Container
}

// NewRootCommand RootCommand represents the base command when called without any subcommands
func NewRootCommand(container *CLIContainer) *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "adminctl",
		Short: "Admin dashboard API client",
		Long: `adminctl talks to the admin dashboard backend through the same resilient
client the dashboard uses: bearer tokens refreshed once per expiry, CSRF tokens
on every state-changing request and typed errors for every failure.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return buildContainer(cmd, container)
		},
	}

	// Set custom version template
	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH))

	// Add persistent flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Config file path (default is $HOME/.adminctl/config.yaml)")
	rootCmd.PersistentFlags().String("api-url", "", "Backend base URL")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Per-request timeout, e.g. 10s")
	rootCmd.PersistentFlags().String("storage", "", "Credential storage: memory, file or redis")

	// Add subcommands
	rootCmd.AddCommand(NewAuthCommand(container))
	rootCmd.AddCommand(NewRequestCommand(container))
	rootCmd.AddCommand(NewBatchCommand(container))
	rootCmd.AddCommand(NewCsrfCommand(container))
	rootCmd.AddCommand(NewConfigCommand(container))

	return rootCmd
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// buildContainer turns explicitly set flags into priority-1 config entries
// and builds the application container from them
func buildContainer(cmd *cobra.Command, container *CLIContainer) error {
	if container.Container != nil {
		return nil
	}

	flags := cmd.Flags()
	opts := container.Options
	overrides := make(map[string]interface{}, len(opts.Overrides))
	for k, v := range opts.Overrides {
		overrides[k] = v
	}
	if flags.Changed("api-url") {
		v, _ := flags.GetString("api-url")
		overrides[configdomain.FieldAPIURL] = v
	}
	if flags.Changed("timeout") {
		v, _ := flags.GetDuration("timeout")
		overrides[configdomain.FieldTimeout] = v
	}
	if flags.Changed("debug") {
		v, _ := flags.GetBool("debug")
		overrides[configdomain.FieldDebug] = v
	}
	if flags.Changed("storage") {
		v, _ := flags.GetString("storage")
		overrides[configdomain.FieldStorage] = v
	}
	if flags.Changed("config") {
		opts.ConfigPath, _ = flags.GetString("config")
	}
	opts.Overrides = overrides
	if opts.Stderr == nil {
		opts.Stderr = cmd.ErrOrStderr()
	}

	c, err := di.NewContainer(cmd.Context(), opts)
	if err != nil {
		return err
	}
	container.Container = c
	return nil
}

// Run executes the command line in args and releases the container afterwards
func Run(ctx context.Context, container *CLIContainer, args []string) error {
	rootCmd := NewRootCommand(container)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	if container.Container != nil {
		container.Container.Shutdown()
	}
	return err
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context, container *CLIContainer) {
	if err := Run(ctx, container, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describeError(err))
		os.Exit(exitCode(err))
	}
}
