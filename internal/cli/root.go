// Package cli implements the jtriage command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/jtriage/internal/config"
	"github.com/Dicklesworthstone/jtriage/internal/output"
)

var (
	cfgFile string
	cfg     *config.Config

	// Global JSON output flag - inherited by all subcommands
	jsonOutput bool

	// Global color control flag - inherited by all subcommands
	noColor bool

	// --log-level override; empty means the configured level
	logLevel string

	// Build information - set via -ldflags "-X .../internal/cli.Version=..."
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
	BuiltBy = "unknown"
)

var rootCmd = newRootCmd()

// newRootCmd builds the command tree. Global flag variables are reset to
// their defaults each time.
func newRootCmd() *cobra.Command {
	cfgFile, cfg = "", nil
	jsonOutput, noColor, logLevel = false, false, ""

	cmd := &cobra.Command{
		Use:   "jtriage",
		Short: "Prepare Jira bug tickets and their logs for AI analysis",
		Long: `jtriage fetches a Jira ticket with its comments and attachments, reduces
large log files to the lines that matter under a token budget, and writes one
document an AI agent can analyze.

Quick Start:
  jtriage config init                        # Create a config file
  jtriage analyze PROJ-123                   # Print the triage document
  jtriage analyze PROJ-123 -o report.md      # Write a Markdown report
  jtriage analyze PROJ-123 --auto-analyze    # Also run the analysis agent
  jtriage reduce server.log --keywords=oom   # Reduce local logs only`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				os.Setenv("JTRIAGE_NO_COLOR", "1")
			}
			if canSkipConfigLoading(cmd) {
				return setupLogging(cmd.ErrOrStderr(), "")
			}

			path := cfgFile
			if path == "" {
				path = config.DefaultPath()
			}
			loaded, err := config.Load(path)
			if err != nil {
				return err
			}
			cfg = loaded
			return setupLogging(cmd.ErrOrStderr(), cfg.Logging.Level)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/jtriage/config.toml)")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (machine-readable)")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(
		newAnalyzeCmd(),
		newReduceCmd(),
		newListCmd(),
		newWatchCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return cmd
}

// canSkipConfigLoading reports commands that never read configuration.
func canSkipConfigLoading(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "completion":
		return true
	}
	return false
}

// setupLogging installs the default slog logger on w. The --log-level flag
// wins over the configured level.
func setupLogging(w io.Writer, configured string) error {
	name := configured
	if logLevel != "" {
		name = logLevel
	}
	if name == "" {
		name = "warn"
	}
	level, err := config.ParseLogLevel(name)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return nil
}

// Execute runs the root command, cancelling on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		// SilenceErrors is set so JSON mode can report errors itself.
		if jsonOutput {
			_ = output.WriteJSON(rootCmd.OutOrStdout(), output.NewError(err.Error()))
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

// IsJSONOutput returns whether JSON output is enabled
func IsJSONOutput() bool {
	return jsonOutput
}

// GetFormatter returns a formatter configured for the current output mode
func GetFormatter(w io.Writer) *output.Formatter {
	opts := []output.FormatterOption{output.WithWriter(w), output.WithJSON(jsonOutput)}
	if noColor {
		opts = append(opts, output.WithColor(false))
	}
	return output.New(opts...)
}

// currentConfig returns the loaded config or defaults.
func currentConfig() *config.Config {
	if cfg == nil {
		return config.Default()
	}
	return cfg
}

// requireCredentials fails with the missing environment variable names.
func requireCredentials(c *config.Config) error {
	missing := config.MissingCredentials(c)
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing Jira credentials: set %s (see 'jtriage config validate')", strings.Join(missing, ", "))
}

// validateConfig joins every validation error into one.
func validateConfig(c *config.Config) error {
	if errs := config.Validate(c); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
