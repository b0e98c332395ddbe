package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"dwbuild/internal/config"
	"dwbuild/internal/observability"
	"dwbuild/internal/ui"
)

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	configFile string
	envFile    string
	logLevel   string
	logFormat  string
	noColor    bool
}

// rootCmd is the command tree run by Execute. Tests build their own with
// NewRootCmd so flag state does not leak between runs.
var rootCmd = NewRootCmd()

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "dwbuild",
		Short: "Build a star-schema warehouse from raw CRM extracts",
		Long: `dwbuild merges customer, employee and order extracts from a relational
database export and a spreadsheet export into conformed dimensions, a date
dimension and an order fact table, published as CSV files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.Output = cmd.OutOrStdout()
			if opts.noColor {
				ui.SetColor(false)
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file (default is ./dwbuild.yaml or ~/.dwbuild/dwbuild.yaml)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format (console, json)")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		newBuildCmd(opts),
		newInspectCmd(opts),
		newInitCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the CLI and exits non-zero on failure
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.ShowError(err)
		stop()
		os.Exit(1)
	}
}

// loadConfig resolves configuration for cmd. keys maps config keys to the
// command's own flag names.
func (o *globalOptions) loadConfig(cmd *cobra.Command, keys map[string]string) (*config.Config, error) {
	bound := map[string]*pflag.Flag{
		"logging.level":  cmd.Flags().Lookup("log-level"),
		"logging.format": cmd.Flags().Lookup("log-format"),
	}
	for key, name := range keys {
		bound[key] = cmd.Flags().Lookup(name)
	}

	return config.Load(config.LoadOptions{
		ConfigFile: o.configFile,
		EnvFile:    o.envFile,
		Flags:      bound,
	})
}

func newLogger(cfg *config.Config) *observability.Logger {
	return observability.NewLogger(observability.LoggerConfig{
		Level:   observability.LogLevelFromString(cfg.Logging.Level),
		Output:  os.Stderr,
		Service: "dwbuild",
		Version: Version,
		Console: cfg.Logging.Format == "console",
	})
}
