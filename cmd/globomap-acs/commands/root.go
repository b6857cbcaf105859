package commands

import (
	"os"

	"github.com/spf13/cobra"

	driverrors "github.com/globomap/acs-driver/internal/errors"
	"github.com/globomap/acs-driver/internal/logger"
	"github.com/globomap/acs-driver/pkg/config"
)

var (
	cfgFile     string
	environment string
	logLevel    string
	logFormat   string
	noColor     bool

	cfg *config.Config
	log logger.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "globomap-acs",
	Short: "CloudStack driver for the globomap graph loader",
	Long: `globomap-acs keeps the globomap graph in sync with a CloudStack region.

It consumes virtual machine and zone events from the CloudStack event bus,
looks up the current state of each resource through the CloudStack API and
publishes idempotent graph documents to the globomap loader. A periodic
sweep republishes every virtual machine and clears what no longer exists.

EXAMPLES:
  globomap-acs bind                       # Bind the event queue to the CloudStack exchange
  globomap-acs consume                    # Drain the queue once
  globomap-acs consume --follow           # Keep draining until interrupted
  globomap-acs sweep --env dc1            # Full reconciliation of region dc1`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return initConfig(cmd)
	},
}

// Execute adds all child commands to the root command and runs it. Errors
// are displayed with their remediation and mapped to an exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		driverrors.DisplayError(os.Stderr, err, noColor)
		os.Exit(driverrors.GetExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.globomap-acs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&environment, "env", "", "CloudStack region to serve (overrides ACS_ENVIRONMENT)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newConsumeCommand())
	rootCmd.AddCommand(newSweepCommand())
	rootCmd.AddCommand(newBindCommand())
	rootCmd.AddCommand(newVersionCommand())
}

// initConfig loads the configuration and builds the logger. Flags win over
// the file and the environment.
func initConfig(cmd *cobra.Command) error {
	loaded, err := config.Load(config.Options{ConfigFile: cfgFile, Environment: environment})
	if err != nil {
		return driverrors.Wrap(err, driverrors.ErrorTypeConfiguration, driverrors.ComponentDriver,
			"failed to load configuration")
	}

	if cmd.Flags().Changed("log-level") {
		loaded.Logging.Level = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		loaded.Logging.Format = logFormat
	}

	cfg = loaded
	log = logger.NewLogrus(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}).WithField("environment", cfg.Environment)
	return nil
}
