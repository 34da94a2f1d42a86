package cmd

import (
	"fmt"
	"os"

	"github.com/billm/ipcbench/internal/config"
	"github.com/billm/ipcbench/internal/logger"
	"github.com/billm/ipcbench/pkg/types"
	"github.com/spf13/cobra"
)

// DefaultVersion is the default version string
const DefaultVersion = "0.1.0"

var (
	// CLI flags
	cfgFile         string
	logLevel        string
	logFormat       string
	logOutput       string
	metricsTextfile string

	// Global variables
	rootLog *logger.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ipcbench",
	Short: "ipcbench - System V message queue vs shared memory latency benchmark",
	Long: `ipcbench measures how long it takes to hand text lines from one process
to another over a System V message queue or a System V shared memory segment.

Run "ipcbench receive <mechanism>" and "ipcbench send <mechanism> <file>" in
two terminals, in either order. Mechanism 1 is message passing, 2 is shared
memory. A pair of named semaphores makes the two processes take turns, and
only the transport call itself is timed.`,
	Version:       DefaultVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ExecuteCommand(rootCmd)
}

// ExecuteCommand runs c and exits 1 if it fails
func ExecuteCommand(c *cobra.Command) {
	err := c.Execute()
	if err != nil {
		if rootLog != nil {
			rootLog.Error("Command execution failed", "error", err, "code", types.GetErrorCode(err))
		} else {
			fmt.Fprintln(os.Stderr, "Command execution failed:", err)
		}
	}
	closeLogger()
	if err != nil {
		os.Exit(1)
	}
}

// addPersistentFlags registers the flags every entry point shares
func addPersistentFlags(c *cobra.Command) {
	flags := c.PersistentFlags()

	// Config file flag
	flags.StringVar(&cfgFile, "config", "",
		"Config file path (default: built-in defaults plus IPCBENCH_* environment)")

	// Logging flags
	flags.StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error (default: from config or env)")
	flags.StringVar(&logFormat, "log-format", "",
		"Log format: json, text (default: from config or env)")
	flags.StringVar(&logOutput, "log-output", "",
		"Log output: stdout, stderr, or file path (default: stderr)")

	// Metrics flags
	flags.StringVar(&metricsTextfile, "metrics-textfile", "",
		"Write Prometheus metrics to this file when the run ends")
}

// loadConfig loads the configuration from file and environment, then applies CLI overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	cfg.ApplyOverrides(config.OverrideOptions{
		LogLevel:        logLevel,
		LogFormat:       logFormat,
		LogOutput:       logOutput,
		MetricsTextfile: metricsTextfile,
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initLogger initializes the global logger from the loaded config
func initLogger(cfg config.LoggingConfig) error {
	log, err := logger.New(cfg)
	if err != nil {
		return err
	}

	rootLog = log
	return nil
}

// closeLogger flushes and closes a file-backed root logger
func closeLogger() {
	if rootLog != nil {
		rootLog.Close()
	}
}

func init() {
	addPersistentFlags(rootCmd)

	rootCmd.AddCommand(sendCmd, receiveCmd, cleanupCmd)
}
