package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/billm/ipcbench/pkg/types"
	"github.com/kelseyhightower/envconfig"
)

// Config represents the complete configuration for a benchmark process
type Config struct {
	IPC     IPCConfig     `json:"ipc" yaml:"ipc"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// IPCConfig contains the rendezvous settings both processes must agree on
type IPCConfig struct {
	KeyPath           string `json:"key_path" yaml:"key_path" split_words:"true"`                     // path hashed into SysV keys
	QueueProjectID    int    `json:"queue_project_id" yaml:"queue_project_id" split_words:"true"`     // ftok project id for the message queue
	ShmProjectID      int    `json:"shm_project_id" yaml:"shm_project_id" split_words:"true"`         // ftok project id for the shared region
	TextSize          int    `json:"text_size" yaml:"text_size" split_words:"true"`                   // slot capacity in bytes, terminator included
	ExitMarker        string `json:"exit_marker" yaml:"exit_marker" split_words:"true"`               // end-of-stream sentinel
	SenderSemaphore   string `json:"sender_semaphore" yaml:"sender_semaphore" split_words:"true"`     // name of the sender's turn
	ReceiverSemaphore string `json:"receiver_semaphore" yaml:"receiver_semaphore" split_words:"true"` // name of the receiver's turn
	SemaphoreDir      string `json:"semaphore_dir" yaml:"semaphore_dir" split_words:"true"`           // where named semaphores live
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
	Output string `json:"output" yaml:"output"` // stdout, stderr, file path
}

// MetricsConfig contains metrics export configuration
type MetricsConfig struct {
	Textfile string `json:"textfile" yaml:"textfile"` // Prometheus textfile written at exit, empty disables
}

// Default returns a configuration populated with defaults
func Default() *Config {
	return &Config{
		IPC:     DefaultIPCConfig(),
		Logging: DefaultLoggingConfig(),
		Metrics: DefaultMetricsConfig(),
	}
}

// applyDefaults fills in zero-valued config fields with their defaults.
// It runs after YAML loading so partial files still produce a usable config.
func applyDefaults(cfg *Config) {
	defaultIPC := DefaultIPCConfig()
	if cfg.IPC.KeyPath == "" {
		cfg.IPC.KeyPath = defaultIPC.KeyPath
	}
	if cfg.IPC.QueueProjectID == 0 {
		cfg.IPC.QueueProjectID = defaultIPC.QueueProjectID
	}
	if cfg.IPC.ShmProjectID == 0 {
		cfg.IPC.ShmProjectID = defaultIPC.ShmProjectID
	}
	if cfg.IPC.TextSize == 0 {
		cfg.IPC.TextSize = defaultIPC.TextSize
	}
	if cfg.IPC.ExitMarker == "" {
		cfg.IPC.ExitMarker = defaultIPC.ExitMarker
	}
	if cfg.IPC.SenderSemaphore == "" {
		cfg.IPC.SenderSemaphore = defaultIPC.SenderSemaphore
	}
	if cfg.IPC.ReceiverSemaphore == "" {
		cfg.IPC.ReceiverSemaphore = defaultIPC.ReceiverSemaphore
	}
	if cfg.IPC.SemaphoreDir == "" {
		cfg.IPC.SemaphoreDir = defaultIPC.SemaphoreDir
	}

	defaultLogging := DefaultLoggingConfig()
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLogging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaultLogging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = defaultLogging.Output
	}
}

// applyEnvOverrides overrides config values from IPCBENCH_* environment variables.
// Unset variables leave the current value alone.
func applyEnvOverrides(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, &cfg.IPC); err != nil {
		return types.WrapError(types.ErrCodeInvalidArgument, "invalid IPC environment override", err)
	}
	if err := envconfig.Process(EnvPrefix+"_LOG", &cfg.Logging); err != nil {
		return types.WrapError(types.ErrCodeInvalidArgument, "invalid logging environment override", err)
	}
	if err := envconfig.Process(EnvPrefix+"_METRICS", &cfg.Metrics); err != nil {
		return types.WrapError(types.ErrCodeInvalidArgument, "invalid metrics environment override", err)
	}
	return nil
}

// Load builds a Config from defaults, the optional YAML file at path and the
// environment, in that order, and validates the result
func Load(path string) (*Config, error) {
	var cfg *Config
	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = Default()
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for validity
func (c *Config) Validate() error {
	if err := c.IPC.Validate(); err != nil {
		return err
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level))
	}
	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid log format: %s (must be json or text)", c.Logging.Format))
	}

	return nil
}

// Validate checks the IPC section on its own
func (c IPCConfig) Validate() error {
	if c.KeyPath == "" {
		return types.NewError(types.ErrCodeInvalidArgument, "ipc key path cannot be empty")
	}
	if c.QueueProjectID&0xff == 0 || c.ShmProjectID&0xff == 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "ipc project ids must have a nonzero low byte")
	}
	if c.QueueProjectID&0xff == c.ShmProjectID&0xff {
		return types.NewError(types.ErrCodeInvalidArgument, "queue and shared memory project ids must differ")
	}
	if c.TextSize < 2 {
		return types.NewError(types.ErrCodeInvalidArgument, "ipc text size must be at least 2")
	}
	if c.ExitMarker == "" {
		return types.NewError(types.ErrCodeInvalidArgument, "exit marker cannot be empty")
	}
	if len(c.ExitMarker) > c.TextSize-1 {
		return types.NewError(types.ErrCodeInvalidArgument, "exit marker does not fit in the text slot")
	}
	if err := validateSemaphoreName(c.SenderSemaphore); err != nil {
		return err
	}
	if err := validateSemaphoreName(c.ReceiverSemaphore); err != nil {
		return err
	}
	if c.SenderSemaphore == c.ReceiverSemaphore {
		return types.NewError(types.ErrCodeInvalidArgument, "sender and receiver semaphores must have different names")
	}
	if c.SemaphoreDir == "" {
		return types.NewError(types.ErrCodeInvalidArgument, "semaphore directory cannot be empty")
	}
	return nil
}

// validateSemaphoreName enforces the POSIX shape "/name" with no other slash
func validateSemaphoreName(name string) error {
	if !strings.HasPrefix(name, "/") || len(name) < 2 || strings.Contains(name[1:], "/") {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid semaphore name %q (must look like /name)", name))
	}
	return nil
}

// ApplyOverrides applies non-empty CLI overrides on top of the loaded config
func (c *Config) ApplyOverrides(opts OverrideOptions) {
	if opts.LogLevel != "" {
		c.Logging.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		c.Logging.Format = opts.LogFormat
	}
	if opts.LogOutput != "" {
		c.Logging.Output = opts.LogOutput
	}
	if opts.MetricsTextfile != "" {
		c.Metrics.Textfile = opts.MetricsTextfile
	}
}

// OverrideOptions carries CLI flag values
type OverrideOptions struct {
	LogLevel        string
	LogFormat       string
	LogOutput       string
	MetricsTextfile string
}

// ExpandedKeyPath returns KeyPath with a leading ~ resolved
func (c IPCConfig) ExpandedKeyPath() string {
	if strings.HasPrefix(c.KeyPath, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + c.KeyPath[1:]
		}
	}
	return c.KeyPath
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{IPC: %s, Logging: %s, Metrics: %s}",
		c.IPC.String(), c.Logging.String(), c.Metrics.String())
}

func (c IPCConfig) String() string {
	return fmt.Sprintf("IPCConfig{KeyPath: %s, QueueProjectID: %#x, ShmProjectID: %#x, TextSize: %d, Semaphores: %s %s}",
		c.KeyPath, c.QueueProjectID, c.ShmProjectID, c.TextSize, c.SenderSemaphore, c.ReceiverSemaphore)
}

func (c LoggingConfig) String() string {
	return fmt.Sprintf("LoggingConfig{Level: %s, Format: %s, Output: %s}",
		c.Level, c.Format, c.Output)
}

func (c MetricsConfig) String() string {
	return fmt.Sprintf("MetricsConfig{Textfile: %s}", c.Textfile)
}
