package config

// EnvPrefix prefixes every environment override, e.g. IPCBENCH_KEY_PATH
const EnvPrefix = "IPCBENCH"

const (
	// Default IPC settings, shared verbatim by sender and receiver
	DefaultKeyPath           = "/tmp"
	DefaultQueueProjectID    = 0x66
	DefaultShmProjectID      = 0x55
	DefaultTextSize          = 1024
	DefaultExitMarker        = "__GETOUT__"
	DefaultSenderSemaphore   = "/sem_sender_lab"
	DefaultReceiverSemaphore = "/sem_receiver_lab"
	DefaultSemaphoreDir      = "/dev/shm"

	// Default Logging settings. Diagnostics go to stderr so stdout carries
	// only the benchmark transcript.
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultLogOutput = "stderr"
)

// DefaultIPCConfig returns the default IPC configuration
func DefaultIPCConfig() IPCConfig {
	return IPCConfig{
		KeyPath:           DefaultKeyPath,
		QueueProjectID:    DefaultQueueProjectID,
		ShmProjectID:      DefaultShmProjectID,
		TextSize:          DefaultTextSize,
		ExitMarker:        DefaultExitMarker,
		SenderSemaphore:   DefaultSenderSemaphore,
		ReceiverSemaphore: DefaultReceiverSemaphore,
		SemaphoreDir:      DefaultSemaphoreDir,
	}
}

// DefaultLoggingConfig returns the default logging configuration
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  DefaultLogLevel,
		Format: DefaultLogFormat,
		Output: DefaultLogOutput,
	}
}

// DefaultMetricsConfig returns the default metrics configuration
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{}
}
