package cmd

import (
	"github.com/billm/ipcbench/pkg/mailbox"
	"github.com/spf13/cobra"
)

// cleanupCmd removes objects left behind by an interrupted run
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove leftover queues, segments and semaphores",
	Long: `Cleanup removes the message queue, the shared memory segment and both
named semaphores for the configured keys. Run it after a crashed or killed
benchmark; a stale semaphore count would otherwise break the next run's turn
order.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCleanup()
	},
}

// runCleanup purges every ipc object the configuration names
func runCleanup() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := initLogger(cfg.Logging); err != nil {
		return err
	}

	log := rootLog.With("component", "cleanup")
	if err := mailbox.Purge(cfg.IPC); err != nil {
		log.Error("Cleanup incomplete", "error", err)
		return err
	}

	log.Info("Removed leftover ipc objects",
		"key_path", cfg.IPC.KeyPath,
		"semaphore_dir", cfg.IPC.SemaphoreDir)
	return nil
}
