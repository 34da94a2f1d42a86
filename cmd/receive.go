package cmd

import (
	"io"

	"github.com/billm/ipcbench/pkg/bench"
	"github.com/billm/ipcbench/pkg/types"
	"github.com/spf13/cobra"
)

// receiveCmd prints whatever the sender hands over
var receiveCmd = &cobra.Command{
	Use:   "receive <mechanism>",
	Short: "Receive and print lines until the sender exits",
	Long: `Receive waits for lines from the sender over the chosen mechanism
(1 = message passing, 2 = shared memory) and prints each one. When the exit
marker arrives it prints the total time spent inside the transport and removes
the queue or segment and both semaphores.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReceive(cmd.OutOrStdout(), args[0])
	},
}

// NewReceiverCommand returns the standalone "receiver <mechanism>" command
func NewReceiverCommand() *cobra.Command {
	c := &cobra.Command{
		Use:           "receiver <mechanism>",
		Short:         receiveCmd.Short,
		Long:          receiveCmd.Long,
		Version:       DefaultVersion,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          receiveCmd.RunE,
	}
	addPersistentFlags(c)
	return c
}

// runReceive executes the receiver side of the benchmark
func runReceive(out io.Writer, mechanism string) error {
	mode, err := types.ParseMode(mechanism)
	if err != nil {
		return err
	}

	s, err := startSession(types.Receiver, mode)
	if err != nil {
		return err
	}

	mb, err := s.openMailbox(out)
	if err != nil {
		return err
	}
	defer func() {
		if err := mb.Close(); err != nil {
			s.log.Warn("Failed to tear down mailbox", "error", err)
		}
	}()

	stop := s.watchSignals(mb)
	defer stop()

	s.setStatus(types.StatusRunning)
	s.log.Info("Receiving")
	receiver := bench.NewReceiver(mb, s.benchOptions(out))
	result, err := receiver.Run()
	s.finish(receiver.Recorder(), result, err)
	return err
}
