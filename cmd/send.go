package cmd

import (
	"io"
	"os"

	"github.com/billm/ipcbench/pkg/bench"
	"github.com/billm/ipcbench/pkg/types"
	"github.com/spf13/cobra"
)

// sendCmd streams a file to a running or future receiver
var sendCmd = &cobra.Command{
	Use:   "send <mechanism> <input-file>",
	Short: "Send every line of a file to the receiver",
	Long: `Send reads the input file line by line and hands each line to the receiver
over the chosen mechanism (1 = message passing, 2 = shared memory), then sends
the exit marker and prints the total time spent inside the transport.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSend(cmd.OutOrStdout(), args[0], args[1])
	},
}

// NewSenderCommand returns the standalone "sender <mechanism> <input-file>" command
func NewSenderCommand() *cobra.Command {
	c := &cobra.Command{
		Use:           "sender <mechanism> <input-file>",
		Short:         sendCmd.Short,
		Long:          sendCmd.Long,
		Version:       DefaultVersion,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          sendCmd.RunE,
	}
	addPersistentFlags(c)
	return c
}

// runSend executes the sender side of the benchmark
func runSend(out io.Writer, mechanism, inputPath string) error {
	mode, err := types.ParseMode(mechanism)
	if err != nil {
		return err
	}

	s, err := startSession(types.Sender, mode)
	if err != nil {
		return err
	}

	// Open the input before touching any shared object.
	input, err := os.Open(inputPath)
	if err != nil {
		return types.WrapError(types.ErrCodeNotFound, "failed to open input file", err)
	}
	defer input.Close()

	mb, err := s.openMailbox(out)
	if err != nil {
		return err
	}
	defer func() {
		if err := mb.Close(); err != nil {
			s.log.Warn("Failed to close mailbox", "error", err)
		}
	}()

	stop := s.watchSignals(mb)
	defer stop()

	s.setStatus(types.StatusRunning)
	s.log.Info("Sending", "input", inputPath)
	sender := bench.NewSender(mb, s.benchOptions(out))
	result, err := sender.Run(input)
	s.finish(sender.Recorder(), result, err)
	return err
}
