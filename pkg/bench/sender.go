package bench

import (
	"fmt"
	"io"

	"github.com/billm/ipcbench/internal/logger"
	"github.com/billm/ipcbench/pkg/types"
)

// Sender streams input lines through an Outbox and finishes with the exit marker
type Sender struct {
	outbox Outbox
	opts   Options
	logger *logger.Logger
}

// NewSender creates a Sender
func NewSender(outbox Outbox, opts Options) *Sender {
	opts.applyDefaults(types.Sender)
	return &Sender{
		outbox: outbox,
		opts:   opts,
		logger: opts.Logger.With("component", "sender"),
	}
}

// Recorder returns the recorder the sender times into
func (s *Sender) Recorder() *Recorder {
	return s.opts.Recorder
}

// Run sends every line of input, then the exit marker. A failed send is
// logged and the loop moves on, except when the outbox is closed or the
// receiver abandoned the exchange: then Run stops and returns that error. A read error stops reading early; the exit
// marker is still sent so the receiver can finish, and the read error is
// returned.
func (s *Sender) Run(input io.Reader) (Result, error) {
	out := s.opts.Output
	lines := NewLineReader(input)

	var result Result
	var readErr error
	for {
		line, err := lines.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			readErr = types.WrapError(types.ErrCodeInternal,
				fmt.Sprintf("failed to read input after line %d", lines.Line()), err)
			s.logger.Error("Input read failed, sending exit marker", "error", err, "line", lines.Line())
			break
		}

		msg := types.NewMessage(types.MessageTypeText, line, s.opts.Capacity)
		if err := s.send(msg, &result); stopsRun(err) {
			result.Total = s.opts.Recorder.Total()
			return result, err
		}
		fmt.Fprintf(out, "Sending message:\t%s\n", msg.Text)
	}

	if err := s.send(types.NewMessage(types.MessageTypeText, s.opts.ExitMarker, s.opts.Capacity), &result); stopsRun(err) {
		result.Total = s.opts.Recorder.Total()
		return result, err
	}
	fmt.Fprintln(out, "End of input file! exit!")

	result.Total = s.opts.Recorder.Total()
	printTotal(out, "sending", result.Total)

	if s.logger.Enabled(logger.LevelDebug) {
		s.logger.Debug("Send loop finished", s.opts.Recorder.Summary().Fields()...)
	}
	return result, readErr
}

func (s *Sender) send(msg types.Message, result *Result) error {
	elapsed, err := s.outbox.Send(msg)
	s.opts.Recorder.Observe(elapsed)
	result.Messages++
	if err != nil {
		result.Failures++
		if !stopsRun(err) {
			s.logger.Error("Send failed", "error", err, "message", result.Messages)
		}
	}
	return err
}
