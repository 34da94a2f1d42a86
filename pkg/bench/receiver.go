package bench

import (
	"fmt"

	"github.com/billm/ipcbench/internal/logger"
	"github.com/billm/ipcbench/pkg/types"
)

// Receiver prints messages from an Inbox until the exit marker arrives
type Receiver struct {
	inbox  Inbox
	opts   Options
	logger *logger.Logger
}

// NewReceiver creates a Receiver
func NewReceiver(inbox Inbox, opts Options) *Receiver {
	opts.applyDefaults(types.Receiver)
	return &Receiver{
		inbox:  inbox,
		opts:   opts,
		logger: opts.Logger.With("component", "receiver"),
	}
}

// Recorder returns the recorder the receiver times into
func (r *Receiver) Recorder() *Recorder {
	return r.opts.Recorder
}

// Run receives until the exit marker. A failed receive is logged and that
// cycle is dropped. An inbox that is closed, was never set up, or whose
// sender abandoned the exchange ends the run with an error.
func (r *Receiver) Run() (Result, error) {
	out := r.opts.Output

	var result Result
	for {
		msg, elapsed, err := r.inbox.Receive()
		r.opts.Recorder.Observe(elapsed)
		result.Messages++

		if err != nil {
			result.Failures++
			if stopsRun(err) {
				result.Total = r.opts.Recorder.Total()
				return result, err
			}
			r.logger.Error("Receive failed", "error", err, "message", result.Messages)
			continue
		}

		if msg.Text == r.opts.ExitMarker {
			fmt.Fprintln(out, "Sender exit!")
			// The sender may still be waiting on its turn.
			if err := r.inbox.ReleaseTurn(); err != nil {
				r.logger.Warn("Final turn release failed", "error", err)
			}
			break
		}

		fmt.Fprintf(out, "Receiving message:\t%s\n", msg.Text)
	}

	result.Total = r.opts.Recorder.Total()
	printTotal(out, "receiving", result.Total)

	if r.logger.Enabled(logger.LevelDebug) {
		r.logger.Debug("Receive loop finished", r.opts.Recorder.Summary().Fields()...)
	}
	return result, nil
}
