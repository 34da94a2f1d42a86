package bench

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/billm/ipcbench/internal/config"
	"github.com/billm/ipcbench/internal/logger"
	"github.com/billm/ipcbench/pkg/types"
)

// Outbox is the sending end of a mailbox
type Outbox interface {
	Send(msg types.Message) (time.Duration, error)
}

// Inbox is the receiving end of a mailbox
type Inbox interface {
	Receive() (types.Message, time.Duration, error)
	ReleaseTurn() error
}

// Options configures a Sender or Receiver
type Options struct {
	Mode       types.Mode
	ExitMarker string
	Capacity   int       // slot size in bytes, terminator included
	Output     io.Writer // benchmark lines, os.Stdout by default
	Recorder   *Recorder
	Logger     *logger.Logger
}

func (o *Options) applyDefaults(role types.Party) {
	if o.ExitMarker == "" {
		o.ExitMarker = config.DefaultExitMarker
	}
	if o.Capacity <= 0 {
		o.Capacity = config.DefaultTextSize
	}
	if o.Output == nil {
		o.Output = os.Stdout
	}
	if o.Recorder == nil {
		o.Recorder = NewRecorder(role, o.Mode)
	}
	if o.Logger == nil {
		o.Logger = logger.NewNop()
	}
}

// Result reports what one run did
type Result struct {
	Messages int           // timed transport calls, exit marker included
	Failures int           // calls that returned an error
	Total    time.Duration // accumulated transport time
}

func (r Result) String() string {
	return fmt.Sprintf("Result{Messages: %d, Failures: %d, Total: %s}", r.Messages, r.Failures, r.Total)
}

func printTotal(w io.Writer, verb string, total time.Duration) {
	fmt.Fprintf(w, "Total time taken in %s msg: %.6f s\n", verb, total.Seconds())
}

// stopsRun reports whether err means the mailbox can no longer move
// messages, so every later cycle would fail the same way
func stopsRun(err error) bool {
	return types.IsErrCode(err, types.ErrCodeFailedPrecondition)
}
