package mailbox

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/billm/ipcbench/internal/config"
	"github.com/billm/ipcbench/internal/logger"
	"github.com/billm/ipcbench/pkg/handshake"
	"github.com/billm/ipcbench/pkg/mailbox/internal/transport"
	"github.com/billm/ipcbench/pkg/types"
)

// Options configures a mailbox
type Options struct {
	Mode   types.Mode
	Role   types.Party
	IPC    config.IPCConfig
	Logger *logger.Logger
}

// Mailbox is one process's end of the benchmark channel
type Mailbox struct {
	mode      types.Mode
	role      types.Party
	cfg       config.IPCConfig
	handshake *handshake.Handshake
	transport transport.Transport
	logger    *logger.Logger
	closed    atomic.Bool
}

// Open validates the options, opens the handshake and then the transport.
// An invalid mode fails before anything is created, and a transport failure
// closes the handshake again.
func Open(opts Options) (*Mailbox, error) {
	if !opts.Mode.Valid() {
		return nil, types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("unknown mechanism %d (must be 1=message passing or 2=shared memory)", int(opts.Mode)))
	}
	if opts.Role != types.Sender && opts.Role != types.Receiver {
		return nil, types.NewError(types.ErrCodeInvalidArgument, fmt.Sprintf("unknown role %d", int(opts.Role)))
	}
	if err := opts.IPC.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	log := opts.Logger.With("component", "mailbox")

	hs, err := handshake.Open(handshake.Options{
		Dir:          opts.IPC.SemaphoreDir,
		SenderName:   opts.IPC.SenderSemaphore,
		ReceiverName: opts.IPC.ReceiverSemaphore,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}

	t, err := openTransport(opts.Mode, opts.Role, opts.IPC)
	if err != nil {
		hs.Close()
		return nil, err
	}

	log.Debug("Mailbox opened", "transport", t, "capacity", t.Capacity())

	return &Mailbox{
		mode:      opts.Mode,
		role:      opts.Role,
		cfg:       opts.IPC,
		handshake: hs,
		transport: t,
		logger:    log,
	}, nil
}

func openTransport(mode types.Mode, role types.Party, cfg config.IPCConfig) (transport.Transport, error) {
	switch mode {
	case types.ModeQueue:
		key, err := transport.Key(cfg.ExpandedKeyPath(), cfg.QueueProjectID)
		if err != nil {
			return nil, err
		}
		queue, err := transport.OpenQueue(key, cfg.TextSize)
		if err != nil {
			return nil, err
		}
		return queue, nil

	case types.ModeSharedMemory:
		key, err := transport.Key(cfg.ExpandedKeyPath(), cfg.ShmProjectID)
		if err != nil {
			return nil, err
		}
		region, err := transport.OpenRegion(key, cfg.TextSize, cfg.ExitMarker)
		if err != nil {
			return nil, err
		}
		// The sender owns the slot's first state.
		if role == types.Sender {
			if err := region.Reset(); err != nil {
				region.Close()
				return nil, err
			}
		}
		return region, nil

	default:
		return nil, types.NewError(types.ErrCodeInvalidArgument, "unknown mechanism "+mode.String())
	}
}

// Mode returns the transport mechanism
func (m *Mailbox) Mode() types.Mode {
	return m.mode
}

// Role returns which side of the exchange this mailbox is
func (m *Mailbox) Role() types.Party {
	return m.role
}

// Capacity returns the text slot size in bytes, terminator included
func (m *Mailbox) Capacity() int {
	return m.transport.Capacity()
}

// ExitMarker returns the end-of-stream sentinel text
func (m *Mailbox) ExitMarker() string {
	return m.cfg.ExitMarker
}

func (m *Mailbox) checkOpen() error {
	if m == nil || m.handshake == nil || m.transport == nil {
		return types.NewError(types.ErrCodeFailedPrecondition, "mailbox is not initialised")
	}
	if m.closed.Load() {
		return types.NewError(types.ErrCodeFailedPrecondition, "mailbox is closed")
	}
	return nil
}

func (m *Mailbox) checkUsable(role types.Party) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if m.role != role {
		return types.NewError(types.ErrCodeFailedPrecondition,
			fmt.Sprintf("a %s mailbox cannot act as %s", m.role, role))
	}
	return nil
}

// Send waits for the sender's turn, puts msg and hands the turn to the
// receiver. Only the put is timed. The turn is handed over even when the
// put fails, and the put error is returned.
func (m *Mailbox) Send(msg types.Message) (time.Duration, error) {
	if err := m.checkUsable(types.Sender); err != nil {
		return 0, err
	}
	if err := m.handshake.AcquireTurn(types.Sender); err != nil {
		return 0, err
	}

	start := time.Now()
	putErr := m.transport.Put(msg)
	elapsed := time.Since(start)

	if err := m.handshake.ReleaseTurn(types.Sender); err != nil {
		return elapsed, errors.Join(putErr, err)
	}
	return elapsed, putErr
}

// Receive waits for the receiver's turn, gets the pending message and hands
// the turn back to the sender. Only the get is timed.
func (m *Mailbox) Receive() (types.Message, time.Duration, error) {
	if err := m.checkUsable(types.Receiver); err != nil {
		return types.Message{}, 0, err
	}
	if err := m.handshake.AcquireTurn(types.Receiver); err != nil {
		return types.Message{}, 0, err
	}

	start := time.Now()
	msg, getErr := m.transport.Get()
	elapsed := time.Since(start)

	if err := m.handshake.ReleaseTurn(types.Receiver); err != nil {
		return msg, elapsed, errors.Join(getErr, err)
	}
	return msg, elapsed, getErr
}

// ReleaseTurn hands the turn to the peer once more without moving a message
func (m *Mailbox) ReleaseTurn() error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	return m.handshake.ReleaseTurn(m.role)
}

// Abandon wakes the peer out of its turn wait and makes every later turn on
// this exchange fail with FAILED_PRECONDITION, in both processes. It is for a
// process that is about to exit mid-run.
func (m *Mailbox) Abandon() error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := m.handshake.Abandon(); err != nil {
		return err
	}
	m.logger.Debug("Exchange abandoned")
	return nil
}

// Close detaches from the transport and closes the semaphores. A receiver
// mailbox also removes the transport object and unlinks both semaphores.
// It is idempotent.
func (m *Mailbox) Close() error {
	if m == nil || m.handshake == nil || m.transport == nil {
		return nil
	}
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	if err := m.transport.Close(); err != nil {
		errs = append(errs, err)
	}
	if m.role == types.Receiver {
		if err := m.transport.Remove(); err != nil {
			errs = append(errs, err)
		}
		if err := m.handshake.Unlink(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.handshake.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		m.logger.Warn("Mailbox teardown incomplete", "error", errors.Join(errs...))
		return types.WrapError(types.ErrCodeInternal, "failed to tear down mailbox", errors.Join(errs...))
	}
	m.logger.Debug("Mailbox closed", "removed", m.role == types.Receiver)
	return nil
}

// String returns a string representation of the mailbox
func (m *Mailbox) String() string {
	return fmt.Sprintf("Mailbox{Mode: %s, Role: %s, Transport: %v, Closed: %v}",
		m.mode, m.role, m.transport, m.closed.Load())
}

// Purge removes every object a crashed run may have left behind: both
// transports and both semaphore names. Missing objects are not an error.
func Purge(cfg config.IPCConfig) error {
	var errs []error

	if key, err := transport.Key(cfg.ExpandedKeyPath(), cfg.QueueProjectID); err != nil {
		errs = append(errs, err)
	} else if err := transport.RemoveQueue(key); err != nil {
		errs = append(errs, err)
	}

	if key, err := transport.Key(cfg.ExpandedKeyPath(), cfg.ShmProjectID); err != nil {
		errs = append(errs, err)
	} else if err := transport.RemoveRegion(key); err != nil {
		errs = append(errs, err)
	}

	if err := handshake.Unlink(cfg.SemaphoreDir, cfg.SenderSemaphore, cfg.ReceiverSemaphore); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return types.WrapError(types.ErrCodeInternal, "failed to purge ipc objects", errors.Join(errs...))
	}
	return nil
}
