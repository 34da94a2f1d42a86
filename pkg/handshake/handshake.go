package handshake

import (
	"errors"
	"fmt"
	"os"

	"github.com/billm/ipcbench/internal/logger"
	"github.com/billm/ipcbench/pkg/types"
)

// Initial counts: the sender holds the first turn.
const (
	SenderInitial   uint32 = 1
	ReceiverInitial uint32 = 0
)

// Options names the two turn semaphores. Both processes must pass the same values.
type Options struct {
	Dir          string
	SenderName   string
	ReceiverName string
	Perm         os.FileMode
	Logger       *logger.Logger
}

// Handshake is the two-semaphore alternation protocol
type Handshake struct {
	opts     Options
	sender   *Semaphore
	receiver *Semaphore
	logger   *logger.Logger
}

// Open opens or creates both turn semaphores. Failure to open either one is
// fatal for the caller; nothing is left open on error.
func Open(opts Options) (*Handshake, error) {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Perm == 0 {
		opts.Perm = DefaultSemaphorePerm
	}
	log := opts.Logger.With("component", "handshake")

	sender, created, err := OpenSemaphore(opts.Dir, opts.SenderName, SenderInitial, opts.Perm)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeUnavailable, "failed to open sender turn", err)
	}
	log.Debug("Sender turn ready", "name", opts.SenderName, "created", created)

	receiver, created, err := OpenSemaphore(opts.Dir, opts.ReceiverName, ReceiverInitial, opts.Perm)
	if err != nil {
		sender.Close()
		return nil, types.WrapError(types.ErrCodeUnavailable, "failed to open receiver turn", err)
	}
	log.Debug("Receiver turn ready", "name", opts.ReceiverName, "created", created)

	return &Handshake{
		opts:     opts,
		sender:   sender,
		receiver: receiver,
		logger:   log,
	}, nil
}

func (h *Handshake) turn(p types.Party) *Semaphore {
	if p == types.Sender {
		return h.sender
	}
	return h.receiver
}

// AcquireTurn blocks until it is p's turn and takes it. A closed or
// abandoned handshake fails with FAILED_PRECONDITION.
func (h *Handshake) AcquireTurn(p types.Party) error {
	if err := h.turn(p).Wait(); err != nil {
		return wrapTurnError(fmt.Sprintf("failed to acquire %s turn", p), err)
	}
	return nil
}

// ReleaseTurn hands the turn from p to its peer, waking the peer if it is waiting
func (h *Handshake) ReleaseTurn(p types.Party) error {
	if err := h.turn(p.Peer()).Post(); err != nil {
		return wrapTurnError(fmt.Sprintf("failed to release turn to %s", p.Peer()), err)
	}
	return nil
}

// wrapTurnError keeps the semaphore's own code so callers can tell a dead
// handshake from a failed syscall
func wrapTurnError(message string, err error) error {
	code := types.GetErrorCode(err)
	if code == "" {
		code = types.ErrCodeInternal
	}
	return types.WrapError(code, message, err)
}

// Abandon marks both turns dead and wakes whoever is waiting on them, so the
// peer's next or current AcquireTurn fails instead of blocking forever
func (h *Handshake) Abandon() error {
	return errors.Join(h.sender.Abandon(), h.receiver.Abandon())
}

// Pending returns the current count of p's turn semaphore
func (h *Handshake) Pending(p types.Party) (uint32, error) {
	return h.turn(p).Value()
}

// Close closes both semaphores without removing their names
func (h *Handshake) Close() error {
	return errors.Join(h.sender.Close(), h.receiver.Close())
}

// Unlink removes both semaphore names
func (h *Handshake) Unlink() error {
	return Unlink(h.opts.Dir, h.opts.SenderName, h.opts.ReceiverName)
}

// Unlink removes the named turn semaphores, ignoring names that do not exist
func Unlink(dir, senderName, receiverName string) error {
	return errors.Join(
		UnlinkSemaphore(dir, senderName),
		UnlinkSemaphore(dir, receiverName),
	)
}
