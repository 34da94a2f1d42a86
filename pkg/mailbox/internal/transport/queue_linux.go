//go:build linux && (amd64 || arm64)

package transport

import (
	"encoding/binary"
	"errors"
	"unsafe"

	"github.com/billm/ipcbench/pkg/types"
	"golang.org/x/sys/unix"
)

// OpenQueue opens the message queue for key, creating it if needed
func OpenQueue(key, capacity int) (*Queue, error) {
	if err := checkCapacity(capacity); err != nil {
		return nil, err
	}

	id, err := msgget(key, unix.IPC_CREAT|defaultPerm)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeUnavailable, "failed to open message queue", err)
	}

	return &Queue{
		key:      key,
		id:       id,
		capacity: capacity,
		buf:      make([]byte, mtypeSize+capacity),
	}, nil
}

// Put enqueues msg. The text is sent with its terminator and nothing past it.
func (q *Queue) Put(msg types.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errClosed("message queue")
	}
	if msg.Type <= types.MessageTypeAny {
		return types.NewError(types.ErrCodeInvalidArgument, "queued messages need a positive type")
	}

	binary.NativeEndian.PutUint64(q.buf[:mtypeSize], uint64(msg.Type))
	n := msg.Encode(q.buf[mtypeSize:])

	_, _, errno := unix.Syscall6(
		unix.SYS_MSGSND,
		uintptr(q.id),
		uintptr(unsafe.Pointer(&q.buf[0])),
		uintptr(n),
		0,
		0,
		0,
	)
	if errno != 0 {
		return types.WrapError(types.ErrCodeUnavailable, "msgsnd failed", errno)
	}
	return nil
}

// Get dequeues the oldest message of any type, blocking in the kernel until
// one arrives. An interrupted wait is returned as an error, not retried.
func (q *Queue) Get() (types.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return types.Message{}, errClosed("message queue")
	}

	n, _, errno := unix.Syscall6(
		unix.SYS_MSGRCV,
		uintptr(q.id),
		uintptr(unsafe.Pointer(&q.buf[0])),
		uintptr(q.capacity),
		uintptr(types.MessageTypeAny),
		0,
		0,
	)
	if errno != 0 {
		return types.Message{}, types.WrapError(types.ErrCodeUnavailable, "msgrcv failed", errno)
	}

	return types.Message{
		Type: types.MessageType(int64(binary.NativeEndian.Uint64(q.buf[:mtypeSize]))),
		Text: types.DecodeText(q.buf[mtypeSize : mtypeSize+int(n)]),
	}, nil
}

// Remove destroys the queue. Blocked readers in any process fail with EIDRM.
func (q *Queue) Remove() error {
	if err := msgctlRemove(q.id); err != nil {
		return types.WrapError(types.ErrCodeInternal, "failed to remove message queue", err)
	}
	return nil
}

// RemoveQueue destroys the queue for key if one exists
func RemoveQueue(key int) error {
	id, err := msgget(key, 0)
	if errors.Is(err, unix.ENOENT) {
		return nil
	}
	if err != nil {
		return types.WrapError(types.ErrCodeUnavailable, "failed to look up message queue", err)
	}
	if err := msgctlRemove(id); err != nil && !errors.Is(err, unix.EIDRM) && !errors.Is(err, unix.EINVAL) {
		return types.WrapError(types.ErrCodeInternal, "failed to remove message queue", err)
	}
	return nil
}

func msgget(key, flag int) (int, error) {
	id, _, errno := unix.Syscall(unix.SYS_MSGGET, uintptr(key), uintptr(flag), 0)
	if errno != 0 {
		return -1, errno
	}
	return int(id), nil
}

func msgctlRemove(id int) error {
	_, _, errno := unix.Syscall(unix.SYS_MSGCTL, uintptr(id), unix.IPC_RMID, 0)
	if errno != 0 {
		return errno
	}
	return nil
}
