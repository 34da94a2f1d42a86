package transport

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/billm/ipcbench/pkg/types"
)

// statusSize is the width of the status tag at the start of the region
const statusSize = 4

// Region is a System V shared memory segment holding a single message slot:
// an int32 status tag followed by a NUL-terminated text buffer.
type Region struct {
	key      int
	id       int
	capacity int
	sentinel string

	mu     sync.Mutex
	mem    []byte
	status *int32
	buf    []byte
	closed bool
}

// Key returns the IPC key the region was opened with
func (r *Region) Key() int {
	return r.key
}

// ID returns the kernel segment identifier
func (r *Region) ID() int {
	return r.id
}

// Capacity returns the text slot size in bytes, terminator included
func (r *Region) Capacity() int {
	return r.capacity
}

// Put copies msg into the slot and marks it Full, or ExitSignaled when the
// text is the sentinel. The current status is neither checked nor awaited.
func (r *Region) Put(msg types.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errClosed("shared memory region")
	}

	msg.Encode(r.buf)
	next := types.SlotFull
	if msg.Text == r.sentinel {
		next = types.SlotExitSignaled
	}
	atomic.StoreInt32(r.status, int32(next))
	return nil
}

// Get copies the text out of the slot and marks it Empty
func (r *Region) Get() (types.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return types.Message{}, errClosed("shared memory region")
	}

	text := types.DecodeText(r.buf)
	atomic.StoreInt32(r.status, int32(types.SlotEmpty))
	return types.Message{Type: types.MessageTypeText, Text: text}, nil
}

// Reset marks the slot Empty
func (r *Region) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errClosed("shared memory region")
	}
	atomic.StoreInt32(r.status, int32(types.SlotEmpty))
	return nil
}

// Status returns the slot's status tag
func (r *Region) Status() (types.SlotStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, errClosed("shared memory region")
	}
	return types.SlotStatus(atomic.LoadInt32(r.status)), nil
}

// String returns a string representation of the region
func (r *Region) String() string {
	return fmt.Sprintf("Region{Key: %#x, ID: %d, Capacity: %d}", uint32(r.key), r.id, r.capacity)
}
