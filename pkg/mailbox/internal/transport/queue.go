package transport

import (
	"fmt"
	"sync"
)

// mtypeSize is the width of the class tag that precedes the text in a queue message
const mtypeSize = 8

// Queue is a System V message queue
type Queue struct {
	key      int
	id       int
	capacity int

	mu     sync.Mutex
	buf    []byte // mtype followed by capacity bytes of text
	closed bool
}

// Key returns the IPC key the queue was opened with
func (q *Queue) Key() int {
	return q.key
}

// ID returns the kernel queue identifier
func (q *Queue) ID() int {
	return q.id
}

// Capacity returns the text slot size in bytes, terminator included
func (q *Queue) Capacity() int {
	return q.capacity
}

// Close drops the local buffer. Queue handles are not per-process, so the
// kernel object is untouched; an in-flight Get finishes first.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.buf = nil
	return nil
}

// String returns a string representation of the queue
func (q *Queue) String() string {
	return fmt.Sprintf("Queue{Key: %#x, ID: %d, Capacity: %d}", uint32(q.key), q.id, q.capacity)
}
