// Package transport holds the two System V backends a mailbox can carry
// messages over: a message queue and a shared memory region.
//
// Neither backend synchronises anything. Callers must hold the turn from
// pkg/handshake around every Put and Get.
package transport

import (
	"github.com/billm/ipcbench/pkg/types"
)

// Transport moves one message at a time between the two processes
type Transport interface {
	// Put hands msg to the peer. The text is truncated to Capacity()-1 bytes.
	Put(msg types.Message) error
	// Get takes the message most recently handed over
	Get() (types.Message, error)
	// Capacity returns the slot size in bytes, terminator included
	Capacity() int
	// Close releases this process's handle. The kernel object survives.
	Close() error
	// Remove destroys the kernel object for every process
	Remove() error
}

// Permissions for newly created queues and segments
const defaultPerm = 0666

func errClosed(what string) error {
	return types.NewError(types.ErrCodeFailedPrecondition, what+" is closed")
}

func errUnsupported(what string) error {
	return types.NewError(types.ErrCodeUnavailable, what+" is not supported on this platform")
}

func checkCapacity(capacity int) error {
	if capacity < 2 {
		return types.NewError(types.ErrCodeInvalidArgument, "transport capacity must be at least 2")
	}
	return nil
}
