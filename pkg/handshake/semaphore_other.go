//go:build !(linux && (amd64 || arm64))

package handshake

import (
	"os"

	"github.com/billm/ipcbench/pkg/types"
)

func errUnsupported() error {
	return types.NewError(types.ErrCodeUnavailable, "named semaphores are only supported on linux/amd64 and linux/arm64")
}

// OpenSemaphore is not available on this platform
func OpenSemaphore(dir, name string, initial uint32, perm os.FileMode) (*Semaphore, bool, error) {
	return nil, false, errUnsupported()
}

// Wait is not available on this platform
func (s *Semaphore) Wait() error { return errUnsupported() }

// TryWait is not available on this platform
func (s *Semaphore) TryWait() (bool, error) { return false, errUnsupported() }

// Post is not available on this platform
func (s *Semaphore) Post() error { return errUnsupported() }

// Abandon is not available on this platform
func (s *Semaphore) Abandon() error { return errUnsupported() }

// Abandoned is not available on this platform
func (s *Semaphore) Abandoned() (bool, error) { return false, errUnsupported() }

// Value is not available on this platform
func (s *Semaphore) Value() (uint32, error) { return 0, errUnsupported() }

// Close is a no-op on this platform
func (s *Semaphore) Close() error { return nil }
