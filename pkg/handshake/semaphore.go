package handshake

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/billm/ipcbench/pkg/types"
)

// semFilePrefix mirrors the file name glibc gives named semaphores under /dev/shm
const semFilePrefix = "sem."

// DefaultSemaphorePerm restricts turns to the owning user
const DefaultSemaphorePerm os.FileMode = 0600

// Semaphore is a named counting semaphore shared between processes.
// It is backed by a small memory-mapped file so any process that opens the
// same name observes the same count.
type Semaphore struct {
	name   string
	path   string
	file   *os.File
	mem    []byte
	word   *semWord
	closed atomic.Bool
}

// semWord is the shared state at offset 0 of the semaphore file. Only the
// file naming follows glibc; the layout is private to this package, so a C
// sem_open peer cannot share these semaphores.
type semWord struct {
	value     uint32
	waiters   uint32
	abandoned uint32
}

// Name returns the semaphore name as given to OpenSemaphore
func (s *Semaphore) Name() string {
	return s.name
}

// semaphorePath maps a POSIX-style name such as "/sem_sender_lab" to its
// backing file inside dir
func semaphorePath(dir, name string) (string, error) {
	base := strings.TrimPrefix(name, "/")
	if base == "" || strings.Contains(base, "/") || base == "." || base == ".." {
		return "", types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid semaphore name %q", name))
	}
	if dir == "" {
		return "", types.NewError(types.ErrCodeInvalidArgument, "semaphore directory cannot be empty")
	}
	return filepath.Join(dir, semFilePrefix+base), nil
}

// UnlinkSemaphore removes a semaphore name. Processes that still have it open
// keep working; a missing name is not an error.
func UnlinkSemaphore(dir, name string) error {
	path, err := semaphorePath(dir, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return types.WrapError(types.ErrCodeInternal, "failed to unlink semaphore "+name, err)
	}
	return nil
}

// SemaphoreExists reports whether a semaphore name is currently linked
func SemaphoreExists(dir, name string) bool {
	path, err := semaphorePath(dir, name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func (s *Semaphore) checkOpen() error {
	if s == nil || s.closed.Load() {
		return types.NewError(types.ErrCodeFailedPrecondition, "semaphore is closed")
	}
	return nil
}

func (s *Semaphore) errAbandoned() error {
	return types.NewError(types.ErrCodeFailedPrecondition, "semaphore "+s.name+" was abandoned")
}

// String returns a string representation of the semaphore
func (s *Semaphore) String() string {
	return fmt.Sprintf("Semaphore{Name: %s, Path: %s}", s.name, s.path)
}
