//go:build linux && (amd64 || arm64)

package handshake

import (
	"encoding/binary"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"unsafe"

	"github.com/billm/ipcbench/pkg/types"
	"golang.org/x/sys/unix"
)

// Shared (non-private) futex operations: the word lives in a MAP_SHARED
// mapping that another process waits on.
const (
	futexWaitOp = 0 // FUTEX_WAIT
	futexWakeOp = 1 // FUTEX_WAKE
)

const (
	semFileSize     = 32
	maxOpenAttempts = 8
)

// OpenSemaphore opens the named semaphore in dir, creating it with the given
// initial count if it does not exist yet. An existing semaphore is never
// reset. The boolean result reports whether this call made the name.
//
// Creation is race-free: the semaphore is fully initialised in a temporary
// file and then linked into place, so a concurrent opener either sees no
// file or a ready one.
func OpenSemaphore(dir, name string, initial uint32, perm os.FileMode) (*Semaphore, bool, error) {
	path, err := semaphorePath(dir, name)
	if err != nil {
		return nil, false, err
	}
	if initial > math.MaxInt32 {
		return nil, false, types.NewError(types.ErrCodeInvalidArgument, "semaphore initial value too large")
	}

	for attempt := 0; attempt < maxOpenAttempts; attempt++ {
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err == nil {
			s, err := mapSemaphore(name, path, f)
			if err != nil {
				f.Close()
				return nil, false, err
			}
			return s, false, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, false, types.WrapError(types.ErrCodeUnavailable, "failed to open semaphore "+name, err)
		}

		s, err := createSemaphore(dir, name, path, initial, perm)
		if err == nil {
			return s, true, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, false, err
		}
		// another process linked it first; open theirs
	}

	return nil, false, types.NewError(types.ErrCodeUnavailable,
		"semaphore "+name+" disappeared repeatedly while opening")
}

func createSemaphore(dir, name, path string, initial uint32, perm os.FileMode) (*Semaphore, error) {
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, types.WrapError(types.ErrCodeUnavailable, "failed to create semaphore "+name, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	var init [semFileSize]byte
	binary.NativeEndian.PutUint32(init[0:4], initial)
	if _, err := tmp.WriteAt(init[:], 0); err != nil {
		tmp.Close()
		return nil, types.WrapError(types.ErrCodeUnavailable, "failed to initialise semaphore "+name, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return nil, types.WrapError(types.ErrCodeUnavailable, "failed to set semaphore permissions for "+name, err)
	}

	if err := unix.Link(tmpPath, path); err != nil {
		tmp.Close()
		return nil, types.WrapError(types.ErrCodeUnavailable, "failed to publish semaphore "+name, err)
	}

	s, err := mapSemaphore(name, path, tmp)
	if err != nil {
		tmp.Close()
		os.Remove(path)
		return nil, err
	}
	return s, nil
}

func mapSemaphore(name, path string, f *os.File) (*Semaphore, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, types.WrapError(types.ErrCodeUnavailable, "failed to stat semaphore "+name, err)
	}
	if info.Size() < semFileSize {
		return nil, types.NewError(types.ErrCodeUnavailable, "semaphore file "+path+" is truncated")
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, semFileSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeUnavailable, "failed to map semaphore "+name, err)
	}

	return &Semaphore{
		name: name,
		path: path,
		file: f,
		mem:  mem,
		word: (*semWord)(unsafe.Pointer(&mem[0])),
	}, nil
}

// Wait blocks until the count is positive and then decrements it.
// It sleeps in the kernel while the count is zero; there is no polling.
// Once the semaphore is abandoned every Wait fails with FAILED_PRECONDITION.
func (s *Semaphore) Wait() error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	w := s.word
	for {
		if atomic.LoadUint32(&w.abandoned) != 0 {
			return s.errAbandoned()
		}
		if s.tryDecrement() {
			return nil
		}

		// Register before sleeping: Post increments first and then looks
		// for waiters, so either it sees us or the kernel sees value != 0.
		atomic.AddUint32(&w.waiters, 1)
		err := futexWait(&w.value, 0)
		atomic.AddUint32(&w.waiters, ^uint32(0))
		if err != nil {
			return types.WrapError(types.ErrCodeInternal, "semaphore wait failed on "+s.name, err)
		}
	}
}

// TryWait decrements the count if it is positive and reports whether it did
func (s *Semaphore) TryWait() (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	if atomic.LoadUint32(&s.word.abandoned) != 0 {
		return false, s.errAbandoned()
	}
	return s.tryDecrement(), nil
}

func (s *Semaphore) tryDecrement() bool {
	for {
		v := atomic.LoadUint32(&s.word.value)
		if v == 0 {
			return false
		}
		if atomic.CompareAndSwapUint32(&s.word.value, v, v-1) {
			return true
		}
	}
}

// Post increments the count and wakes one waiter if any is sleeping
func (s *Semaphore) Post() error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	w := s.word
	if atomic.LoadUint32(&w.abandoned) != 0 {
		return s.errAbandoned()
	}
	for {
		v := atomic.LoadUint32(&w.value)
		if v >= math.MaxInt32 {
			return types.NewError(types.ErrCodeFailedPrecondition, "semaphore "+s.name+" would overflow")
		}
		if atomic.CompareAndSwapUint32(&w.value, v, v+1) {
			break
		}
	}

	if atomic.LoadUint32(&w.waiters) > 0 {
		if err := futexWake(&w.value, 1); err != nil {
			return types.WrapError(types.ErrCodeInternal, "semaphore wake failed on "+s.name, err)
		}
	}
	return nil
}

// Abandon marks the semaphore dead in every process that has it open and
// wakes all waiters. It is meant for a process that exits mid-exchange so its
// peer stops instead of sleeping forever. Abandoning is permanent for the
// name; unlink it afterwards.
func (s *Semaphore) Abandon() error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	w := s.word
	atomic.StoreUint32(&w.abandoned, 1)
	// A nonzero count makes a waiter that has not slept yet return from
	// FUTEX_WAIT at once and see the flag.
	atomic.StoreUint32(&w.value, math.MaxInt32)
	if err := futexWake(&w.value, math.MaxInt32); err != nil {
		return types.WrapError(types.ErrCodeInternal, "semaphore wake failed on "+s.name, err)
	}
	return nil
}

// Abandoned reports whether the semaphore has been abandoned
func (s *Semaphore) Abandoned() (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	return atomic.LoadUint32(&s.word.abandoned) != 0, nil
}

// Value returns the current count
func (s *Semaphore) Value() (uint32, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	return atomic.LoadUint32(&s.word.value), nil
}

// Close unmaps the semaphore. The name stays linked until UnlinkSemaphore.
func (s *Semaphore) Close() error {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	if err := unix.Munmap(s.mem); err != nil {
		errs = append(errs, err)
	}
	s.mem = nil
	s.word = nil
	if err := s.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return types.WrapError(types.ErrCodeInternal, "failed to close semaphore "+s.name, errors.Join(errs...))
	}
	return nil
}

// futexWait sleeps while *addr == val. EAGAIN (value already changed) and
// EINTR are reported as success; callers always re-check the count.
func futexWait(addr *uint32, val uint32) error {
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexWaitOp,
		uintptr(val),
		0, // no timeout
		0,
		0,
	)
	if errno != 0 && errno != unix.EAGAIN && errno != unix.EINTR {
		return errno
	}
	return nil
}

// futexWake wakes up to n waiters sleeping on addr
func futexWake(addr *uint32, n int) error {
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexWakeOp,
		uintptr(n),
		0,
		0,
		0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}
