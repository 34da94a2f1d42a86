//go:build linux && (amd64 || arm64)

package transport

import (
	"errors"
	"unsafe"

	"github.com/billm/ipcbench/pkg/types"
	"golang.org/x/sys/unix"
)

// OpenRegion creates or opens the segment for key and attaches it. The slot
// layout is mapped once here; Put and Get never re-attach.
func OpenRegion(key, capacity int, sentinel string) (*Region, error) {
	if err := checkCapacity(capacity); err != nil {
		return nil, err
	}
	if len(sentinel) > capacity-1 {
		return nil, types.NewError(types.ErrCodeInvalidArgument, "sentinel does not fit in the region slot")
	}

	id, err := unix.SysvShmGet(key, statusSize+capacity, unix.IPC_CREAT|defaultPerm)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeUnavailable, "failed to get shared memory segment", err)
	}

	mem, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeUnavailable, "failed to attach shared memory segment", err)
	}
	if len(mem) < statusSize+capacity {
		unix.SysvShmDetach(mem)
		return nil, types.NewError(types.ErrCodeUnavailable, "shared memory segment is smaller than the slot")
	}

	return &Region{
		key:      key,
		id:       id,
		capacity: capacity,
		sentinel: sentinel,
		mem:      mem,
		status:   (*int32)(unsafe.Pointer(&mem[0])),
		buf:      mem[statusSize : statusSize+capacity],
	}, nil
}

// Close detaches the segment from this process. It is idempotent.
func (r *Region) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	mem := r.mem
	r.mem, r.buf, r.status = nil, nil, nil
	if err := unix.SysvShmDetach(mem); err != nil {
		return types.WrapError(types.ErrCodeInternal, "failed to detach shared memory segment", err)
	}
	return nil
}

// Remove marks the segment for destruction once every process has detached
func (r *Region) Remove() error {
	if _, err := unix.SysvShmCtl(r.id, unix.IPC_RMID, nil); err != nil {
		return types.WrapError(types.ErrCodeInternal, "failed to remove shared memory segment", err)
	}
	return nil
}

// RemoveRegion destroys the segment for key if one exists
func RemoveRegion(key int) error {
	id, err := unix.SysvShmGet(key, 0, 0)
	if errors.Is(err, unix.ENOENT) {
		return nil
	}
	if err != nil {
		return types.WrapError(types.ErrCodeUnavailable, "failed to look up shared memory segment", err)
	}
	if _, err := unix.SysvShmCtl(id, unix.IPC_RMID, nil); err != nil && !errors.Is(err, unix.EIDRM) && !errors.Is(err, unix.EINVAL) {
		return types.WrapError(types.ErrCodeInternal, "failed to remove shared memory segment", err)
	}
	return nil
}
