//go:build linux && (amd64 || arm64)

package transport

import (
	"fmt"

	"github.com/billm/ipcbench/pkg/types"
	"golang.org/x/sys/unix"
)

// Key derives a System V IPC key from an existing path and a project id the
// same way ftok(3) does, so a C peer using ftok agrees on the key.
func Key(path string, projectID int) (int, error) {
	if projectID&0xff == 0 {
		return 0, types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("project id %#x has a zero low byte", projectID))
	}

	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, types.WrapError(types.ErrCodeUnavailable, "failed to derive ipc key from "+path, err)
	}

	k := uint32(st.Ino&0xffff) |
		uint32(st.Dev&0xff)<<16 |
		uint32(projectID&0xff)<<24
	return int(int32(k)), nil
}
