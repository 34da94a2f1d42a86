//go:build !(linux && (amd64 || arm64))

package transport

import (
	"github.com/billm/ipcbench/pkg/types"
)

// Key is only implemented on linux
func Key(path string, projectID int) (int, error) {
	return 0, errUnsupported("ipc key derivation")
}

// OpenQueue is only implemented on linux
func OpenQueue(key, capacity int) (*Queue, error) {
	return nil, errUnsupported("message queue")
}

func (q *Queue) Put(msg types.Message) error {
	return errUnsupported("message queue")
}

func (q *Queue) Get() (types.Message, error) {
	return types.Message{}, errUnsupported("message queue")
}

func (q *Queue) Remove() error {
	return errUnsupported("message queue")
}

// RemoveQueue is only implemented on linux
func RemoveQueue(key int) error {
	return errUnsupported("message queue")
}

// OpenRegion is only implemented on linux
func OpenRegion(key, capacity int, sentinel string) (*Region, error) {
	return nil, errUnsupported("shared memory region")
}

func (r *Region) Close() error {
	return nil
}

func (r *Region) Remove() error {
	return errUnsupported("shared memory region")
}

// RemoveRegion is only implemented on linux
func RemoveRegion(key int) error {
	return errUnsupported("shared memory region")
}
