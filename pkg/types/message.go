package types

import (
	"bytes"
	"fmt"
	"strings"
)

// MessageType is the message class tag carried by the queue backend
type MessageType int64

const (
	// MessageTypeAny asks the queue backend for the oldest message of any class
	MessageTypeAny MessageType = 0
	// MessageTypeText is the class the sender stamps on every line
	MessageTypeText MessageType = 1
)

// Message is one unit of transfer: a class tag plus a bounded text payload.
// Text is always shorter than the capacity it was built for, leaving room
// for the NUL terminator on the wire.
type Message struct {
	Type MessageType
	Text string
}

// NewMessage builds a message, silently truncating text to capacity-1 bytes
func NewMessage(typ MessageType, text string, capacity int) Message {
	return Message{Type: typ, Text: Truncate(text, capacity)}
}

// Truncate cuts s so that it fits a capacity-byte slot including its terminator
func Truncate(s string, capacity int) string {
	if capacity <= 0 {
		return ""
	}
	if len(s) > capacity-1 {
		return s[:capacity-1]
	}
	return s
}

// Encode writes the message text into dst followed by a NUL byte and returns
// the number of bytes written, terminator included. dst bounds the copy.
func (m Message) Encode(dst []byte) int {
	if len(dst) == 0 {
		return 0
	}
	n := copy(dst[:len(dst)-1], m.Text)
	dst[n] = 0
	return n + 1
}

// DecodeText reads a NUL-terminated payload from src. A payload without a
// terminator is cut one byte short of len(src), as the slot would have been.
func DecodeText(src []byte) string {
	if i := bytes.IndexByte(src, 0); i >= 0 {
		return string(src[:i])
	}
	if len(src) == 0 {
		return ""
	}
	return string(src[:len(src)-1])
}

// Mode selects the transport mechanism. The set is closed.
type Mode int

const (
	ModeQueue        Mode = 1
	ModeSharedMemory Mode = 2
)

// ParseMode converts a mechanism selector from the command line
func ParseMode(s string) (Mode, error) {
	switch strings.TrimSpace(s) {
	case "1":
		return ModeQueue, nil
	case "2":
		return ModeSharedMemory, nil
	default:
		return 0, NewError(ErrCodeInvalidArgument,
			fmt.Sprintf("unknown mechanism %q (must be 1=message passing or 2=shared memory)", s))
	}
}

// Valid reports whether m is one of the known modes
func (m Mode) Valid() bool {
	return m == ModeQueue || m == ModeSharedMemory
}

// String returns the short name used in logs and metric labels
func (m Mode) String() string {
	switch m {
	case ModeQueue:
		return "queue"
	case ModeSharedMemory:
		return "shm"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Title returns the banner printed when a process starts
func (m Mode) Title() string {
	switch m {
	case ModeQueue:
		return "Message Passing"
	case ModeSharedMemory:
		return "Shared Memory"
	default:
		return "Unknown"
	}
}

// SlotStatus is the status tag of the shared-memory slot
type SlotStatus int32

const (
	SlotEmpty        SlotStatus = 0
	SlotFull         SlotStatus = 1
	SlotExitSignaled SlotStatus = 2
)

// String returns the string representation of the slot status
func (s SlotStatus) String() string {
	switch s {
	case SlotEmpty:
		return "empty"
	case SlotFull:
		return "full"
	case SlotExitSignaled:
		return "exit"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Party identifies one side of the handshake
type Party int

const (
	Sender Party = iota
	Receiver
)

// Peer returns the other side
func (p Party) Peer() Party {
	if p == Sender {
		return Receiver
	}
	return Sender
}

// String returns the role name
func (p Party) String() string {
	if p == Sender {
		return "sender"
	}
	return "receiver"
}
