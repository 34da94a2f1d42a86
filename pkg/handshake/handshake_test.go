//go:build linux && (amd64 || arm64)

package handshake

import (
	"testing"
	"time"

	"github.com/billm/ipcbench/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		Dir:          t.TempDir(),
		SenderName:   "/sem_sender_test",
		ReceiverName: "/sem_receiver_test",
	}
}

func openTestHandshake(t *testing.T, opts Options) *Handshake {
	t.Helper()
	h, err := Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHandshakeInitialState(t *testing.T) {
	h := openTestHandshake(t, testOptions(t))

	v, err := h.Pending(types.Sender)
	require.NoError(t, err)
	assert.Equal(t, SenderInitial, v)

	v, err = h.Pending(types.Receiver)
	require.NoError(t, err)
	assert.Equal(t, ReceiverInitial, v)
}

func TestHandshakeSecondOpenKeepsState(t *testing.T) {
	opts := testOptions(t)
	first := openTestHandshake(t, opts)

	// the sender takes its turn and hands off before the peer appears
	require.NoError(t, first.AcquireTurn(types.Sender))
	require.NoError(t, first.ReleaseTurn(types.Sender))

	second := openTestHandshake(t, opts)
	v, err := second.Pending(types.Sender)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v)

	v, err = second.Pending(types.Receiver)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)
}

func TestHandshakeReceiverWaitsForSender(t *testing.T) {
	opts := testOptions(t)
	senderSide := openTestHandshake(t, opts)
	receiverSide := openTestHandshake(t, opts)

	acquired := make(chan error, 1)
	go func() {
		acquired <- receiverSide.AcquireTurn(types.Receiver)
	}()

	select {
	case <-acquired:
		t.Fatal("receiver acquired its turn before the sender released it")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, senderSide.AcquireTurn(types.Sender))
	require.NoError(t, senderSide.ReleaseTurn(types.Sender))

	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("receiver never got its turn")
	}
}

func TestHandshakeStrictAlternation(t *testing.T) {
	h := openTestHandshake(t, testOptions(t))
	const rounds = 200

	// slot is only touched while holding a turn
	var slot int
	received := make([]int, 0, rounds)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < rounds; i++ {
			if !assert.NoError(t, h.AcquireTurn(types.Receiver)) {
				return
			}
			received = append(received, slot)
			assert.NoError(t, h.ReleaseTurn(types.Receiver))
		}
	}()

	for i := 0; i < rounds; i++ {
		require.NoError(t, h.AcquireTurn(types.Sender))
		slot = i
		require.NoError(t, h.ReleaseTurn(types.Sender))
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("alternation stalled")
	}

	require.Len(t, received, rounds)
	for i, v := range received {
		assert.Equal(t, i, v)
	}
}

func TestHandshakeUnlink(t *testing.T) {
	opts := testOptions(t)
	h := openTestHandshake(t, opts)

	require.True(t, SemaphoreExists(opts.Dir, opts.SenderName))
	require.True(t, SemaphoreExists(opts.Dir, opts.ReceiverName))

	require.NoError(t, h.Unlink())
	assert.False(t, SemaphoreExists(opts.Dir, opts.SenderName))
	assert.False(t, SemaphoreExists(opts.Dir, opts.ReceiverName))

	// unlinking again is harmless
	require.NoError(t, Unlink(opts.Dir, opts.SenderName, opts.ReceiverName))
}

func TestHandshakeOpenFailureLeavesNothingOpen(t *testing.T) {
	opts := testOptions(t)
	opts.ReceiverName = "bad/name"

	_, err := Open(opts)
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeUnavailable))
}

func TestHandshakeAbandon(t *testing.T) {
	opts := testOptions(t)
	sender := openTestHandshake(t, opts)
	receiver := openTestHandshake(t, opts)

	acquired := make(chan error, 1)
	go func() { acquired <- receiver.AcquireTurn(types.Receiver) }()

	require.NoError(t, sender.Abandon())

	select {
	case err := <-acquired:
		require.Error(t, err)
		assert.True(t, types.IsErrCode(err, types.ErrCodeFailedPrecondition), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("receiver turn still blocked after abandon")
	}

	err := receiver.AcquireTurn(types.Sender)
	assert.True(t, types.IsErrCode(err, types.ErrCodeFailedPrecondition), "got %v", err)
	err = receiver.ReleaseTurn(types.Receiver)
	assert.True(t, types.IsErrCode(err, types.ErrCodeFailedPrecondition), "got %v", err)
}

func TestHandshakeClosedKeepsErrorCode(t *testing.T) {
	h := openTestHandshake(t, testOptions(t))
	require.NoError(t, h.Close())

	err := h.AcquireTurn(types.Sender)
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeFailedPrecondition), "got %v", err)

	err = h.ReleaseTurn(types.Sender)
	assert.True(t, types.IsErrCode(err, types.ErrCodeFailedPrecondition), "got %v", err)
}
