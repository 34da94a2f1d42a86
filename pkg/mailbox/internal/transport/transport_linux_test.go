//go:build linux && (amd64 || arm64)

package transport

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/billm/ipcbench/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

const testSentinel = "__GETOUT__"

// skipIfNoSysV skips when the kernel or sandbox refuses System V IPC
func skipIfNoSysV(t *testing.T, err error) {
	t.Helper()
	if errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
		t.Skipf("System V IPC unavailable: %v", err)
	}
}

func testKey(t *testing.T, projectID int) int {
	t.Helper()
	key, err := Key(t.TempDir(), projectID)
	require.NoError(t, err)
	return key
}

func openTestQueue(t *testing.T, key, capacity int) *Queue {
	t.Helper()
	q, err := OpenQueue(key, capacity)
	skipIfNoSysV(t, err)
	require.NoError(t, err)
	t.Cleanup(func() {
		q.Close()
		RemoveQueue(key)
	})
	return q
}

func openTestRegion(t *testing.T, key, capacity int) *Region {
	t.Helper()
	r, err := OpenRegion(key, capacity, testSentinel)
	skipIfNoSysV(t, err)
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Close()
		RemoveRegion(key)
	})
	return r
}

func TestKeyMatchesFtokLayout(t *testing.T) {
	dir := t.TempDir()

	var st unix.Stat_t
	require.NoError(t, unix.Stat(dir, &st))

	key, err := Key(dir, 0x66)
	require.NoError(t, err)

	k := uint32(key)
	assert.Equal(t, uint32(st.Ino&0xffff), k&0xffff)
	assert.Equal(t, uint32(st.Dev&0xff), (k>>16)&0xff)
	assert.Equal(t, uint32(0x66), k>>24)

	again, err := Key(dir, 0x66)
	require.NoError(t, err)
	assert.Equal(t, key, again)

	other, err := Key(dir, 0x55)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestKeyErrors(t *testing.T) {
	_, err := Key(t.TempDir(), 0x100)
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalidArgument))

	_, err = Key("/nonexistent/ipcbench/path", 0x66)
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeUnavailable))
	assert.ErrorIs(t, err, unix.ENOENT)
}

func TestCapacityValidation(t *testing.T) {
	_, err := OpenQueue(1, 1)
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalidArgument))

	_, err = OpenRegion(1, 1, "x")
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalidArgument))

	_, err = OpenRegion(1, 4, testSentinel)
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalidArgument))
}

func TestQueuePutGetOrder(t *testing.T) {
	q := openTestQueue(t, testKey(t, 0x66), 64)

	texts := []string{"first", "", "third line", testSentinel}
	for _, text := range texts {
		require.NoError(t, q.Put(types.Message{Type: types.MessageTypeText, Text: text}))
	}

	for _, want := range texts {
		msg, err := q.Get()
		require.NoError(t, err)
		assert.Equal(t, types.MessageTypeText, msg.Type)
		assert.Equal(t, want, msg.Text)
	}
}

func TestQueueTruncatesLongText(t *testing.T) {
	q := openTestQueue(t, testKey(t, 0x66), 8)

	require.NoError(t, q.Put(types.Message{Type: types.MessageTypeText, Text: strings.Repeat("x", 20)}))
	msg, err := q.Get()
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 7), msg.Text)
}

func TestQueueRejectsNonPositiveType(t *testing.T) {
	q := openTestQueue(t, testKey(t, 0x66), 16)

	err := q.Put(types.Message{Type: types.MessageTypeAny, Text: "x"})
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalidArgument))
}

func TestQueueSharedBetweenHandles(t *testing.T) {
	key := testKey(t, 0x66)
	producer := openTestQueue(t, key, 32)
	consumer := openTestQueue(t, key, 32)
	assert.Equal(t, producer.ID(), consumer.ID())

	got := make(chan types.Message, 1)
	go func() {
		msg, err := consumer.Get()
		assert.NoError(t, err)
		got <- msg
	}()

	select {
	case <-got:
		t.Fatal("Get returned before anything was queued")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, producer.Put(types.Message{Type: types.MessageTypeText, Text: "hello"}))

	select {
	case msg := <-got:
		assert.Equal(t, "hello", msg.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("Get never returned")
	}
}

func TestQueueClosed(t *testing.T) {
	q := openTestQueue(t, testKey(t, 0x66), 16)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	err := q.Put(types.Message{Type: types.MessageTypeText, Text: "x"})
	assert.True(t, types.IsErrCode(err, types.ErrCodeFailedPrecondition))

	_, err = q.Get()
	assert.True(t, types.IsErrCode(err, types.ErrCodeFailedPrecondition))
}

func TestQueueRemove(t *testing.T) {
	key := testKey(t, 0x66)
	q := openTestQueue(t, key, 16)

	require.NoError(t, q.Remove())

	err := q.Put(types.Message{Type: types.MessageTypeText, Text: "x"})
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeUnavailable))

	require.NoError(t, RemoveQueue(key))
}

func TestRemoveQueueMissing(t *testing.T) {
	assert.NoError(t, RemoveQueue(testKey(t, 0x66)))
}

func TestRegionStatusTransitions(t *testing.T) {
	r := openTestRegion(t, testKey(t, 0x55), 32)

	require.NoError(t, r.Reset())
	status, err := r.Status()
	require.NoError(t, err)
	assert.Equal(t, types.SlotEmpty, status)

	require.NoError(t, r.Put(types.Message{Type: types.MessageTypeText, Text: "payload"}))
	status, err = r.Status()
	require.NoError(t, err)
	assert.Equal(t, types.SlotFull, status)

	msg, err := r.Get()
	require.NoError(t, err)
	assert.Equal(t, "payload", msg.Text)
	status, err = r.Status()
	require.NoError(t, err)
	assert.Equal(t, types.SlotEmpty, status)

	require.NoError(t, r.Put(types.Message{Type: types.MessageTypeText, Text: testSentinel}))
	status, err = r.Status()
	require.NoError(t, err)
	assert.Equal(t, types.SlotExitSignaled, status)

	msg, err = r.Get()
	require.NoError(t, err)
	assert.Equal(t, testSentinel, msg.Text)
}

func TestRegionOverwritesShorterText(t *testing.T) {
	r := openTestRegion(t, testKey(t, 0x55), 32)

	require.NoError(t, r.Put(types.Message{Type: types.MessageTypeText, Text: "a much longer line"}))
	require.NoError(t, r.Put(types.Message{Type: types.MessageTypeText, Text: "short"}))

	msg, err := r.Get()
	require.NoError(t, err)
	assert.Equal(t, "short", msg.Text)
}

func TestRegionTruncatesLongText(t *testing.T) {
	r := openTestRegion(t, testKey(t, 0x55), 16)

	require.NoError(t, r.Put(types.Message{Type: types.MessageTypeText, Text: strings.Repeat("y", 40)}))
	msg, err := r.Get()
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("y", 15), msg.Text)
}

func TestRegionSharedBetweenHandles(t *testing.T) {
	key := testKey(t, 0x55)
	writer := openTestRegion(t, key, 32)
	reader := openTestRegion(t, key, 32)
	assert.Equal(t, writer.ID(), reader.ID())

	require.NoError(t, writer.Put(types.Message{Type: types.MessageTypeText, Text: "across"}))

	status, err := reader.Status()
	require.NoError(t, err)
	assert.Equal(t, types.SlotFull, status)

	msg, err := reader.Get()
	require.NoError(t, err)
	assert.Equal(t, "across", msg.Text)

	status, err = writer.Status()
	require.NoError(t, err)
	assert.Equal(t, types.SlotEmpty, status)
}

func TestRegionClosed(t *testing.T) {
	r := openTestRegion(t, testKey(t, 0x55), 16)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	err := r.Put(types.Message{Type: types.MessageTypeText, Text: "x"})
	assert.True(t, types.IsErrCode(err, types.ErrCodeFailedPrecondition))

	_, err = r.Get()
	assert.True(t, types.IsErrCode(err, types.ErrCodeFailedPrecondition))

	err = r.Reset()
	assert.True(t, types.IsErrCode(err, types.ErrCodeFailedPrecondition))
}

func TestRegionRemove(t *testing.T) {
	key := testKey(t, 0x55)
	r := openTestRegion(t, key, 16)

	require.NoError(t, r.Close())
	require.NoError(t, r.Remove())
	require.NoError(t, RemoveRegion(key))
}

func TestTransportInterface(t *testing.T) {
	var _ Transport = (*Queue)(nil)
	var _ Transport = (*Region)(nil)
}
