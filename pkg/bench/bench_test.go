package bench

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/billm/ipcbench/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMarker = "__GETOUT__"

type fakeOutbox struct {
	sent    []types.Message
	fail    map[int]error
	elapsed time.Duration
}

func (f *fakeOutbox) Send(msg types.Message) (time.Duration, error) {
	idx := len(f.sent)
	f.sent = append(f.sent, msg)
	return f.elapsed, f.fail[idx]
}

func (f *fakeOutbox) texts() []string {
	texts := make([]string, len(f.sent))
	for i, msg := range f.sent {
		texts[i] = msg.Text
	}
	return texts
}

type delivery struct {
	text string
	err  error
}

type fakeInbox struct {
	deliveries []delivery
	releases   int
	elapsed    time.Duration
}

func (f *fakeInbox) Receive() (types.Message, time.Duration, error) {
	if len(f.deliveries) == 0 {
		return types.Message{}, 0, types.NewError(types.ErrCodeFailedPrecondition, "nothing left")
	}
	d := f.deliveries[0]
	f.deliveries = f.deliveries[1:]
	if d.err != nil {
		return types.Message{}, f.elapsed, d.err
	}
	return types.Message{Type: types.MessageTypeText, Text: d.text}, f.elapsed, nil
}

func (f *fakeInbox) ReleaseTurn() error {
	f.releases++
	return nil
}

func newTestSender(outbox Outbox, out io.Writer, capacity int) *Sender {
	return NewSender(outbox, Options{
		Mode:       types.ModeQueue,
		ExitMarker: testMarker,
		Capacity:   capacity,
		Output:     out,
	})
}

func newTestReceiver(inbox Inbox, out io.Writer) *Receiver {
	return NewReceiver(inbox, Options{
		Mode:       types.ModeQueue,
		ExitMarker: testMarker,
		Output:     out,
	})
}

func TestSenderRun(t *testing.T) {
	outbox := &fakeOutbox{elapsed: time.Microsecond}
	var out bytes.Buffer

	result, err := newTestSender(outbox, &out, 1024).Run(strings.NewReader("first\nsecond\n\nlast"))
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second", "", "last", testMarker}, outbox.texts())
	for _, msg := range outbox.sent {
		assert.Equal(t, types.MessageTypeText, msg.Type)
	}

	assert.Equal(t, "Sending message:\tfirst\n"+
		"Sending message:\tsecond\n"+
		"Sending message:\t\n"+
		"Sending message:\tlast\n"+
		"End of input file! exit!\n"+
		"Total time taken in sending msg: 0.000005 s\n", out.String())

	assert.Equal(t, 5, result.Messages)
	assert.Equal(t, 0, result.Failures)
	assert.Equal(t, 5*time.Microsecond, result.Total)
}

func TestSenderEmptyInput(t *testing.T) {
	outbox := &fakeOutbox{}
	var out bytes.Buffer

	result, err := newTestSender(outbox, &out, 1024).Run(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, []string{testMarker}, outbox.texts())
	assert.Equal(t, "End of input file! exit!\n"+
		"Total time taken in sending msg: 0.000000 s\n", out.String())
	assert.Equal(t, 1, result.Messages)
}

func TestSenderTruncatesLines(t *testing.T) {
	outbox := &fakeOutbox{}
	var out bytes.Buffer

	_, err := newTestSender(outbox, &out, 4).Run(strings.NewReader("abcdef\n"))
	require.NoError(t, err)

	require.Len(t, outbox.sent, 2)
	assert.Equal(t, "abc", outbox.sent[0].Text)
	assert.Contains(t, out.String(), "Sending message:\tabc\n")
}

func TestSenderContinuesAfterFailure(t *testing.T) {
	outbox := &fakeOutbox{fail: map[int]error{
		1: types.NewError(types.ErrCodeUnavailable, "msgsnd failed"),
	}}
	var out bytes.Buffer

	result, err := newTestSender(outbox, &out, 1024).Run(strings.NewReader("a\nb\nc\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", testMarker}, outbox.texts())
	assert.Equal(t, 4, result.Messages)
	assert.Equal(t, 1, result.Failures)
	assert.Contains(t, out.String(), "End of input file! exit!\n")
}

func TestSenderStopsWhenReceiverAbandons(t *testing.T) {
	abandoned := types.WrapError(types.ErrCodeFailedPrecondition, "failed to acquire sender turn",
		types.NewError(types.ErrCodeFailedPrecondition, "semaphore /sem_sender_lab was abandoned"))
	outbox := &fakeOutbox{fail: map[int]error{1: abandoned}}
	var out bytes.Buffer

	result, err := newTestSender(outbox, &out, 1024).Run(strings.NewReader("a\nb\nc\n"))
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeFailedPrecondition))

	// no further lines and no exit marker once the receiver is gone
	assert.Equal(t, []string{"a", "b"}, outbox.texts())
	assert.Equal(t, "Sending message:\ta\n", out.String())
	assert.Equal(t, 2, result.Messages)
	assert.Equal(t, 1, result.Failures)
}

func TestSenderReadError(t *testing.T) {
	outbox := &fakeOutbox{}
	var out bytes.Buffer
	input := io.MultiReader(strings.NewReader("kept\n"), iotest.ErrReader(errors.New("disk gone")))

	result, err := newTestSender(outbox, &out, 1024).Run(input)
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeInternal))

	// the receiver still gets its exit marker
	assert.Equal(t, []string{"kept", testMarker}, outbox.texts())
	assert.Equal(t, 2, result.Messages)
}

func TestSenderKeepsSentinelLines(t *testing.T) {
	outbox := &fakeOutbox{}

	_, err := newTestSender(outbox, io.Discard, 1024).Run(strings.NewReader("a\n" + testMarker + "\nb\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", testMarker, "b", testMarker}, outbox.texts())
}

func TestReceiverRun(t *testing.T) {
	inbox := &fakeInbox{
		elapsed: 2 * time.Microsecond,
		deliveries: []delivery{
			{text: "one"},
			{text: ""},
			{text: "three"},
			{text: testMarker},
		},
	}
	var out bytes.Buffer

	result, err := newTestReceiver(inbox, &out).Run()
	require.NoError(t, err)

	assert.Equal(t, "Receiving message:\tone\n"+
		"Receiving message:\t\n"+
		"Receiving message:\tthree\n"+
		"Sender exit!\n"+
		"Total time taken in receiving msg: 0.000008 s\n", out.String())

	assert.Equal(t, 1, inbox.releases)
	assert.Equal(t, 4, result.Messages)
	assert.Equal(t, 8*time.Microsecond, result.Total)
	assert.Empty(t, inbox.deliveries)
}

func TestReceiverSkipsFailedCycle(t *testing.T) {
	inbox := &fakeInbox{
		deliveries: []delivery{
			{text: "before"},
			{err: types.NewError(types.ErrCodeUnavailable, "msgrcv failed")},
			{text: "after"},
			{text: testMarker},
		},
	}
	var out bytes.Buffer

	result, err := newTestReceiver(inbox, &out).Run()
	require.NoError(t, err)

	assert.Equal(t, "Receiving message:\tbefore\n"+
		"Receiving message:\tafter\n"+
		"Sender exit!\n"+
		"Total time taken in receiving msg: 0.000000 s\n", out.String())
	assert.Equal(t, 1, result.Failures)
}

func TestReceiverStopsOnUnusableInbox(t *testing.T) {
	inbox := &fakeInbox{deliveries: []delivery{{text: "only"}}}
	var out bytes.Buffer

	result, err := newTestReceiver(inbox, &out).Run()
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeFailedPrecondition))

	assert.Equal(t, "Receiving message:\tonly\n", out.String())
	assert.Equal(t, 0, inbox.releases)
	assert.Equal(t, 1, result.Failures)
}

func TestOptionsDefaults(t *testing.T) {
	s := NewSender(&fakeOutbox{}, Options{Mode: types.ModeSharedMemory})
	assert.Equal(t, testMarker, s.opts.ExitMarker)
	assert.Equal(t, 1024, s.opts.Capacity)
	assert.NotNil(t, s.Recorder())
	assert.NotNil(t, s.opts.Logger)

	r := NewReceiver(&fakeInbox{}, Options{})
	assert.NotNil(t, r.Recorder())
}
