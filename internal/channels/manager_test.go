package channels

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanogate/nanogate/internal/bus"
)

type mockChannel struct {
	BaseChannel
	sent []string
}

func newMockChannel(id string) *mockChannel {
	return &mockChannel{BaseChannel: BaseChannel{ChannelID: id, MaxLength: 4096}}
}

func (m *mockChannel) Send(recipient, text, _ string) error {
	m.sent = append(m.sent, recipient+":"+text)
	return nil
}

// runnerChannel is a mock channel with a background ingestion loop, like
// WhatsApp's Run.
type runnerChannel struct {
	BaseChannel
	started chan struct{}
}

func newRunnerChannel(id string) *runnerChannel {
	return &runnerChannel{
		BaseChannel: BaseChannel{ChannelID: id, MaxLength: 4096},
		started:     make(chan struct{}, 1),
	}
}

func (r *runnerChannel) Send(recipient, text, _ string) error { return nil }

func (r *runnerChannel) Run(ctx context.Context) error {
	r.started <- struct{}{}
	<-ctx.Done()
	return nil
}

// webhookChannel is a mock channel reached via HTTP instead of a poll loop,
// like Feishu and Slack.
type webhookChannel struct {
	BaseChannel
	hits int
}

func (w *webhookChannel) Send(recipient, text, _ string) error { return nil }

func (w *webhookChannel) HandleWebhook(rw http.ResponseWriter, r *http.Request) {
	w.hits++
	rw.WriteHeader(http.StatusOK)
}

func TestManager_RegisterAndGet(t *testing.T) {
	m := NewManager(nil)
	ch := newMockChannel("mock")
	m.Register(ch)

	got, ok := m.Get("mock")
	assert.True(t, ok)
	assert.Equal(t, ch, got)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestManager_IDs(t *testing.T) {
	m := NewManager(nil)
	m.Register(newMockChannel("a"))
	m.Register(newMockChannel("b"))
	assert.ElementsMatch(t, []string{"a", "b"}, m.IDs())
}

func TestManager_Send_ChunksAndDelivers(t *testing.T) {
	m := NewManager(nil)
	ch := newMockChannel("mock")
	ch.MaxLength = 5
	m.Register(ch)

	err := m.Send("mock", "u1", "ab\ncd\nef", "")
	require.NoError(t, err)
	assert.NotEmpty(t, ch.sent)
}

func TestManager_Send_UnknownChannel(t *testing.T) {
	m := NewManager(nil)
	err := m.Send("nope", "u1", "hi", "")
	assert.Error(t, err)
}

func TestManager_Poll_DispatchesBufferedMessages(t *testing.T) {
	m := NewManager(nil)
	ch := newMockChannel("mock")
	m.Register(ch)
	ch.enqueue(bus.InboundMessage{Channel: "mock", Sender: "u1", Text: "hello"})

	received := make(chan bus.InboundMessage, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	oldInterval := PollInterval
	PollInterval = 10 * time.Millisecond
	defer func() { PollInterval = oldInterval }()

	go m.Poll(ctx, func(msg bus.InboundMessage) { received <- msg })

	select {
	case msg := <-received:
		assert.Equal(t, "hello", msg.Text)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for polled message")
	}
}

func TestManager_SendCallback(t *testing.T) {
	m := NewManager(nil)
	ch := newMockChannel("mock")
	m.Register(ch)

	cb := m.SendCallback()
	require.NoError(t, cb("mock", "u1", "hi", ""))
	assert.Equal(t, []string{"u1:hi"}, ch.sent)
}

func TestManager_StartAll_LaunchesRunLoops(t *testing.T) {
	m := NewManager(nil)
	rc := newRunnerChannel("runner")
	m.Register(rc)
	m.Register(newMockChannel("no-loop"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.StartAll(ctx)

	select {
	case <-rc.started:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for run loop to start")
	}
}

func TestManager_Mux_MountsWebhookChannels(t *testing.T) {
	m := NewManager(nil)
	wc := &webhookChannel{BaseChannel: BaseChannel{ChannelID: "webhook", MaxLength: 4096}}
	m.Register(wc)
	m.Register(newMockChannel("no-webhook"))

	mux := m.Mux()
	require.NotNil(t, mux)

	req := httptest.NewRequest(http.MethodPost, "/webhook/webhook", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, 1, wc.hits)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestManager_Mux_NilWhenNoWebhookChannels(t *testing.T) {
	m := NewManager(nil)
	m.Register(newMockChannel("no-webhook"))
	assert.Nil(t, m.Mux())
}
