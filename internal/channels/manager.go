package channels

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nanogate/nanogate/internal/bus"
)

// PollInterval is how often Manager.Poll drains registered channels.
var PollInterval = 500 * time.Millisecond

// Manager holds the set of registered channels and drives inbound polling
// plus chunked outbound delivery.
type Manager struct {
	Logger *zap.Logger

	mu       sync.RWMutex
	channels map[string]Channel
}

// NewManager creates an empty channel manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{Logger: logger, channels: make(map[string]Channel)}
}

// Register adds a channel, keyed by its ID.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.ID()] = ch
}

// Get returns a registered channel by ID.
func (m *Manager) Get(id string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[id]
	return ch, ok
}

// IDs returns the registered channel IDs.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.channels))
	for id := range m.channels {
		ids = append(ids, id)
	}
	return ids
}

// Poll drains every registered channel's Receive on a fixed interval,
// invoking handle for each inbound message, until ctx is cancelled.
func (m *Manager) Poll(ctx context.Context, handle func(bus.InboundMessage)) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.drainOnce(handle)
		}
	}
}

// StartAll launches the background ingestion loop for every registered
// channel that has one: Telegram's long-poll Start, WhatsApp's websocket
// Run, and the file channel's ticker Run all feed BaseChannel's buffer,
// which Poll then drains. A loop that returns an error logs it and exits;
// it does not stop the other channels' loops. Channels reached instead
// through Mux (Feishu, Slack) have no loop to start here.
func (m *Manager) StartAll(ctx context.Context) {
	m.mu.RLock()
	channels := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		channels = append(channels, ch)
	}
	m.mu.RUnlock()

	for _, ch := range channels {
		ch := ch
		switch c := ch.(type) {
		case interface{ Start(ctx context.Context) error }:
			go func() {
				if err := c.Start(ctx); err != nil {
					m.Logger.Error("channel loop stopped", zap.String("channel", ch.ID()), zap.Error(err))
				}
			}()
		case interface{ Run(ctx context.Context) error }:
			go func() {
				if err := c.Run(ctx); err != nil {
					m.Logger.Error("channel loop stopped", zap.String("channel", ch.ID()), zap.Error(err))
				}
			}()
		case interface{ Run(ctx context.Context) }:
			go c.Run(ctx)
		}
	}
}

// Mux returns an HTTP handler mounting every registered webhook-based
// channel's HandleWebhook under /webhook/<channel-id>, for a caller that
// runs an HTTP server (Feishu and Slack both deliver events this way).
// Returns nil if no registered channel exposes a webhook handler.
func (m *Manager) Mux() *http.ServeMux {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var mux *http.ServeMux
	for id, ch := range m.channels {
		wh, ok := ch.(interface {
			HandleWebhook(w http.ResponseWriter, r *http.Request)
		})
		if !ok {
			continue
		}
		if mux == nil {
			mux = http.NewServeMux()
		}
		mux.HandleFunc("/webhook/"+id, wh.HandleWebhook)
	}
	return mux
}

func (m *Manager) drainOnce(handle func(bus.InboundMessage)) {
	m.mu.RLock()
	channels := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		channels = append(channels, ch)
	}
	m.mu.RUnlock()

	for _, ch := range channels {
		for {
			msg, ok := ch.Receive()
			if !ok {
				break
			}
			handle(msg)
		}
	}
}

// Send delivers text to recipient over the named channel, chunking as
// needed for the channel's max text length.
func (m *Manager) Send(channelID, recipient, text, threadID string) error {
	ch, ok := m.Get(channelID)
	if !ok {
		return fmt.Errorf("unknown channel %q", channelID)
	}
	for _, chunk := range ch.Chunk(text) {
		if err := ch.Send(recipient, chunk, threadID); err != nil {
			return err
		}
	}
	return nil
}

// SendCallback returns a channel+recipient+text+threadID delivery func for
// wiring into a queue worker's SendFunc adapter.
func (m *Manager) SendCallback() func(channel, recipient, text, threadID string) error {
	return m.Send
}
