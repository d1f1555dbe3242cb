package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nanogate/nanogate/internal/bus"
)

// WhatsAppChannel bridges to a WhatsApp gateway process over a websocket
// connection. Run dials the bridge and processes frames until ctx is
// cancelled; Send writes a JSON frame back over the same connection.
type WhatsAppChannel struct {
	BaseChannel
	BridgeURL string
	Logger    *zap.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool

	// sendFn overrides frame delivery, for testing without a live socket.
	sendFn func(payload []byte) error
}

// NewWhatsAppChannel creates a WhatsAppChannel targeting a bridge websocket
// URL (defaulting to a local bridge process).
func NewWhatsAppChannel(bridgeURL string, allowFrom []string, maxTextLength int, logger *zap.Logger) *WhatsAppChannel {
	if bridgeURL == "" {
		bridgeURL = "ws://localhost:3001"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WhatsAppChannel{
		BaseChannel: BaseChannel{ChannelID: "whatsapp", MaxLength: maxTextLength, AllowFrom: allowFrom},
		BridgeURL:   bridgeURL,
		Logger:      logger,
	}
}

// Run dials the bridge and reads frames until ctx is cancelled or the
// connection drops, reconnecting after ErrorBackoff.
func (w *WhatsAppChannel) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.BridgeURL, nil)
		if err != nil {
			w.Logger.Warn("whatsapp bridge dial failed", zap.Error(err))
			sleep(ctx, ErrorBackoff)
			continue
		}
		w.mu.Lock()
		w.conn = conn
		w.mu.Unlock()

		w.readLoop(ctx, conn)

		w.mu.Lock()
		w.conn = nil
		w.connected = false
		w.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		default:
			sleep(ctx, ErrorBackoff)
		}
	}
}

func (w *WhatsAppChannel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		default:
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		w.ProcessBridgeMessage(string(raw))
	}
}

// Send writes an outbound text frame to the bridge, or through sendFn when
// set for tests.
func (w *WhatsAppChannel) Send(recipient, text, _ string) error {
	payload, err := json.Marshal(map[string]string{"type": "send", "to": recipient, "text": text})
	if err != nil {
		return err
	}
	if w.sendFn != nil {
		return w.sendFn(payload)
	}

	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("whatsapp bridge not connected")
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// ProcessBridgeMessage handles one decoded frame from the bridge: chat
// messages are buffered as inbound, status/qr/error frames update state or
// are logged.
func (w *WhatsAppChannel) ProcessBridgeMessage(raw string) {
	var data map[string]any
	if json.Unmarshal([]byte(raw), &data) != nil {
		return
	}

	switch msgType, _ := data["type"].(string); msgType {
	case "message":
		sender, _ := data["sender"].(string)
		pn, _ := data["pn"].(string)
		content, _ := data["content"].(string)

		id := pn
		if id == "" {
			id = sender
		}
		if idx := strings.Index(id, "@"); idx >= 0 {
			id = id[:idx]
		}

		w.enqueue(bus.InboundMessage{
			Channel:  w.ChannelID,
			Sender:   id,
			Text:     content,
			ThreadID: sender,
			Metadata: map[string]any{"message_id": data["id"], "is_group": data["isGroup"]},
		})

	case "status":
		status, _ := data["status"].(string)
		w.mu.Lock()
		w.connected = status == "connected"
		w.mu.Unlock()

	case "qr":
		w.Logger.Info("whatsapp bridge awaiting QR scan")

	case "error":
		errMsg, _ := data["error"].(string)
		w.Logger.Warn("whatsapp bridge error", zap.String("error", errMsg))
	}
}
