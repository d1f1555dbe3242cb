package channels

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhatsAppChannel_ProcessBridgeMessage_TextMessage(t *testing.T) {
	w := NewWhatsAppChannel("", nil, 4096, nil)
	w.ProcessBridgeMessage(`{"type":"message","sender":"123@s.whatsapp.net","pn":"123@s.whatsapp.net","content":"hi there","id":"m1"}`)

	msg, ok := w.Receive()
	require.True(t, ok)
	assert.Equal(t, "123", msg.Sender)
	assert.Equal(t, "hi there", msg.Text)
}

func TestWhatsAppChannel_ProcessBridgeMessage_StatusUpdatesConnected(t *testing.T) {
	w := NewWhatsAppChannel("", nil, 4096, nil)
	w.ProcessBridgeMessage(`{"type":"status","status":"connected"}`)
	assert.True(t, w.connected)

	w.ProcessBridgeMessage(`{"type":"status","status":"disconnected"}`)
	assert.False(t, w.connected)
}

func TestWhatsAppChannel_ProcessBridgeMessage_IgnoresMalformed(t *testing.T) {
	w := NewWhatsAppChannel("", nil, 4096, nil)
	w.ProcessBridgeMessage("not json")

	_, ok := w.Receive()
	assert.False(t, ok)
}

func TestWhatsAppChannel_Send_NotConnected(t *testing.T) {
	w := NewWhatsAppChannel("", nil, 4096, nil)
	err := w.Send("123", "hi", "")
	assert.Error(t, err)
}

func TestWhatsAppChannel_Send_UsesSendFn(t *testing.T) {
	w := NewWhatsAppChannel("", nil, 4096, nil)
	var captured map[string]string
	w.sendFn = func(payload []byte) error {
		return json.Unmarshal(payload, &captured)
	}

	require.NoError(t, w.Send("123", "hi", ""))
	assert.Equal(t, "hi", captured["text"])
	assert.Equal(t, "123", captured["to"])
}

func TestWhatsAppChannel_DefaultBridgeURL(t *testing.T) {
	w := NewWhatsAppChannel("", nil, 4096, nil)
	assert.Equal(t, "ws://localhost:3001", w.BridgeURL)
}
