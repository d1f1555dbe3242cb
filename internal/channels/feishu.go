package channels

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nanogate/nanogate/internal/bus"
)

// FeishuChannel implements the Feishu/Lark bot channel via webhook events.
// HandleWebhook is mounted onto an HTTP server by the caller; inbound
// messages are buffered for later Receive.
type FeishuChannel struct {
	BaseChannel
	AppID     string
	AppSecret string
	Logger    *zap.Logger

	accessToken string
	tokenExpiry time.Time
}

// NewFeishuChannel creates a FeishuChannel.
func NewFeishuChannel(appID, appSecret string, allowFrom []string, maxTextLength int, logger *zap.Logger) *FeishuChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeishuChannel{
		BaseChannel: BaseChannel{ChannelID: "feishu", MaxLength: maxTextLength, AllowFrom: allowFrom},
		AppID:       appID,
		AppSecret:   appSecret,
		Logger:      logger,
	}
}

// Send posts an interactive card message via the Feishu API.
func (f *FeishuChannel) Send(recipient, text, _ string) error {
	if err := f.ensureToken(); err != nil {
		return err
	}

	receiveIDType := "open_id"
	if strings.HasPrefix(recipient, "oc_") {
		receiveIDType = "chat_id"
	}

	card := map[string]any{
		"config":   map[string]any{"wide_screen_mode": true},
		"elements": []map[string]any{{"tag": "markdown", "content": text}},
	}
	cardJSON, err := json.Marshal(card)
	if err != nil {
		return err
	}
	body, err := json.Marshal(map[string]any{
		"receive_id": recipient,
		"msg_type":   "interactive",
		"content":    string(cardJSON),
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("https://open.feishu.cn/open-apis/im/v1/messages?receive_id_type=%s", receiveIDType)
	req, err := http.NewRequest("POST", url, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+f.accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// HandleWebhook processes a Feishu event callback, answering the URL
// verification handshake and buffering text messages.
func (f *FeishuChannel) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if challenge, ok := payload["challenge"].(string); ok {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"challenge": challenge})
		return
	}
	w.WriteHeader(http.StatusOK)

	header, _ := payload["header"].(map[string]any)
	event, _ := payload["event"].(map[string]any)
	if header == nil || event == nil {
		return
	}
	if eventType, _ := header["event_type"].(string); eventType != "im.message.receive_v1" {
		return
	}

	message, _ := event["message"].(map[string]any)
	sender, _ := event["sender"].(map[string]any)
	if message == nil || sender == nil {
		return
	}
	if senderType, _ := sender["sender_type"].(string); senderType == "bot" {
		return
	}

	senderID := "unknown"
	if sid, ok := sender["sender_id"].(map[string]any); ok {
		if oid, ok := sid["open_id"].(string); ok {
			senderID = oid
		}
	}

	chatID, _ := message["chat_id"].(string)
	msgType, _ := message["message_type"].(string)
	content, _ := message["content"].(string)

	var text string
	if msgType == "text" {
		var parsed map[string]string
		if json.Unmarshal([]byte(content), &parsed) == nil {
			text = parsed["text"]
		}
	} else {
		text = fmt.Sprintf("[%s]", msgType)
	}
	if text == "" {
		return
	}

	f.enqueue(bus.InboundMessage{
		Channel:  f.ChannelID,
		Sender:   senderID,
		Text:     text,
		ThreadID: chatID,
		Metadata: map[string]any{"msg_type": msgType},
	})
}

func (f *FeishuChannel) ensureToken() error {
	if time.Now().Before(f.tokenExpiry) {
		return nil
	}
	return f.refreshToken()
}

func (f *FeishuChannel) refreshToken() error {
	body, err := json.Marshal(map[string]string{"app_id": f.AppID, "app_secret": f.AppSecret})
	if err != nil {
		return err
	}
	resp, err := http.Post(
		"https://open.feishu.cn/open-apis/auth/v3/tenant_access_token/internal",
		"application/json",
		strings.NewReader(string(body)),
	)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}
	token, _ := result["tenant_access_token"].(string)
	expire, _ := result["expire"].(float64)
	if token == "" {
		return fmt.Errorf("feishu token refresh: no token in response")
	}
	f.accessToken = token
	f.tokenExpiry = time.Now().Add(time.Duration(expire-60) * time.Second)
	return nil
}
