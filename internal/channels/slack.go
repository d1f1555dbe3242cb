package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nanogate/nanogate/internal/bus"
)

// SlackChannel implements the Slack bot channel via the Events API.
// ProcessEvent is called by the webhook endpoint for each event; the
// running bot identity is fetched once at construction time.
type SlackChannel struct {
	BaseChannel
	BotToken  string
	BotUserID string
	Logger    *zap.Logger

	client *http.Client
}

// NewSlackChannel creates a SlackChannel and resolves its own bot user ID.
func NewSlackChannel(ctx context.Context, botToken string, allowFrom []string, maxTextLength int, logger *zap.Logger) (*SlackChannel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if botToken == "" {
		return nil, fmt.Errorf("slack bot token not configured")
	}
	s := &SlackChannel{
		BaseChannel: BaseChannel{ChannelID: "slack", MaxLength: maxTextLength, AllowFrom: allowFrom},
		BotToken:    botToken,
		Logger:      logger,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
	if result, err := s.slackAPI("auth.test", nil); err == nil {
		if uid, ok := result["user_id"].(string); ok {
			s.BotUserID = uid
		}
	}
	return s, nil
}

// Send posts a message via chat.postMessage, threading it under threadID
// (as thread_ts) whenever threadID is non-empty.
func (s *SlackChannel) Send(recipient, text, threadID string) error {
	params := map[string]any{"channel": recipient, "text": text}
	if threadID != "" {
		params["thread_ts"] = threadID
	}
	_, err := s.slackAPI("chat.postMessage", params)
	return err
}

// ProcessEvent handles one decoded Slack Events API event, buffering it as
// an inbound message unless it's a bot echo, subtype event, or duplicate
// mention.
func (s *SlackChannel) ProcessEvent(event map[string]any) {
	eventType, _ := event["type"].(string)
	if eventType != "message" && eventType != "app_mention" {
		return
	}
	if event["subtype"] != nil {
		return
	}

	sender, _ := event["user"].(string)
	channel, _ := event["channel"].(string)
	text, _ := event["text"].(string)
	if sender == "" || channel == "" {
		return
	}
	if s.BotUserID != "" && sender == s.BotUserID {
		return
	}
	if eventType == "message" && s.BotUserID != "" && strings.Contains(text, "<@"+s.BotUserID+">") {
		return
	}
	text = s.stripBotMention(text)

	threadID, _ := event["thread_ts"].(string)
	if threadID == "" {
		threadID, _ = event["ts"].(string)
	}

	s.enqueue(bus.InboundMessage{
		Channel:  s.ChannelID,
		Sender:   sender,
		Text:     text,
		ThreadID: threadID,
		Metadata: map[string]any{"slack_channel": channel},
	})
}

// HandleWebhook processes a Slack Events API HTTP callback: it answers the
// url_verification handshake and hands event_callback payloads to
// ProcessEvent.
func (s *SlackChannel) HandleWebhook(w http.ResponseWriter, r *http.Request) {
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

	if payload["type"] != "event_callback" {
		return
	}
	event, _ := payload["event"].(map[string]any)
	if event == nil {
		return
	}
	s.ProcessEvent(event)
}

func (s *SlackChannel) stripBotMention(text string) string {
	if text == "" || s.BotUserID == "" {
		return text
	}
	return strings.TrimSpace(strings.ReplaceAll(text, "<@"+s.BotUserID+">", ""))
}

func (s *SlackChannel) slackAPI(method string, params map[string]any) (map[string]any, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest("POST", "https://slack.com/api/"+method, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.BotToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return result, nil
}
