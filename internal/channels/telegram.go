package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nanogate/nanogate/internal/bus"
)

// TelegramChannel implements a Telegram bot via long polling. Start runs
// the polling loop in the background, feeding BaseChannel's buffer; Receive
// drains it non-blockingly per the Channel contract.
type TelegramChannel struct {
	BaseChannel
	Token  string
	Logger *zap.Logger

	client *http.Client
}

// NewTelegramChannel creates a TelegramChannel with the given bot token.
func NewTelegramChannel(token string, allowFrom []string, maxTextLength int, logger *zap.Logger) *TelegramChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramChannel{
		BaseChannel: BaseChannel{ChannelID: "telegram", MaxLength: maxTextLength, AllowFrom: allowFrom},
		Token:       token,
		Logger:      logger,
		client:      &http.Client{Timeout: 60 * time.Second},
	}
}

// Start begins long polling for updates until ctx is cancelled.
func (t *TelegramChannel) Start(ctx context.Context) error {
	if t.Token == "" {
		return fmt.Errorf("telegram bot token not configured")
	}
	offset := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		updates, err := t.apiCall("getUpdates", map[string]any{
			"offset":          offset,
			"timeout":         30,
			"allowed_updates": []string{"message"},
		})
		if err != nil {
			t.Logger.Warn("telegram getUpdates failed", zap.Error(err))
			sleep(ctx, ErrorBackoff)
			continue
		}

		results, _ := updates["result"].([]any)
		for _, u := range results {
			update, ok := u.(map[string]any)
			if !ok {
				continue
			}
			if uid, ok := update["update_id"].(float64); ok {
				offset = int(uid) + 1
			}
			t.processUpdate(update)
		}
	}
}

// Send delivers text via the Telegram Bot API, falling back to plain text
// if HTML formatting is rejected.
func (t *TelegramChannel) Send(recipient, text, _ string) error {
	html := MarkdownToTelegramHTML(text)
	_, err := t.apiCall("sendMessage", map[string]any{
		"chat_id":    recipient,
		"text":       html,
		"parse_mode": "HTML",
	})
	if err != nil {
		_, err = t.apiCall("sendMessage", map[string]any{"chat_id": recipient, "text": text})
	}
	return err
}

func (t *TelegramChannel) processUpdate(update map[string]any) {
	msg, ok := update["message"].(map[string]any)
	if !ok {
		return
	}
	from, _ := msg["from"].(map[string]any)
	chat, _ := msg["chat"].(map[string]any)
	if from == nil || chat == nil {
		return
	}

	sender := fmt.Sprintf("%.0f", from["id"])
	if username, ok := from["username"].(string); ok && username != "" {
		sender = fmt.Sprintf("%s|%s", sender, username)
	}
	text, _ := msg["text"].(string)
	if caption, ok := msg["caption"].(string); text == "" && ok {
		text = caption
	}
	if text == "" {
		return
	}

	t.enqueue(bus.InboundMessage{
		Channel:  t.ChannelID,
		Sender:   sender,
		Text:     text,
		Metadata: map[string]any{"chat_id": fmt.Sprintf("%.0f", chat["id"]), "message_id": msg["message_id"]},
	})
}

func (t *TelegramChannel) apiCall(method string, params map[string]any) (map[string]any, error) {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/%s", t.Token, method)
	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest("POST", url, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
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

// MarkdownToTelegramHTML converts a soul-authored markdown reply into
// Telegram-safe HTML, since Telegram's Bot API has no markdown mode that
// supports both code blocks and links reliably.
func MarkdownToTelegramHTML(text string) string {
	if text == "" {
		return ""
	}

	var codeBlocks []string
	codeBlockRe := regexp.MustCompile("(?s)```[\\w]*\\n?([\\s\\S]*?)```")
	text = codeBlockRe.ReplaceAllStringFunc(text, func(m string) string {
		matches := codeBlockRe.FindStringSubmatch(m)
		if len(matches) > 1 {
			codeBlocks = append(codeBlocks, matches[1])
			return fmt.Sprintf("\x00CB%d\x00", len(codeBlocks)-1)
		}
		return m
	})

	var inlineCodes []string
	inlineCodeRe := regexp.MustCompile("`([^`]+)`")
	text = inlineCodeRe.ReplaceAllStringFunc(text, func(m string) string {
		matches := inlineCodeRe.FindStringSubmatch(m)
		if len(matches) > 1 {
			inlineCodes = append(inlineCodes, matches[1])
			return fmt.Sprintf("\x00IC%d\x00", len(inlineCodes)-1)
		}
		return m
	})

	headingRe := regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	text = headingRe.ReplaceAllString(text, "$1")

	bqRe := regexp.MustCompile(`(?m)^>\s*(.*)$`)
	text = bqRe.ReplaceAllString(text, "$1")

	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")

	linkRe := regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	text = linkRe.ReplaceAllString(text, `<a href="$2">$1</a>`)

	boldRe := regexp.MustCompile(`\*\*(.+?)\*\*`)
	text = boldRe.ReplaceAllString(text, "<b>$1</b>")
	boldRe2 := regexp.MustCompile(`__(.+?)__`)
	text = boldRe2.ReplaceAllString(text, "<b>$1</b>")

	strikeRe := regexp.MustCompile(`~~(.+?)~~`)
	text = strikeRe.ReplaceAllString(text, "<s>$1</s>")

	bulletRe := regexp.MustCompile(`(?m)^[-*]\s+`)
	text = bulletRe.ReplaceAllString(text, "• ")

	for i, code := range inlineCodes {
		text = strings.ReplaceAll(text, fmt.Sprintf("\x00IC%d\x00", i), "<code>"+escapeHTML(code)+"</code>")
	}
	for i, code := range codeBlocks {
		text = strings.ReplaceAll(text, fmt.Sprintf("\x00CB%d\x00", i), "<pre><code>"+escapeHTML(code)+"</code></pre>")
	}
	return text
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
