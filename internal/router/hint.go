package router

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nanogate/nanogate/internal/backend"
	"github.com/nanogate/nanogate/internal/message"
)

// Role describes an agent as seen by the semantic hinter.
type Role struct {
	ID          string
	Description string
}

// SemanticHint is a non-authoritative classifier that guesses which agent a
// message is "really" about, for logging and diagnostics only. It never
// overrides a binding resolution.
type SemanticHint struct {
	client       backend.Client
	model        string
	systemPrompt string
	validIDs     map[string]bool
	logger       *zap.Logger

	mu    sync.Mutex
	cache map[string]hintCacheEntry
}

type hintCacheEntry struct {
	agentID string
	ts      time.Time
}

const (
	hintCacheTTL = 60 * time.Second
	hintCacheMax = 256
)

const hintSystemPrompt = `Classify the primary agent for the message. Available agents:

%s

Reply with strict JSON: {"agent_id": "<id>"}. If uncertain, use "general".`

// NewSemanticHint builds a hinter over the given roles.
func NewSemanticHint(roles []Role, model string, client backend.Client, logger *zap.Logger) *SemanticHint {
	var block strings.Builder
	valid := make(map[string]bool, len(roles))
	for _, r := range roles {
		fmt.Fprintf(&block, "- %s: %s\n", r.ID, r.Description)
		valid[r.ID] = true
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemanticHint{
		client:       client,
		model:        model,
		systemPrompt: fmt.Sprintf(hintSystemPrompt, block.String()),
		validIDs:     valid,
		logger:       logger,
		cache:        make(map[string]hintCacheEntry, hintCacheMax),
	}
}

// Classify returns a best-guess agent id for content, or "" if unavailable.
// Errors are logged and swallowed; this call must never block routing.
func (h *SemanticHint) Classify(ctx context.Context, content string) string {
	content = strings.TrimSpace(content)
	if content == "" || h.client == nil {
		return ""
	}

	key := contentHash(content)
	h.mu.Lock()
	if entry, ok := h.cache[key]; ok && time.Since(entry.ts) < hintCacheTTL {
		h.mu.Unlock()
		return entry.agentID
	}
	h.mu.Unlock()

	resp, err := h.client.Chat(ctx, backend.Request{
		System:      h.systemPrompt,
		History:     []message.Message{message.NewTextMessage(message.RoleUser, content)},
		Model:       h.model,
		MaxTokens:   60,
		Temperature: 0.1,
	})
	if err != nil {
		h.logger.Debug("semantic hint call failed", zap.Error(err))
		return ""
	}

	var parsed struct {
		AgentID string `json:"agent_id"`
	}
	raw := strings.TrimSpace(resp.Text())
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || !h.validIDs[parsed.AgentID] {
		h.logger.Debug("semantic hint unparseable or unknown agent", zap.String("raw", raw))
		return ""
	}

	h.mu.Lock()
	if len(h.cache) >= hintCacheMax {
		var oldestKey string
		var oldestTime time.Time
		for k, v := range h.cache {
			if oldestKey == "" || v.ts.Before(oldestTime) {
				oldestKey, oldestTime = k, v.ts
			}
		}
		delete(h.cache, oldestKey)
	}
	h.cache[key] = hintCacheEntry{agentID: parsed.AgentID, ts: time.Now()}
	h.mu.Unlock()

	return parsed.AgentID
}

func contentHash(content string) string {
	text := strings.ToLower(content)
	if len(text) > 200 {
		text = text[:200]
	}
	sum := md5.Sum([]byte(text))
	return fmt.Sprintf("%x", sum[:6])
}
