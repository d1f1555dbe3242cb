// Package channels defines the Channel interface for chat platform
// integrations and shared plumbing for buffering, allowlisting, and
// chunking outbound text.
package channels

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nanogate/nanogate/internal/bus"
)

// Channel is the interface every chat platform integration implements.
// Delivery is pull-based: platform-specific goroutines (long polling,
// webhook handlers, websocket readers) feed BaseChannel's internal buffer,
// and callers drain it with Receive.
type Channel interface {
	// ID returns the channel identifier (e.g. "telegram", "file").
	ID() string

	// MaxTextLength returns the largest single message this channel accepts.
	MaxTextLength() int

	// Receive returns the next pending inbound message, if any, without
	// blocking.
	Receive() (bus.InboundMessage, bool)

	// Send delivers text to recipient, optionally within an existing thread.
	Send(recipient, text, threadID string) error

	// Chunk splits text into pieces no longer than MaxTextLength.
	Chunk(text string) []string
}

// BaseChannel provides shared logic for all channel implementations:
// sender allowlisting, an inbound buffer, and paragraph-aware chunking.
type BaseChannel struct {
	ChannelID string
	MaxLength int
	AllowFrom []string

	mu    sync.Mutex
	inbox []bus.InboundMessage
}

// ID returns the channel identifier.
func (b *BaseChannel) ID() string { return b.ChannelID }

// MaxTextLength returns the configured chunking limit.
func (b *BaseChannel) MaxTextLength() int { return b.MaxLength }

// IsAllowed reports whether a sender is permitted to interact with the bot.
// An empty allowlist permits everyone. Sender IDs may be pipe-separated
// (platform user ID | display name); any segment matching the allowlist
// is sufficient.
func (b *BaseChannel) IsAllowed(sender string) bool {
	if len(b.AllowFrom) == 0 {
		return true
	}
	for _, part := range strings.Split(sender, "|") {
		if part == "" {
			continue
		}
		for _, allowed := range b.AllowFrom {
			if allowed == part {
				return true
			}
		}
	}
	return false
}

// enqueue buffers an inbound message for later Receive, dropping it if the
// sender isn't allowed or defaulting its thread ID.
func (b *BaseChannel) enqueue(msg bus.InboundMessage) {
	if !b.IsAllowed(msg.Sender) {
		return
	}
	if msg.ThreadID == "" {
		msg.ThreadID = msg.Channel + ":" + msg.Sender
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	b.mu.Lock()
	b.inbox = append(b.inbox, msg)
	b.mu.Unlock()
}

// Receive pops the oldest buffered inbound message, if any.
func (b *BaseChannel) Receive() (bus.InboundMessage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.inbox) == 0 {
		return bus.InboundMessage{}, false
	}
	msg := b.inbox[0]
	b.inbox = b.inbox[1:]
	return msg, true
}

// Chunk splits text on newline boundaries, greedily packing consecutive
// lines under the limit. A single line longer than the limit is
// hard-split at rune boundaries.
func (b *BaseChannel) Chunk(text string) []string {
	return ChunkText(text, b.MaxLength)
}

// TextChunk is one piece of chunked text tagged with how it joins to the
// chunk before it: a hard-split continuation resumes mid-paragraph with no
// separator, while a non-continuation begins a new paragraph-boundary chunk
// and rejoins with "\n". Joining chunks[0].Text, then each subsequent
// chunk's Text preceded by "\n" unless HardSplitContinuation is set,
// reconstructs the original text exactly.
type TextChunk struct {
	Text                  string
	HardSplitContinuation bool
}

// ChunkText implements the shared paragraph-greedy chunking algorithm used
// by every channel for outbound delivery, where each chunk is simply sent
// as its own message and boundary information isn't needed.
func ChunkText(text string, limit int) []string {
	bounded := ChunkTextWithBoundaries(text, limit)
	out := make([]string, len(bounded))
	for i, c := range bounded {
		out[i] = c.Text
	}
	return out
}

// ChunkTextWithBoundaries splits text on paragraph (newline) boundaries,
// greedily packing consecutive paragraphs under the limit. A single
// paragraph longer than the limit is hard-split at rune boundaries; the
// pieces after the first are marked HardSplitContinuation so a caller can
// tell them apart from a genuine paragraph break when reconstructing text.
func ChunkTextWithBoundaries(text string, limit int) []TextChunk {
	if limit <= 0 || len([]rune(text)) <= limit {
		if text == "" {
			return nil
		}
		return []TextChunk{{Text: text}}
	}

	paragraphs := strings.Split(text, "\n")
	var chunks []TextChunk
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, TextChunk{Text: current.String()})
			current.Reset()
		}
	}

	for _, p := range paragraphs {
		candidate := p
		if current.Len() > 0 {
			candidate = current.String() + "\n" + p
		}
		if len([]rune(candidate)) <= limit {
			current.Reset()
			current.WriteString(candidate)
			continue
		}
		flush()
		if len([]rune(p)) <= limit {
			current.WriteString(p)
			continue
		}
		for i, piece := range hardSplit(p, limit) {
			chunks = append(chunks, TextChunk{Text: piece, HardSplitContinuation: i > 0})
		}
	}
	flush()
	return chunks
}

// ErrorBackoff is how long a polling channel sleeps after a transient
// upstream error before retrying.
const ErrorBackoff = 5 * time.Second

// sleep pauses for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// hardSplit breaks a single over-long paragraph into rune-bounded pieces.
func hardSplit(text string, limit int) []string {
	runes := []rune(text)
	var out []string
	for len(runes) > 0 {
		n := limit
		if n > len(runes) {
			n = len(runes)
		}
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}
