// Package bus defines the inbound and outbound message envelopes passed
// between channels, the router, and the delivery queue.
package bus

import "time"

// InboundMessage is received from a chat channel.
//
// When a channel leaves ThreadID empty, BaseChannel fills it with
// "<channel>:<sender>"; the agent id is not part of that default.
type InboundMessage struct {
	Channel   string         `json:"channel"`
	Sender    string         `json:"sender"`
	Text      string         `json:"text"`
	MediaURLs []string       `json:"media_urls,omitempty"`
	ThreadID  string         `json:"thread_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SessionKey returns "<channel>:<sender>", the pre-resolution identity used
// to look a message up in the routing table.
func (m *InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.Sender
}

// OutboundMessage is sent to a chat channel.
type OutboundMessage struct {
	Channel  string         `json:"channel"`
	Peer     string         `json:"peer"`
	Text     string         `json:"text"`
	ThreadID string         `json:"thread_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
