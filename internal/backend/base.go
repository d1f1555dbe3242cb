// Package backend translates the internal message model to and from an
// OpenAI-compatible chat-completions wire format.
package backend

import (
	"context"

	"github.com/nanogate/nanogate/internal/message"
)

// ToolCallRequest represents one tool call surfaced by the model.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// StopReason is the backend's signal for why generation ended.
type StopReason string

const (
	StopToolCalls StopReason = "tool_calls"
	StopStop      StopReason = "stop"
	StopLength    StopReason = "length"
	StopError     StopReason = "error"
)

// Response is the standardized response from a chat-completion call.
type Response struct {
	Blocks     []message.Block
	ToolCalls  []ToolCallRequest
	StopReason StopReason
	Usage      map[string]int
}

// HasToolCalls reports whether the response requires tool execution.
func (r *Response) HasToolCalls() bool {
	return r.StopReason == StopToolCalls && len(r.ToolCalls) > 0
}

// Text concatenates every text block in the response.
func (r *Response) Text() string {
	var out string
	for _, b := range r.Blocks {
		if b.Type == message.BlockText {
			out += b.Text
		}
	}
	return out
}

// ToolDescriptor is a JSON-schema function descriptor for one tool.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request holds all parameters for one chat-completion call.
type Request struct {
	System      string
	History     []message.Message
	Tools       []ToolDescriptor
	Model       string
	MaxTokens   int
	Temperature float64
}

// Client is the interface implemented by any chat-completion backend.
type Client interface {
	Chat(ctx context.Context, req Request) (*Response, error)
	DefaultModel() string
}
