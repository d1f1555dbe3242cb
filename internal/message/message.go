// Package message defines the polymorphic content-block and message types
// shared by the session store, the backend client, and the agent loop.
package message

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// BlockType discriminates the closed set of content block variants.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// Block is one tagged piece of a message: text, tool_use, or tool_result.
// Only the fields relevant to Type are populated.
type Block struct {
	Type BlockType `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

// TextBlock builds a text content block.
func TextBlock(text string) Block { return Block{Type: BlockText, Text: text} }

// ToolUseBlock builds a tool_use content block.
func ToolUseBlock(id, name string, input map[string]any) Block {
	return Block{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolResultBlock builds a tool_result content block.
func ToolResultBlock(toolUseID, content string) Block {
	return Block{Type: BlockToolResult, ToolUseID: toolUseID, Content: content}
}

// Role is the message role. Only user and assistant appear in history.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn of conversation. Content is a union: either a
// plain string, or an ordered sequence of content blocks. IsBlocks reports
// which variant is populated.
type Message struct {
	Role   Role
	Text   string
	Blocks []Block
}

// NewTextMessage builds a message with plain string content.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Text: text}
}

// NewBlockMessage builds a message with block-list content.
func NewBlockMessage(role Role, blocks []Block) Message {
	return Message{Role: role, Blocks: blocks}
}

// IsBlocks reports whether the message content is a block list rather than
// a plain string.
func (m Message) IsBlocks() bool { return m.Blocks != nil }

// LastIsToolUse reports whether the message's last content block is a
// tool_use block — the invariant that must be followed by a tool_result
// bearing user message.
func (m Message) LastIsToolUse() bool {
	if len(m.Blocks) == 0 {
		return false
	}
	return m.Blocks[len(m.Blocks)-1].Type == BlockToolUse
}

// ToolUseIDs returns, in order, the ids of every tool_use block in the
// message.
func (m Message) ToolUseIDs() []string {
	var ids []string
	for _, b := range m.Blocks {
		if b.Type == BlockToolUse {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// ConcatText concatenates the text of every text block, in order. If the
// message content is a plain string, that string is returned.
func (m Message) ConcatText() string {
	if !m.IsBlocks() {
		return m.Text
	}
	var buf bytes.Buffer
	for _, b := range m.Blocks {
		if b.Type == BlockText {
			buf.WriteString(b.Text)
		}
	}
	return buf.String()
}

// wireMessage is the JSON shape used for storage/wire content: a discriminated
// union inferred from JSON shape (string vs array).
type wireMessage struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

// MarshalJSON emits {role, content} where content is a bare string or an
// array of blocks depending on which variant is populated.
func (m Message) MarshalJSON() ([]byte, error) {
	var content []byte
	var err error
	if m.IsBlocks() {
		content, err = json.Marshal(m.Blocks)
	} else {
		content, err = json.Marshal(m.Text)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMessage{Role: m.Role, Content: content})
}

// UnmarshalJSON infers the union variant from the shape of "content".
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.Role = w.Role
	trimmed := bytesTrimSpace(w.Content)
	if len(trimmed) == 0 {
		m.Text = ""
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(w.Content, &s); err != nil {
			return fmt.Errorf("message content string: %w", err)
		}
		m.Text = s
		m.Blocks = nil
	case '[':
		var blocks []Block
		if err := json.Unmarshal(w.Content, &blocks); err != nil {
			return fmt.Errorf("message content blocks: %w", err)
		}
		m.Blocks = blocks
		m.Text = ""
	default:
		return fmt.Errorf("message content: unexpected shape %q", trimmed)
	}
	return nil
}

func bytesTrimSpace(b []byte) []byte {
	return bytes.TrimSpace(b)
}
