package channels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdownToTelegramHTML_Bold(t *testing.T) {
	assert.Equal(t, "<b>hi</b>", MarkdownToTelegramHTML("**hi**"))
}

func TestMarkdownToTelegramHTML_InlineCode(t *testing.T) {
	assert.Equal(t, "<code>x&lt;y</code>", MarkdownToTelegramHTML("`x<y`"))
}

func TestMarkdownToTelegramHTML_CodeBlock(t *testing.T) {
	out := MarkdownToTelegramHTML("```go\nfmt.Println(1)\n```")
	assert.Contains(t, out, "<pre><code>")
	assert.Contains(t, out, "fmt.Println(1)")
}

func TestMarkdownToTelegramHTML_Link(t *testing.T) {
	assert.Equal(t, `<a href="https://x.com">click</a>`, MarkdownToTelegramHTML("[click](https://x.com)"))
}

func TestMarkdownToTelegramHTML_Heading(t *testing.T) {
	assert.Equal(t, "Title", MarkdownToTelegramHTML("## Title"))
}

func TestMarkdownToTelegramHTML_BulletList(t *testing.T) {
	assert.Equal(t, "• item", MarkdownToTelegramHTML("- item"))
}

func TestMarkdownToTelegramHTML_EscapesHTML(t *testing.T) {
	assert.Equal(t, "a &lt; b &amp;&amp; b &gt; c", MarkdownToTelegramHTML("a < b && b > c"))
}

func TestMarkdownToTelegramHTML_Strikethrough(t *testing.T) {
	assert.Equal(t, "<s>gone</s>", MarkdownToTelegramHTML("~~gone~~"))
}

func TestMarkdownToTelegramHTML_Empty(t *testing.T) {
	assert.Equal(t, "", MarkdownToTelegramHTML(""))
}

func TestTelegramChannel_ProcessUpdate_TextMessage(t *testing.T) {
	tc := NewTelegramChannel("tok", nil, 4096, nil)
	update := map[string]any{
		"message": map[string]any{
			"message_id": float64(1),
			"from":       map[string]any{"id": float64(42), "username": "alice"},
			"chat":       map[string]any{"id": float64(99)},
			"text":       "hello",
		},
	}
	tc.processUpdate(update)

	msg, ok := tc.Receive()
	assert.True(t, ok)
	assert.Equal(t, "42|alice", msg.Sender)
	assert.Equal(t, "hello", msg.Text)
}

func TestTelegramChannel_ProcessUpdate_UsesCaptionWhenTextEmpty(t *testing.T) {
	tc := NewTelegramChannel("tok", nil, 4096, nil)
	update := map[string]any{
		"message": map[string]any{
			"from":    map[string]any{"id": float64(1)},
			"chat":    map[string]any{"id": float64(2)},
			"caption": "a photo",
		},
	}
	tc.processUpdate(update)

	msg, ok := tc.Receive()
	assert.True(t, ok)
	assert.Equal(t, "a photo", msg.Text)
}

func TestTelegramChannel_ProcessUpdate_IgnoresNonMessage(t *testing.T) {
	tc := NewTelegramChannel("tok", nil, 4096, nil)
	tc.processUpdate(map[string]any{"edited_message": map[string]any{}})

	_, ok := tc.Receive()
	assert.False(t, ok)
}

func TestTelegramChannel_Start_RequiresToken(t *testing.T) {
	tc := NewTelegramChannel("", nil, 4096, nil)
	err := tc.Start(nil)
	assert.Error(t, err)
}
