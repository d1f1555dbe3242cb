package session

import (
	"os"
	"testing"

	"github.com/nanogate/nanogate/internal/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateAssignsMetadata(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	m, err := s.Create("assistant:telegram:123")
	require.NoError(t, err)
	assert.Equal(t, "assistant:telegram:123", m.Key)
	assert.NotEmpty(t, m.SessionID)
	assert.Equal(t, 0, m.MessageCount)
	assert.True(t, s.Exists("assistant:telegram:123"))
}

func TestStore_CreateIdempotent(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	m1, err := s.Create("a:b:c")
	require.NoError(t, err)
	m2, err := s.Create("a:b:c")
	require.NoError(t, err)
	assert.Equal(t, m1.SessionID, m2.SessionID)
}

func TestStore_LoadCreatesIfMissing(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	m, history, err := s.Load("a:b:c")
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Equal(t, "a:b:c", m.Key)
}

func TestStore_SaveTurnTextOnly(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Create("a:b:c")
	require.NoError(t, err)

	err = s.SaveTurn("a:b:c", "hello", []message.Block{message.TextBlock("hi there")})
	require.NoError(t, err)

	m, history, err := s.Load("a:b:c")
	require.NoError(t, err)
	assert.Equal(t, 1, m.MessageCount)
	require.Len(t, history, 2)
	assert.Equal(t, message.RoleUser, history[0].Role)
	assert.Equal(t, "hello", history[0].Text)
	assert.Equal(t, message.RoleAssistant, history[1].Role)
	assert.Equal(t, "hi there", history[1].Text)
}

func TestStore_SaveTurnWithToolUseAndResult(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Create("a:b:c")
	require.NoError(t, err)

	err = s.SaveTurn("a:b:c", "read the file", []message.Block{
		message.ToolUseBlock("t1", "read_file", map[string]any{"path": "a.txt"}),
	})
	require.NoError(t, err)

	err = s.SaveToolResult("a:b:c", "t1", "file contents")
	require.NoError(t, err)

	_, history, err := s.Load("a:b:c")
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.Equal(t, message.RoleUser, history[0].Role)
	assert.Equal(t, "read the file", history[0].Text)

	assert.Equal(t, message.RoleAssistant, history[1].Role)
	assert.True(t, history[1].LastIsToolUse())
	assert.Equal(t, []string{"t1"}, history[1].ToolUseIDs())

	assert.Equal(t, message.RoleUser, history[2].Role)
	require.Len(t, history[2].Blocks, 1)
	assert.Equal(t, message.BlockToolResult, history[2].Blocks[0].Type)
	assert.Equal(t, "t1", history[2].Blocks[0].ToolUseID)
	assert.Equal(t, "file contents", history[2].Blocks[0].Content)
}

func TestStore_MultipleTurnsAccumulate(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Create("a:b:c")
	require.NoError(t, err)

	require.NoError(t, s.SaveTurn("a:b:c", "first", []message.Block{message.TextBlock("reply1")}))
	require.NoError(t, s.SaveTurn("a:b:c", "second", []message.Block{message.TextBlock("reply2")}))

	m, history, err := s.Load("a:b:c")
	require.NoError(t, err)
	assert.Equal(t, 2, m.MessageCount)
	require.Len(t, history, 4)
}

func TestStore_DeleteRemovesTranscript(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Create("a:b:c")
	require.NoError(t, err)

	require.NoError(t, s.Delete("a:b:c"))
	assert.False(t, s.Exists("a:b:c"))
}

func TestStore_List(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	s.Create("a:b:c")
	s.Create("x:y:z")

	list := s.List()
	assert.Len(t, list, 2)
}

func TestStore_CorruptLineSkipped(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	m, err := s.Create("a:b:c")
	require.NoError(t, err)

	require.NoError(t, s.appendEntry(m, entry{Type: "user", Content: []byte(`"before"`)}))
	// simulate a corrupt line by writing raw invalid JSON directly
	f, err := os.OpenFile(s.transcriptPath(m), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	f.WriteString("{not json\n")
	f.Close()
	require.NoError(t, s.appendEntry(m, entry{Type: "user", Content: []byte(`"after"`)}))

	_, history, err := s.Load("a:b:c")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "before", history[0].Text)
	assert.Equal(t, "after", history[1].Text)
}

func TestStore_Rebuild(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	_, err = s.Create("a:b:c")
	require.NoError(t, err)
	require.NoError(t, s.SaveTurn("a:b:c", "hi", []message.Block{message.TextBlock("hello")}))

	s2, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, s2.Rebuild())
	assert.True(t, s2.Exists("a:b:c"))

	m, history, err := s2.Load("a:b:c")
	require.NoError(t, err)
	assert.Equal(t, 1, m.MessageCount)
	assert.Len(t, history, 2)
}
