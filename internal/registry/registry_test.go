package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanogate/nanogate/internal/backend"
	"github.com/nanogate/nanogate/internal/memory"
	"github.com/nanogate/nanogate/internal/message"
	"github.com/nanogate/nanogate/internal/session"
	"github.com/nanogate/nanogate/internal/soul"
	"github.com/nanogate/nanogate/internal/tools"
)

func TestLoadAgentSpecs(t *testing.T) {
	yamlContent := `agents:
  - id: general
    description: "generalist assistant"
    is_default: true
    temperature: 0.7
    max_tokens: 1024

  - id: legal
    description: "contract review specialist"
    model: gpt-4o
    temperature: 0.4
    max_tokens: 8192
`
	dir := t.TempDir()
	path := filepath.Join(dir, "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))

	specs, err := LoadAgentSpecs(path)
	require.NoError(t, err)
	require.Len(t, specs, 2)

	assert.Equal(t, "general", specs[0].ID)
	assert.True(t, specs[0].IsDefault)
	assert.Equal(t, 0.7, specs[0].Temperature)

	assert.Equal(t, "legal", specs[1].ID)
	assert.Equal(t, "gpt-4o", specs[1].Model)
	assert.Equal(t, 8192, specs[1].MaxTokens)
}

func TestLoadAgentSpecs_NotFound(t *testing.T) {
	specs, err := LoadAgentSpecs("/nonexistent/agents.yaml")
	assert.NoError(t, err)
	assert.Nil(t, specs)
}

// fakeBackend returns a fixed reply for every Chat call.
type fakeBackend struct{ model string }

func (f *fakeBackend) DefaultModel() string { return f.model }

func (f *fakeBackend) Chat(_ context.Context, _ backend.Request) (*backend.Response, error) {
	return &backend.Response{
		Blocks:     []message.Block{message.TextBlock("mock response")},
		StopReason: backend.StopStop,
	}, nil
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()

	store, err := session.NewStore(filepath.Join(dir, "sessions"))
	require.NoError(t, err)
	memStore, err := memory.New(filepath.Join(dir, "memories.jsonl"))
	require.NoError(t, err)

	return New(Config{
		Backend:      &fakeBackend{model: "default-model"},
		Sessions:     store,
		Memory:       memStore,
		Tools:        tools.NewRegistry(),
		SoulsDir:     filepath.Join(dir, "souls"),
		DefaultModel: "default-model",
	})
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := newTestRegistry(t)

	require.NoError(t, reg.Register(AgentSpec{ID: "general", Description: "General agent", IsDefault: true, Temperature: 0.7}))
	require.NoError(t, reg.Register(AgentSpec{ID: "legal", Description: "Legal agent", Temperature: 0.4}))

	assert.Equal(t, 2, reg.Len())
	assert.True(t, reg.Contains("general"))
	assert.True(t, reg.Contains("legal"))
	assert.False(t, reg.Contains("nonexistent"))
}

func TestRegistry_DefaultID(t *testing.T) {
	reg := newTestRegistry(t)

	require.NoError(t, reg.Register(AgentSpec{ID: "a", IsDefault: false}))
	require.NoError(t, reg.Register(AgentSpec{ID: "b", IsDefault: true}))

	assert.Equal(t, "b", reg.DefaultID())

	spec, ok := reg.GetSpec("b")
	require.True(t, ok)
	assert.True(t, spec.IsDefault)
}

func TestRegistry_DefaultID_FirstRegisteredWhenNoneMarked(t *testing.T) {
	reg := newTestRegistry(t)

	require.NoError(t, reg.Register(AgentSpec{ID: "only"}))
	assert.Equal(t, "only", reg.DefaultID())
}

func TestRegistry_Run_FallsBackToDefault(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.Register(AgentSpec{ID: "general", IsDefault: true}))

	out, err := reg.Run(context.Background(), "unknown-agent", "chan:user1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "mock response", out)
}

func TestRegistry_Run_NoAgentsRegistered(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.Run(context.Background(), "anything", "chan:user1", "hi")
	assert.Error(t, err)
}

func TestRegistry_AgentIDs(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.Register(AgentSpec{ID: "a", Description: "Agent A"}))
	require.NoError(t, reg.Register(AgentSpec{ID: "b", Description: "Agent B"}))

	ids := reg.AgentIDs()
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestRegistry_GetSoulAndUpdateSoul(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.Register(AgentSpec{ID: "general", Description: "General agent", IsDefault: true}))

	s, ok := reg.GetSoul("general")
	require.True(t, ok)
	assert.Equal(t, "general", s.Name)

	s.Personality = "cheerful and terse"
	require.NoError(t, reg.UpdateSoul("general", s))

	updated, ok := reg.GetSoul("general")
	require.True(t, ok)
	assert.Equal(t, "cheerful and terse", updated.Personality)
}

func TestRegistry_UpdateSoul_UnknownAgent(t *testing.T) {
	reg := newTestRegistry(t)
	err := reg.UpdateSoul("nonexistent", soul.Soul{Name: "ghost"})
	assert.Error(t, err)
}
