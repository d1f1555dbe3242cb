package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir_Creates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	result, err := EnsureDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, result)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestEnsureDir_ExistingDir(t *testing.T) {
	dir := t.TempDir()
	result, err := EnsureDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, result)
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"hello", "hello"},
		{"hello world", "hello world"},
		{`a<b>c:d"e`, "a_b_c_d_e"},
		{"file/with\\slash", "file_with_slash"},
		{"a|b?c*d", "a_b_c_d"},
		{"  spaces  ", "spaces"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeFilename(tt.input))
		})
	}
}

func TestTimestamp(t *testing.T) {
	ts := Timestamp()
	assert.NotEmpty(t, ts)
	assert.Contains(t, ts, "T") // ISO 8601 has T separator
}

func TestSplitSessionKey_Valid(t *testing.T) {
	agent, channel, peer, err := SplitSessionKey("assistant:telegram:12345")
	require.NoError(t, err)
	assert.Equal(t, "assistant", agent)
	assert.Equal(t, "telegram", channel)
	assert.Equal(t, "12345", peer)
}

func TestSplitSessionKey_PeerWithColon(t *testing.T) {
	agent, channel, peer, err := SplitSessionKey("assistant:discord:guild:channel")
	require.NoError(t, err)
	assert.Equal(t, "assistant", agent)
	assert.Equal(t, "discord", channel)
	assert.Equal(t, "guild:channel", peer)
}

func TestSplitSessionKey_Invalid(t *testing.T) {
	_, _, _, err := SplitSessionKey("nocolon")
	assert.Error(t, err)
}

func TestSessionKey_Roundtrip(t *testing.T) {
	key := SessionKey("assistant", "telegram", "12345")
	assert.Equal(t, "assistant:telegram:12345", key)

	agent, channel, peer, err := SplitSessionKey(key)
	require.NoError(t, err)
	assert.Equal(t, "assistant", agent)
	assert.Equal(t, "telegram", channel)
	assert.Equal(t, "12345", peer)
}
