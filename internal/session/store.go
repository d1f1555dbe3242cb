// Package session implements the append-only transcript store: one JSON
// index mapping session key to metadata, and one JSONL transcript file per
// session, replayable back into conversation history.
package session

import (
	"bufio"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nanogate/nanogate/internal/message"
	"github.com/nanogate/nanogate/internal/utils"
)

// Metadata describes a session's identity, independent of its transcript
// contents.
type Metadata struct {
	SessionID      string    `json:"session_id"`
	Key            string    `json:"key"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	MessageCount   int       `json:"message_count"`
	TranscriptFile string    `json:"transcript_file"`
}

// entry is one line of a transcript file.
type entry struct {
	Type      string          `json:"type"`
	Ts        string          `json:"ts"`
	ID        string          `json:"id,omitempty"`
	Key       string          `json:"key,omitempty"`
	Created   string          `json:"created,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	Name      string          `json:"name,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Input     map[string]any  `json:"input,omitempty"`
	Output    string          `json:"output,omitempty"`
}

// Store manages sessions: their index and their transcripts.
type Store struct {
	dir       string
	indexPath string

	mu    sync.Mutex
	index map[string]Metadata
}

// NewStore opens (or initializes) a session store rooted at dir.
// dir gains a sessions.json index file and a transcripts/ subdirectory.
func NewStore(dir string) (*Store, error) {
	if _, err := utils.EnsureDir(dir); err != nil {
		return nil, err
	}
	if _, err := utils.EnsureDir(filepath.Join(dir, "transcripts")); err != nil {
		return nil, err
	}
	s := &Store{
		dir:       dir,
		indexPath: filepath.Join(dir, "sessions.json"),
		index:     make(map[string]Metadata),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadIndex() error {
	data, err := os.ReadFile(s.indexPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return json.Unmarshal(data, &s.index)
}

// writeIndexLocked rewrites the whole index file atomically. Caller must hold s.mu.
func (s *Store) writeIndexLocked() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.indexPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.indexPath)
}

func (s *Store) transcriptPath(m Metadata) string {
	return filepath.Join(s.dir, "transcripts", m.TranscriptFile)
}

func newSessionID() string {
	b := make([]byte, 6)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}

// Exists reports whether a session with the given key has been created.
func (s *Store) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[key]
	return ok
}

// Create initializes a new session for key, writing its transcript header.
// If a session for key already exists, its existing metadata is returned.
func (s *Store) Create(key string) (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.index[key]; ok {
		return m, nil
	}

	now := time.Now().UTC()
	sessionID := newSessionID()
	filename := utils.SafeFilename(strings.ReplaceAll(key, ":", "_")) + "_" + sessionID + ".jsonl"
	m := Metadata{
		SessionID:      sessionID,
		Key:            key,
		CreatedAt:      now,
		UpdatedAt:      now,
		MessageCount:   0,
		TranscriptFile: filename,
	}

	header := entry{
		Type:    "session",
		Ts:      now.Format(time.RFC3339),
		ID:      sessionID,
		Key:     key,
		Created: now.Format(time.RFC3339),
	}
	if err := s.appendEntry(m, header); err != nil {
		return Metadata{}, err
	}

	s.index[key] = m
	if err := s.writeIndexLocked(); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

func (s *Store) appendEntry(m Metadata, e entry) error {
	f, err := os.OpenFile(s.transcriptPath(m), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return nil
}

// Load returns a session's metadata and its history reconstructed from the
// transcript, creating the session first if it does not yet exist.
func (s *Store) Load(key string) (Metadata, []message.Message, error) {
	s.mu.Lock()
	m, ok := s.index[key]
	s.mu.Unlock()
	if !ok {
		var err error
		m, err = s.Create(key)
		if err != nil {
			return Metadata{}, nil, err
		}
	}

	history, err := s.replay(m)
	if err != nil {
		return Metadata{}, nil, err
	}
	return m, history, nil
}

// replay reconstructs conversation history per the transcript replay
// algorithm: a pending tool_use buffer flushes into a single assistant
// message whenever a non-tool_use entry is scanned.
func (s *Store) replay(m Metadata) ([]message.Message, error) {
	f, err := os.Open(s.transcriptPath(m))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var history []message.Message
	var pending []message.Block

	flush := func() {
		if len(pending) > 0 {
			history = append(history, message.NewBlockMessage(message.RoleAssistant, pending))
			pending = nil
		}
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue // corrupt line, skip
		}

		switch e.Type {
		case "session":
			continue
		case "tool_use":
			pending = append(pending, message.ToolUseBlock(e.ToolUseID, e.Name, e.Input))
		case "user":
			flush()
			var asString string
			if err := json.Unmarshal(e.Content, &asString); err == nil {
				history = append(history, message.NewTextMessage(message.RoleUser, asString))
				continue
			}
			var blocks []toolResultContent
			if err := json.Unmarshal(e.Content, &blocks); err == nil {
				msgBlocks := make([]message.Block, 0, len(blocks))
				for _, b := range blocks {
					msgBlocks = append(msgBlocks, message.ToolResultBlock(b.ToolUseID, b.Content))
				}
				history = append(history, message.NewBlockMessage(message.RoleUser, msgBlocks))
			}
		case "assistant":
			flush()
			var asString string
			if err := json.Unmarshal(e.Content, &asString); err == nil {
				history = append(history, message.NewTextMessage(message.RoleAssistant, asString))
			}
		case "tool_result":
			flush()
			history = append(history, message.NewBlockMessage(message.RoleUser,
				[]message.Block{message.ToolResultBlock(e.ToolUseID, e.Output)}))
		default:
			continue // corrupt/unknown, skip
		}
	}
	flush()
	return history, nil
}

type toolResultContent struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
}

// SaveTurn appends a completed turn: the original user text, then one entry
// per assistant content block. Called only after a turn succeeds.
func (s *Store) SaveTurn(key, userText string, assistantBlocks []message.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.index[key]
	if !ok {
		return fmt.Errorf("session: unknown key %q", key)
	}

	now := time.Now().UTC()
	userContent, _ := json.Marshal(userText)
	if err := s.appendEntry(m, entry{Type: "user", Ts: now.Format(time.RFC3339), Content: userContent}); err != nil {
		return err
	}

	for _, b := range assistantBlocks {
		switch b.Type {
		case message.BlockText:
			content, _ := json.Marshal(b.Text)
			if err := s.appendEntry(m, entry{Type: "assistant", Ts: now.Format(time.RFC3339), Content: content}); err != nil {
				return err
			}
		case message.BlockToolUse:
			if err := s.appendEntry(m, entry{
				Type: "tool_use", Ts: now.Format(time.RFC3339),
				Name: b.Name, ToolUseID: b.ID, Input: b.Input,
			}); err != nil {
				return err
			}
		}
	}

	m.UpdatedAt = now
	m.MessageCount++
	s.index[key] = m
	return s.writeIndexLocked()
}

// SaveToolResult appends a tool_result entry at the moment a tool call
// completes, independent of SaveTurn's batching.
func (s *Store) SaveToolResult(key, toolUseID, output string) error {
	s.mu.Lock()
	m, ok := s.index[key]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: unknown key %q", key)
	}
	return s.appendEntry(m, entry{
		Type: "tool_result", Ts: utils.Timestamp(),
		ToolUseID: toolUseID, Output: output,
	})
}

// List returns metadata for every known session.
func (s *Store) List() []Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]Metadata, 0, len(s.index))
	for _, m := range s.index {
		result = append(result, m)
	}
	return result
}

// Delete removes a session's transcript and index entry.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.index[key]
	if !ok {
		return nil
	}
	os.Remove(s.transcriptPath(m))
	delete(s.index, key)
	return s.writeIndexLocked()
}

// Rebuild scans the transcripts directory and reconstructs the index from
// each transcript's header, discarding any entries whose transcript is
// missing. Used to recover from a lost or corrupted index file.
func (s *Store) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.dir, "transcripts"))
	if err != nil {
		return err
	}

	rebuilt := make(map[string]Metadata)
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".jsonl") {
			continue
		}
		f, err := os.Open(filepath.Join(s.dir, "transcripts", de.Name()))
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		var header entry
		var msgCount int
		var lastTs time.Time
		for scanner.Scan() {
			var e entry
			if json.Unmarshal(scanner.Bytes(), &e) != nil {
				continue
			}
			if e.Type == "session" && header.Type == "" {
				header = e
			}
			if e.Type == "user" {
				msgCount++
			}
			if ts, err := time.Parse(time.RFC3339, e.Ts); err == nil {
				lastTs = ts
			}
		}
		f.Close()
		if header.Type == "" {
			continue
		}
		created, _ := time.Parse(time.RFC3339, header.Created)
		rebuilt[header.Key] = Metadata{
			SessionID:      header.ID,
			Key:            header.Key,
			CreatedAt:      created,
			UpdatedAt:      lastTs,
			MessageCount:   msgCount,
			TranscriptFile: de.Name(),
		}
	}
	s.index = rebuilt
	return s.writeIndexLocked()
}
