// Package memory implements an append-only, keyword-scored memory store.
package memory

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Capacity is the maximum number of memories retained; the oldest is evicted
// once exceeded.
const Capacity = 1000

// minTokenLen is the shortest query token considered for scoring.
const minTokenLen = 3

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "her": true,
	"was": true, "one": true, "our": true, "out": true, "his": true,
	"has": true, "had": true, "were": true, "they": true, "this": true,
	"that": true, "with": true, "from": true, "have": true, "what": true,
	"about": true, "would": true, "there": true, "their": true, "which": true,
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Record is one stored memory.
type Record struct {
	ID         string   `json:"id"`
	Content    string   `json:"content"`
	SessionKey string   `json:"session_key,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Importance float64  `json:"importance,omitempty"`
	CreatedAt  string   `json:"created_at"`
}

// Store is an append-only memory log with an in-memory mirror.
type Store struct {
	path string

	mu    sync.Mutex
	items []Record
}

// New loads (or initializes) a memory store persisted at path.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	s := &Store{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			continue // skip corrupt line
		}
		s.items = append(s.items, r)
	}
	if len(s.items) > Capacity {
		s.items = s.items[len(s.items)-Capacity:]
	}
	return scanner.Err()
}

// Add appends a new memory, evicting the oldest if capacity is exceeded.
func (s *Store) Add(content, sessionKey string, tags []string, importance float64, timestamp string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Record{
		ID:         evictionID(content, timestamp),
		Content:    content,
		SessionKey: sessionKey,
		Tags:       tags,
		Importance: importance,
		CreatedAt:  timestamp,
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return Record{}, err
	}
	data, err := json.Marshal(r)
	if err != nil {
		f.Close()
		return Record{}, err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return Record{}, err
	}
	if err := f.Close(); err != nil {
		return Record{}, err
	}

	s.items = append(s.items, r)
	if len(s.items) > Capacity {
		s.items = s.items[1:]
		if err := s.rewriteLocked(); err != nil {
			return Record{}, err
		}
	}
	return r, nil
}

// rewriteLocked persists the current in-memory mirror after an eviction.
// Caller must hold s.mu.
func (s *Store) rewriteLocked() error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, r := range s.items {
		data, err := json.Marshal(r)
		if err != nil {
			f.Close()
			return err
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func evictionID(content, timestamp string) string {
	sum := xxhash.Sum64String(timestamp + "|" + content)
	return strconv.FormatUint(sum, 16)
}

// scored pairs a memory with its retrieval score.
type scored struct {
	record Record
	score  float64
}

// tokenize splits query on Unicode word boundaries, lowercases, and drops
// tokens shorter than minTokenLen or in the stop-word set.
func tokenize(query string) []string {
	raw := wordPattern.FindAllString(strings.ToLower(query), -1)
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		if len([]rune(tok)) < minTokenLen || stopWords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Search returns the top-k memories with positive score against query.
func (s *Store) Search(query string, k int) []Record {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil
	}
	lowerQuery := strings.ToLower(query)

	s.mu.Lock()
	items := make([]Record, len(s.items))
	copy(items, s.items)
	s.mu.Unlock()

	var candidates []scored
	for _, r := range items {
		content := strings.ToLower(r.Content)
		score := 0.0
		for _, tok := range tokens {
			if strings.Contains(content, tok) {
				score++
			}
		}
		for _, tag := range r.Tags {
			if strings.Contains(lowerQuery, strings.ToLower(tag)) {
				score += 0.5
			}
		}
		if score <= 0 {
			continue
		}
		if r.Importance > 0 {
			score *= 1 + r.Importance
		}
		candidates = append(candidates, scored{record: r, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]Record, k)
	for i := 0; i < k; i++ {
		out[i] = candidates[i].record
	}
	return out
}

// Len returns the number of memories currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
