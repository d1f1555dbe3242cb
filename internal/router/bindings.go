// Package router resolves (channel, peer) pairs to an agent and session key
// via a persistent, priority-ordered binding table.
package router

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nanogate/nanogate/internal/utils"
)

const wildcardPeer = "*"

// Binding is one (channel, peer) -> agent routing rule.
type Binding struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Channel   string    `json:"channel"`
	Peer      string    `json:"peer"`
	Priority  int       `json:"priority"` // smaller = higher priority
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// Resolution is the result of resolving a (channel, peer) pair.
type Resolution struct {
	AgentID    string
	SessionKey string
	Binding    *Binding // nil when no binding matched (default agent used)
}

// Router holds the persistent binding table.
type Router struct {
	path         string
	defaultAgent string

	mu       sync.Mutex
	bindings []Binding // insertion order preserved
	nextID   int
}

// New loads (or initializes) a router persisted at path, falling back to
// defaultAgent when no binding matches a resolution.
func New(path, defaultAgent string) (*Router, error) {
	if _, err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	r := &Router{path: path, defaultAgent: defaultAgent}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Router) load() error {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &r.bindings); err != nil {
		return err
	}
	for _, b := range r.bindings {
		var n int
		if _, err := fmt.Sscanf(b.ID, "b%d", &n); err == nil && n >= r.nextID {
			r.nextID = n + 1
		}
	}
	return nil
}

// writeLocked rewrites the full binding file. Caller must hold r.mu.
func (r *Router) writeLocked() error {
	data, err := json.MarshalIndent(r.bindings, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}

// CreateBinding creates a routing rule, or updates the priority of an
// identical (agent, channel, peer) binding in place if one already exists.
func (r *Router) CreateBinding(agent, channel, peer string, priority int) (Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, b := range r.bindings {
		if b.AgentID == agent && b.Channel == channel && b.Peer == peer {
			r.bindings[i].Priority = priority
			if err := r.writeLocked(); err != nil {
				return Binding{}, err
			}
			return r.bindings[i], nil
		}
	}

	b := Binding{
		ID:        fmt.Sprintf("b%d", r.nextID),
		AgentID:   agent,
		Channel:   channel,
		Peer:      peer,
		Priority:  priority,
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}
	r.nextID++
	r.bindings = append(r.bindings, b)
	if err := r.writeLocked(); err != nil {
		return Binding{}, err
	}
	return b, nil
}

// RemoveBinding deletes a binding by id.
func (r *Router) RemoveBinding(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.bindings {
		if b.ID == id {
			r.bindings = append(r.bindings[:i], r.bindings[i+1:]...)
			return r.writeLocked()
		}
	}
	return fmt.Errorf("router: binding %q not found", id)
}

// SetEnabled toggles a binding's enabled flag.
func (r *Router) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.bindings {
		if b.ID == id {
			r.bindings[i].Enabled = enabled
			return r.writeLocked()
		}
	}
	return fmt.Errorf("router: binding %q not found", id)
}

// Resolve runs the three-phase exact -> wildcard -> default lookup.
func (r *Router) Resolve(channel, peer string) Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b := r.bestMatch(func(b Binding) bool {
		return b.Channel == channel && b.Peer == peer
	}); b != nil {
		return Resolution{AgentID: b.AgentID, SessionKey: utils.SessionKey(b.AgentID, channel, peer), Binding: b}
	}

	if b := r.bestMatch(func(b Binding) bool {
		return b.Channel == channel && b.Peer == wildcardPeer
	}); b != nil {
		return Resolution{AgentID: b.AgentID, SessionKey: utils.SessionKey(b.AgentID, channel, peer), Binding: b}
	}

	return Resolution{AgentID: r.defaultAgent, SessionKey: utils.SessionKey(r.defaultAgent, channel, peer)}
}

// bestMatch returns the enabled binding matching pred with the smallest
// Priority value (highest precedence), breaking ties by insertion order
// (first registered wins).
func (r *Router) bestMatch(pred func(Binding) bool) *Binding {
	var best *Binding
	for i := range r.bindings {
		b := &r.bindings[i]
		if !b.Enabled || !pred(*b) {
			continue
		}
		if best == nil || b.Priority < best.Priority {
			best = b
		}
	}
	return best
}

// List returns every binding.
func (r *Router) List() []Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Binding, len(r.bindings))
	copy(out, r.bindings)
	return out
}

// ListForAgent returns every binding routed to agent.
func (r *Router) ListForAgent(agent string) []Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Binding
	for _, b := range r.bindings {
		if b.AgentID == agent {
			out = append(out, b)
		}
	}
	return out
}
