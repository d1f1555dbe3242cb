// Package registry manages multiple independent agents, each with its own
// persona and optional model override, sharing the gateway's session,
// memory, and tool infrastructure.
//
// Agents are defined in agents.yaml and registered at startup, or added
// dynamically at runtime.
package registry

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/nanogate/nanogate/internal/agent"
	"github.com/nanogate/nanogate/internal/backend"
	"github.com/nanogate/nanogate/internal/memory"
	"github.com/nanogate/nanogate/internal/session"
	"github.com/nanogate/nanogate/internal/soul"
	"github.com/nanogate/nanogate/internal/tools"
)

// DefaultMaxTokens is used when an AgentSpec doesn't set MaxTokens.
const DefaultMaxTokens = 4096

// DefaultTemperature is used when an AgentSpec doesn't set Temperature.
const DefaultTemperature = 0.7

// AgentSpec defines a single agent's configuration, as read from
// agents.yaml.
type AgentSpec struct {
	ID          string  `yaml:"id" json:"id"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Model       string  `yaml:"model,omitempty" json:"model,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	IsDefault   bool    `yaml:"is_default,omitempty" json:"is_default,omitempty"`
}

// agentsFile is the top-level shape of agents.yaml.
type agentsFile struct {
	Agents []AgentSpec `yaml:"agents"`
}

// LoadAgentSpecs reads and parses an agents.yaml file. A missing file
// yields no specs, meaning single-agent mode.
func LoadAgentSpecs(path string) ([]AgentSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read agents.yaml: %w", err)
	}
	var f agentsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse agents.yaml: %w", err)
	}
	return f.Agents, nil
}

// registeredAgent pairs one agent's spec, its persona, and the Loop
// configured to run it.
type registeredAgent struct {
	spec AgentSpec
	soul soul.Soul
	loop *agent.Loop
}

// Config holds the shared infrastructure every agent's Loop is built from.
type Config struct {
	Backend      backend.Client
	Sessions     *session.Store
	Memory       *memory.Store
	Tools        *tools.Registry
	SoulsDir     string
	DefaultModel string
}

// Registry manages multiple agents sharing one session store, memory
// store, and tool registry, each with its own persona and model.
type Registry struct {
	mu        sync.RWMutex
	agents    map[string]*registeredAgent
	defaultID string
	cfg       Config
}

// New creates an empty Registry over the given shared infrastructure.
func New(cfg Config) *Registry {
	return &Registry{agents: make(map[string]*registeredAgent), cfg: cfg}
}

// Register loads spec.ID's persona and configures a Loop for it. A missing
// soul file is not an error: it yields a bare default persona named after
// the agent. Any other read error fails the registration.
func (r *Registry) Register(spec AgentSpec) error {
	s, err := soul.Load(soul.Path(r.cfg.SoulsDir, spec.ID), spec.ID)
	if err != nil {
		return fmt.Errorf("load soul for %q: %w", spec.ID, err)
	}
	if spec.Description != "" && s.Description == "" {
		s.Description = spec.Description
	}

	model := spec.Model
	if model == "" {
		model = r.cfg.DefaultModel
	}
	temperature := spec.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	maxTokens := spec.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}

	loop := &agent.Loop{
		Backend:     r.cfg.Backend,
		Sessions:    r.cfg.Sessions,
		Memory:      r.cfg.Memory,
		Tools:       r.cfg.Tools,
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[spec.ID] = &registeredAgent{spec: spec, soul: s, loop: loop}
	if spec.IsDefault || r.defaultID == "" {
		r.defaultID = spec.ID
	}
	return nil
}

// Run resolves agentID (falling back to the default agent when empty or
// unknown) and executes one turn of its loop.
func (r *Registry) Run(ctx context.Context, agentID, sessionKey, text string) (string, error) {
	ra := r.resolve(agentID)
	if ra == nil {
		return "", fmt.Errorf("no agent registered for %q", agentID)
	}
	return ra.loop.Run(ctx, sessionKey, text, ra.soul)
}

func (r *Registry) resolve(agentID string) *registeredAgent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ra, ok := r.agents[agentID]; ok {
		return ra
	}
	if r.defaultID != "" {
		return r.agents[r.defaultID]
	}
	return nil
}

// GetSoul returns the currently loaded persona for an agent.
func (r *Registry) GetSoul(agentID string) (soul.Soul, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ra, ok := r.agents[agentID]
	if !ok {
		return soul.Soul{}, false
	}
	return ra.soul, true
}

// UpdateSoul persists a new persona for agentID and updates the running
// registry's copy.
func (r *Registry) UpdateSoul(agentID string, s soul.Soul) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ra, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("no agent registered for %q", agentID)
	}
	if err := soul.Save(soul.Path(r.cfg.SoulsDir, agentID), s); err != nil {
		return err
	}
	ra.soul = s
	return nil
}

// GetSpec returns the spec for agentID.
func (r *Registry) GetSpec(agentID string) (AgentSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ra, ok := r.agents[agentID]
	if !ok {
		return AgentSpec{}, false
	}
	return ra.spec, true
}

// AgentIDs returns every registered agent ID.
func (r *Registry) AgentIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	return ids
}

// Contains reports whether agentID is registered.
func (r *Registry) Contains(agentID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[agentID]
	return ok
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// DefaultID returns the current default agent's ID, or "" if none is set.
func (r *Registry) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultID
}
