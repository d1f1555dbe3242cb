// Package cluster assigns ownership of delivery-queue messages across a
// pool of worker nodes so that running more than one queue.Worker instance
// against the same store never delivers the same message twice.
//
// Ownership is a pure function of (message id, node set): every node
// computes the same rendezvous-hash winner independently, with no
// coordination beyond agreeing on the current member list.
package cluster

import (
	"sync"

	rendezvous "github.com/dgryski/go-rendezvous"

	"github.com/cespare/xxhash/v2"
)

// Pool tracks a node's own id and the current membership of its cluster,
// answering whether this node owns a given message id.
type Pool struct {
	mu     sync.RWMutex
	nodeID string
	nodes  []string
	table  *rendezvous.Rendezvous
}

func hashNode(s string) uint64 {
	return xxhash.Sum64String(s)
}

// NewPool creates a single-node pool: nodeID owns every key until peers are
// added with SetMembers.
func NewPool(nodeID string) *Pool {
	p := &Pool{nodeID: nodeID}
	p.SetMembers([]string{nodeID})
	return p
}

// SetMembers replaces the pool's membership list. nodeID is added
// automatically if missing, since a node always considers itself a member.
func (p *Pool) SetMembers(nodes []string) {
	seen := make(map[string]bool, len(nodes)+1)
	members := make([]string, 0, len(nodes)+1)
	for _, n := range nodes {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		members = append(members, n)
	}
	if !seen[p.nodeID] {
		members = append(members, p.nodeID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes = members
	p.table = rendezvous.New(members, hashNode)
}

// Owns reports whether this node is the rendezvous-hash winner for key
// among the pool's current members.
func (p *Pool) Owns(key string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.table == nil {
		return true
	}
	return p.table.Lookup(key) == p.nodeID
}

// Members returns the pool's current node list.
func (p *Pool) Members() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.nodes))
	copy(out, p.nodes)
	return out
}

// NodeID returns this pool's own node id.
func (p *Pool) NodeID() string {
	return p.nodeID
}
