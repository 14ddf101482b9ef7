package server

import (
	"log"
	"sync"

	"gochat/protocol"
)

// Peer is the send side of one registered connection. The Registry keeps a
// non-owning reference: the Handler servicing the connection is the only
// place the transport is read from and torn down.
type Peer interface {
	ID() int64
	Send(m *protocol.Message) error
	Close() error
}

// Registry is the single source of truth for which connections are live.
// One lock guards every operation; the lock is never held across a network
// write, so broadcast callers take a Snapshot and write outside of it.
type Registry struct {
	mu    sync.Mutex
	peers map[int64]Peer
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[int64]Peer)}
}

// Register inserts a peer. A duplicate id is a programming error, not a
// recoverable condition: the acceptor allocates ids monotonically and never
// reuses one while the process runs.
func (r *Registry) Register(p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[p.ID()]; ok {
		log.Panicf("registry: duplicate connection id %d", p.ID())
	}
	r.peers[p.ID()] = p
}

// Unregister removes and returns the peer for an id. A missing id is benign:
// double-unregister races with concurrent shutdown.
func (r *Registry) Unregister(id int64) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[id]
	if ok {
		delete(r.peers, id)
	}
	return p, ok
}

// Lookup fetches the peer for a unicast send.
func (r *Registry) Lookup(id int64) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[id]
	return p, ok
}

// Snapshot returns a point-in-time copy of all registered peers, so the
// network writes that follow happen without the lock.
func (r *Registry) Snapshot() []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	peers := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	return peers
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// Clear drops every entry. Used as the last step of server shutdown, after
// all handlers have finished.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers = make(map[int64]Peer)
}
