package realtime

import (
	"sync"

	"github.com/google/uuid"
)

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

func ValidRole(r string) bool {
	return r == string(RoleTeacher) || r == string(RoleStudent)
}

// GroupKey identifies a broadcast target. Derived at send time, never stored.
type GroupKey struct {
	SessionID uuid.UUID
	Role      Role
}

// Registry is the process-local map from group key to attached connections.
// It requires no cross-process coordination; fan-out across processes happens
// at the broker layer.
type Registry struct {
	mu     sync.RWMutex
	groups map[GroupKey]map[*Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{groups: make(map[GroupKey]map[*Conn]struct{})}
}

// Attach files the connection under key and reports whether it is the first
// local member of that group.
func (r *Registry) Attach(key GroupKey, c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.groups[key]
	if !ok {
		conns = make(map[*Conn]struct{})
		r.groups[key] = conns
	}
	conns[c] = struct{}{}
	return len(conns) == 1
}

// Detach removes the connection. Detaching an unknown connection is a no-op.
// Reports whether the group is now empty of local members.
func (r *Registry) Detach(key GroupKey, c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.groups[key]
	if !ok {
		return false
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(r.groups, key)
		return true
	}
	return false
}

func (r *Registry) Count(key GroupKey) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[key])
}

// Broadcast delivers payload to every connection currently attached under key.
// Delivery is fire-and-forget per connection; a connection that disconnected
// mid-broadcast just misses the frame.
func (r *Registry) Broadcast(key GroupKey, payload []byte) {
	for _, c := range r.snapshot(key) {
		c.enqueue(payload)
	}
}

// CloseGroup closes every connection attached under key and empties the group.
func (r *Registry) CloseGroup(key GroupKey) {
	r.mu.Lock()
	conns := r.groups[key]
	delete(r.groups, key)
	r.mu.Unlock()

	for c := range conns {
		c.close()
	}
}

// snapshot copies the member set so sends happen without holding the lock.
func (r *Registry) snapshot(key GroupKey) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.groups[key]
	out := make([]*Conn, 0, len(conns))
	for c := range conns {
		out = append(out, c)
	}
	return out
}
