// Package realtime is the live-connection layer: the registry of open
// WebSocket handles per user, the hub that fans events out to them, and the
// gateway that authenticates connections and routes inbound events.
package realtime

import (
	"cmp"
	"slices"
	"sync"
)

// Handle is one open live connection (a browser tab or device)
type Handle interface {
	ID() string
	// Send queues an event without blocking and reports whether it was accepted
	Send(ev Event) bool
	// Close shuts the connection down; the handle unregisters itself once it has
	Close()
}

// Registry maps a user to their open handles. A user is present only while
// at least one handle is open.
type Registry struct {
	mu    sync.RWMutex
	users map[uint]map[string]Handle
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[uint]map[string]Handle)}
}

func (r *Registry) Register(userID uint, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]Handle)
		r.users[userID] = set
	}
	set[h.ID()] = h
}

func (r *Registry) Unregister(userID uint, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[userID]
	if !ok {
		return
	}
	delete(set, h.ID())
	if len(set) == 0 {
		delete(r.users, userID)
	}
}

// HandlesFor returns a snapshot of the user's open handles, nil when offline
func (r *Registry) HandlesFor(userID uint) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.users[userID]
	if len(set) == 0 {
		return nil
	}
	handles := make([]Handle, 0, len(set))
	for _, h := range set {
		handles = append(handles, h)
	}
	slices.SortFunc(handles, func(a, b Handle) int { return cmp.Compare(a.ID(), b.ID()) })
	return handles
}

// Disconnect closes every open handle of the user and reports how many there were
func (r *Registry) Disconnect(userID uint) int {
	handles := r.HandlesFor(userID)
	for _, h := range handles {
		h.Close()
	}
	return len(handles)
}

func (r *Registry) IsOnline(userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok
}

// OnlineUsers returns the ids of every connected user in ascending order
func (r *Registry) OnlineUsers() []uint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uint, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ConnectionCount is the total number of open handles across all users
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, set := range r.users {
		n += len(set)
	}
	return n
}
