package ws

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"foodmed/internal/domain"
)

// ErrInvalidIdentity is returned by Register for an empty user id.
var ErrInvalidIdentity = fmt.Errorf("%w: %w: user id must not be empty", domain.ErrRegistry, domain.ErrValidation)

type set map[string]struct{}

func (s set) keys() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Registry is the presence index: user id <-> connection ids, plus the rooms
// each connection joined. All mutations happen under one lock with no I/O.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]string // connection -> user
	byUser map[string]set    // user -> connections
	rooms  map[string]set    // room -> connections
	joined map[string]set    // connection -> rooms
	scope  map[string]string // connection -> identity its rooms are bound to
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]string),
		byUser: make(map[string]set),
		rooms:  make(map[string]set),
		joined: make(map[string]set),
		scope:  make(map[string]string),
	}
}

// Register binds connID to userID. It reports whether the online set changed:
// userID came online, or connID was moved away from the last connection of
// another user.
func (r *Registry) Register(connID, userID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || connID == "" {
		return false, ErrInvalidIdentity
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := false
	if prev, ok := r.byConn[connID]; ok {
		if prev == userID {
			return false, nil
		}
		changed = r.detachLocked(connID, prev)
	}
	conns := r.byUser[userID]
	if conns == nil {
		conns = make(set)
		r.byUser[userID] = conns
		changed = true
	}
	conns[connID] = struct{}{}
	r.byConn[connID] = userID
	return changed, nil
}

// Unregister drops connID with its identity and room memberships. It returns
// the user the connection was bound to and whether that user went offline.
// Unknown connections are a no-op.
func (r *Registry) Unregister(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.joined[connID] {
		if members := r.rooms[room]; members != nil {
			delete(members, connID)
			if len(members) == 0 {
				delete(r.rooms, room)
			}
		}
	}
	delete(r.joined, connID)
	delete(r.scope, connID)

	userID, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	return userID, r.detachLocked(connID, userID)
}

func (r *Registry) detachLocked(connID, userID string) bool {
	delete(r.byConn, connID)
	conns := r.byUser[userID]
	if conns == nil {
		return false
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.byUser, userID)
		return true
	}
	return false
}

// Join adds connID to each non-empty room. A non-empty scope limits what the
// rooms route to connID: only messages sent or received by scope.
func (r *Registry) Join(connID, scope string, rooms ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if scope != "" {
		r.scope[connID] = scope
	}
	for _, room := range rooms {
		if room == "" {
			continue
		}
		if r.rooms[room] == nil {
			r.rooms[room] = make(set)
		}
		r.rooms[room][connID] = struct{}{}
		if r.joined[connID] == nil {
			r.joined[connID] = make(set)
		}
		r.joined[connID][room] = struct{}{}
	}
}

// OnlineUsers returns a sorted snapshot of the users with at least one connection.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byUser))
	for u := range r.byUser {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// ConnectionsFor returns the connections identified as userID.
func (r *Registry) ConnectionsFor(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byUser[userID].keys()
}

// UserOf returns the identity bound to connID.
func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byConn[connID]
	return u, ok
}

// Recipients returns every connection addressed by a message from sender to
// receiver: the connections identified as receiver plus those that joined
// receiver as a room, unless their scope excludes the pair.
func (r *Registry) Recipients(sender, receiver string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(set, len(r.byUser[receiver])+len(r.rooms[receiver]))
	for c := range r.byUser[receiver] {
		out[c] = struct{}{}
	}
	for c := range r.rooms[receiver] {
		if scope, ok := r.scope[c]; ok && scope != sender && scope != receiver {
			continue
		}
		out[c] = struct{}{}
	}
	return out.keys()
}

// IsOnline reports whether userID has a live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}
