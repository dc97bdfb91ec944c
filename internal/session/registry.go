package session

import (
	"sync"

	"github.com/npezzotti/go-messenger/internal/types"
)

// Registry tracks which users currently hold live connections. It keeps
// a forward map of connection id to user id and a reverse index of user
// id to connection ids; the two are mutated together under one lock so
// readers never observe a half-applied change. Presence checks are O(1)
// via the reverse index.
//
// State is process-local and rebuilt from zero on restart; clients are
// expected to re-authenticate.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]string
	users map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]string),
		users: make(map[string]map[string]struct{}),
	}
}

// Register binds connId to userId, overwriting any previous binding for
// the same connection. Re-registering a stale connection id is not an
// error. Reports whether this was the user's first live connection.
func (r *Registry) Register(connId, userId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.conns[connId]; ok {
		r.dropConn(prev, connId)
	}

	cameOnline := len(r.users[userId]) == 0

	r.conns[connId] = userId
	if r.users[userId] == nil {
		r.users[userId] = make(map[string]struct{})
	}
	r.users[userId][connId] = struct{}{}

	return cameOnline
}

// Unregister removes connId if present. Unregistering an unknown
// connection is a no-op so duplicate disconnect events are tolerated.
// Reports whether the owning user went offline as a result.
func (r *Registry) Unregister(connId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	userId, ok := r.conns[connId]
	if !ok {
		return false
	}

	delete(r.conns, connId)
	r.dropConn(userId, connId)

	return len(r.users[userId]) == 0
}

// dropConn removes one connection from the reverse index. Caller must
// hold the write lock.
func (r *Registry) dropConn(userId, connId string) {
	if conns, ok := r.users[userId]; ok {
		delete(conns, connId)
		if len(conns) == 0 {
			delete(r.users, userId)
		}
	}
}

// IsOnline reports whether at least one connection is registered for
// userId.
func (r *Registry) IsOnline(userId string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users[userId]) > 0
}

// FilterOnline returns the subset of users with at least one live
// connection, evaluated against a single consistent snapshot of
// registry state.
func (r *Registry) FilterOnline(users []types.User) []types.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var online []types.User
	for _, u := range users {
		if len(r.users[u.Id]) > 0 {
			online = append(online, u)
		}
	}
	return online
}

// Connections returns the connection ids currently registered for
// userId.
func (r *Registry) Connections(userId string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]string, 0, len(r.users[userId]))
	for id := range r.users[userId] {
		conns = append(conns, id)
	}
	return conns
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}
