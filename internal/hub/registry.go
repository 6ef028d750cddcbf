package hub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry owns the set of live connections and the bidirectional
// subscription index between connections and scopes.
//
// A single mutex guards all of it: both index directions must mutate
// atomically so that eviction and unsubscribe leave no dangling entries,
// and the data volume does not justify anything finer. The lock is
// never held across transport I/O; fan-out callers snapshot under the
// lock and send after releasing it.
type Registry struct {
	mu           sync.RWMutex
	conns        map[uuid.UUID]*Connection
	scopesByConn map[uuid.UUID]map[string]struct{}
	connsByScope map[string]map[uuid.UUID]struct{}

	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		conns:        make(map[uuid.UUID]*Connection),
		scopesByConn: make(map[uuid.UUID]map[string]struct{}),
		connsByScope: make(map[string]map[uuid.UUID]struct{}),
		logger:       logger.With(slog.String("component", "registry")),
	}
}

// Admit registers a new connection. The connection becomes visible to
// broadcast operations immediately.
func (r *Registry) Admit(t Transport, id uuid.UUID, identity Identity, tokenExpiry time.Time) *Connection {
	now := time.Now().UTC()
	conn := &Connection{
		ID:           id,
		Transport:    t,
		Identity:     identity,
		TokenExpiry:  tokenExpiry,
		ConnectedAt:  now,
		lastActivity: now,
	}

	r.mu.Lock()
	r.conns[id] = conn
	r.mu.Unlock()

	r.logger.Debug("Connection admitted",
		slog.String("connID", id.String()),
		slog.String("userID", identity.UserID),
	)
	return conn
}

// Evict removes a connection and every index entry referencing it.
// Idempotent: evicting an unknown or already-evicted connection is a
// no-op, so it is safe to call from both the guard and the transport's
// close path.
func (r *Registry) Evict(connID uuid.UUID) {
	r.mu.Lock()
	_, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, connID)

	scopes := r.scopesByConn[connID]
	delete(r.scopesByConn, connID)
	for scope := range scopes {
		subs := r.connsByScope[scope]
		delete(subs, connID)
		if len(subs) == 0 {
			delete(r.connsByScope, scope)
		}
	}
	r.mu.Unlock()

	r.logger.Debug("Connection evicted", slog.String("connID", connID.String()))
}

// Get returns the connection record, if it is still live.
func (r *Registry) Get(connID uuid.UUID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connID]
	return conn, ok
}

// Touch refreshes the connection's last-activity time. Reports whether
// the connection was found.
func (r *Registry) Touch(connID uuid.UUID) bool {
	r.mu.RLock()
	conn, ok := r.conns[connID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	conn.Touch(time.Now().UTC())
	return true
}

// Subscribe records the connection's interest in a scope, in both index
// directions. Subscribing twice has the same effect as once.
func (r *Registry) Subscribe(connID uuid.UUID, scope string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; !ok {
		return false
	}

	scopes, ok := r.scopesByConn[connID]
	if !ok {
		scopes = make(map[string]struct{})
		r.scopesByConn[connID] = scopes
	}
	scopes[scope] = struct{}{}

	subs, ok := r.connsByScope[scope]
	if !ok {
		subs = make(map[uuid.UUID]struct{})
		r.connsByScope[scope] = subs
	}
	subs[connID] = struct{}{}

	r.logger.Debug("Subscribed", slog.String("connID", connID.String()), slog.String("scope", scope))
	return true
}

// Unsubscribe removes both index directions. A scope whose subscriber
// set becomes empty is pruned immediately.
func (r *Registry) Unsubscribe(connID uuid.UUID, scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if scopes, ok := r.scopesByConn[connID]; ok {
		delete(scopes, scope)
		if len(scopes) == 0 {
			delete(r.scopesByConn, connID)
		}
	}
	if subs, ok := r.connsByScope[scope]; ok {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(r.connsByScope, scope)
		}
	}
}

// SubscribersOf snapshots the live connections subscribed to a scope.
func (r *Registry) SubscribersOf(scope string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.connsByScope[scope]
	out := make([]*Connection, 0, len(subs))
	for connID := range subs {
		if conn, ok := r.conns[connID]; ok {
			out = append(out, conn)
		}
	}
	return out
}

// ScopesOf snapshots the scopes a connection is subscribed to.
func (r *Registry) ScopesOf(connID uuid.UUID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	scopes := r.scopesByConn[connID]
	out := make([]string, 0, len(scopes))
	for scope := range scopes {
		out = append(out, scope)
	}
	return out
}

// All snapshots every live connection, for global broadcast and
// shutdown draining.
func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		out = append(out, conn)
	}
	return out
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CountByUser returns how many live connections a user currently holds.
func (r *Registry) CountByUser(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, conn := range r.conns {
		if conn.Identity.UserID == userID {
			n++
		}
	}
	return n
}

// OldestOfUser returns the user's longest-lived connection, used by the
// connection limiter's cycle mode.
func (r *Registry) OldestOfUser(userID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var oldest *Connection
	for _, conn := range r.conns {
		if conn.Identity.UserID != userID {
			continue
		}
		if oldest == nil || conn.ConnectedAt.Before(oldest.ConnectedAt) {
			oldest = conn
		}
	}
	return oldest, oldest != nil
}
