package hub

import (
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Transport is the push handle the hub uses to reach a remote peer. It
// is exclusively owned by the Connection that holds it; nothing else
// writes to the socket directly.
type Transport interface {
	Send(message []byte) error
	CloseWithStatus(status websocket.StatusCode, reason string)
	Close(err error)
}

// Identity is the authenticated subject behind a connection, fixed for
// the connection's lifetime.
type Identity struct {
	UserID string
	Role   string
}

// Connection is the registry's record of one live transport session.
type Connection struct {
	ID          uuid.UUID
	Transport   Transport
	Identity    Identity
	TokenExpiry time.Time
	ConnectedAt time.Time

	mu           sync.Mutex
	lastActivity time.Time
	aclCache     map[string]bool
}

// Touch records inbound activity. Heartbeats must not call this.
func (c *Connection) Touch(now time.Time) {
	c.mu.Lock()
	c.lastActivity = now
	c.mu.Unlock()
}

// LastActivity returns the time of the last non-heartbeat inbound frame.
func (c *Connection) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// CachedDecision looks up a previously computed authorization decision
// for a scope id. The cache lives and dies with the connection.
func (c *Connection) CachedDecision(scopeID string) (allowed, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	allowed, ok = c.aclCache[scopeID]
	return allowed, ok
}

// CacheDecision stores an authorization decision for a scope id.
func (c *Connection) CacheDecision(scopeID string, allowed bool) {
	c.mu.Lock()
	if c.aclCache == nil {
		c.aclCache = make(map[string]bool)
	}
	c.aclCache[scopeID] = allowed
	c.mu.Unlock()
}
