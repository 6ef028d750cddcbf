// Package acl decides whether an identity may subscribe to a scope.
package acl

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tritonJS826/ai-crm/internal/hub"
)

// RoleAdmin bypasses the participation check entirely. Matched
// case-insensitively; a missing role claim is simply a non-admin.
const RoleAdmin = "admin"

// ErrInvalidScope reports a subscribe request whose scope shape is not
// recognized. Distinct from a forbidden scope: the request is malformed
// before authorization is even attempted.
var ErrInvalidScope = errors.New("acl: invalid scope")

// ParticipationChecker is the conversation-participation check owned by
// the surrounding CRUD layer.
type ParticipationChecker interface {
	AuthorizeScope(ctx context.Context, userID, scopeKind, scopeID string) (bool, error)
}

// ValidateScope checks the shape of a subscribe request. Only the
// conversation scope kind with a non-empty id is recognized.
func ValidateScope(scopeKind, scopeID string) error {
	if scopeKind != hub.ScopeKindConversation || scopeID == "" {
		return ErrInvalidScope
	}
	return nil
}

// Gate authorizes subscriptions, caching decisions per connection so
// the participation check runs at most once per scope per connection
// lifetime. Cached entries never expire mid-connection; a revoked
// right takes effect on reconnect.
type Gate struct {
	checker ParticipationChecker
	logger  *slog.Logger
}

func NewGate(checker ParticipationChecker, logger *slog.Logger) *Gate {
	return &Gate{
		checker: checker,
		logger:  logger.With(slog.String("component", "acl_gate")),
	}
}

// Authorize reports whether the connection's identity may subscribe to
// the scope. Callers must validate the scope shape first.
func (g *Gate) Authorize(ctx context.Context, conn *hub.Connection, scopeID string) bool {
	if strings.EqualFold(conn.Identity.Role, RoleAdmin) {
		// Admins short-circuit without consulting the checker; the
		// decision is still cached for consistency.
		conn.CacheDecision(scopeID, true)
		return true
	}

	if allowed, ok := conn.CachedDecision(scopeID); ok {
		return allowed
	}

	allowed, err := g.checker.AuthorizeScope(ctx, conn.Identity.UserID, hub.ScopeKindConversation, scopeID)
	if err != nil {
		// Deny without caching: a transient checker failure must not
		// poison the connection's cache.
		g.logger.Error("Participation check failed",
			slog.String("userID", conn.Identity.UserID),
			slog.String("scopeID", scopeID),
			slog.Any("error", err),
		)
		return false
	}

	conn.CacheDecision(scopeID, allowed)
	return allowed
}
