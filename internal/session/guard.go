// Package session enforces the per-frame protocol: parse, token expiry,
// idle timeout, heartbeat, then message handling. Every terminal
// condition notifies the client, closes the transport with a cause-
// specific code and evicts the connection from the registry.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/tritonJS826/ai-crm/internal/acl"
	"github.com/tritonJS826/ai-crm/internal/hub"
	"github.com/tritonJS826/ai-crm/pkg/event"
)

// Close codes, one per terminal cause so clients can tell them apart.
const (
	CloseProtocolViolation = websocket.StatusUnsupportedData // malformed frame
	CloseAuthFailure       = websocket.StatusCode(4401)      // expired token
	CloseGoingAway         = websocket.StatusGoingAway       // idle timeout
	ClosePolicyViolation   = websocket.StatusPolicyViolation // forbidden subscribe
)

// Inbound message types.
const (
	msgTypePing      = "ping"
	msgTypeSubscribe = "subscribe"
)

// SubscribedData acknowledges a successful subscribe, echoing the
// requested scope kind and id.
type SubscribedData struct {
	Scope string `json:"scope"`
	ID    string `json:"id"`
}

// Guard runs on every inbound frame of an authenticated connection.
type Guard struct {
	registry    *hub.Registry
	gate        *acl.Gate
	idleTimeout time.Duration
	logger      *slog.Logger
}

func NewGuard(registry *hub.Registry, gate *acl.Gate, idleTimeout time.Duration, logger *slog.Logger) *Guard {
	return &Guard{
		registry:    registry,
		gate:        gate,
		idleTimeout: idleTimeout,
		logger:      logger.With(slog.String("component", "session_guard")),
	}
}

// HandleFrame is the transport's message handler. Checks run in strict
// precedence order: malformed frame, token expiry, idle timeout,
// heartbeat, then message dispatch. Only non-heartbeat frames refresh
// the connection's activity clock.
func (g *Guard) HandleFrame(ctx context.Context, connID uuid.UUID, raw []byte) {
	conn, ok := g.registry.Get(connID)
	if !ok {
		return
	}
	now := time.Now().UTC()

	parsed := gjson.ParseBytes(raw)
	if !gjson.ValidBytes(raw) || !parsed.IsObject() {
		g.terminate(conn, event.CodeInvalidJSON, CloseProtocolViolation)
		return
	}

	if !conn.TokenExpiry.After(now) {
		g.terminate(conn, event.CodeTokenExpired, CloseAuthFailure)
		return
	}

	if now.Sub(conn.LastActivity()) > g.idleTimeout {
		g.terminate(conn, event.CodeIdleTimeout, CloseGoingAway)
		return
	}

	msgType := parsed.Get("type").String()

	// Heartbeats keep the socket alive at the transport level but do
	// not count as activity.
	if msgType == msgTypePing {
		return
	}

	conn.Touch(now)

	switch msgType {
	case msgTypeSubscribe:
		g.handleSubscribe(ctx, conn, parsed)
	default:
		g.logger.Debug("Ignoring unknown message type",
			slog.String("connID", connID.String()),
			slog.String("type", msgType),
		)
	}
}

func (g *Guard) handleSubscribe(ctx context.Context, conn *hub.Connection, parsed gjson.Result) {
	scopeKind := parsed.Get("data.scope").String()
	scopeID := parsed.Get("data.id").String()

	if err := acl.ValidateScope(scopeKind, scopeID); err != nil {
		// Bad shape is recoverable; the connection stays open.
		g.send(conn, event.NewError(event.CodeInvalidSubscribe))
		return
	}

	if !g.gate.Authorize(ctx, conn, scopeID) {
		g.terminate(conn, event.CodeForbidden, ClosePolicyViolation)
		return
	}

	g.registry.Subscribe(conn.ID, hub.ConversationScope(scopeID))
	g.send(conn, event.New(event.TypeSubscribed, SubscribedData{Scope: scopeKind, ID: scopeID}))
}

// terminate performs the fatal sequence: best-effort client
// notification, transport close with the cause's code, registry
// eviction. All three run even if an earlier step fails.
func (g *Guard) terminate(conn *hub.Connection, code string, status websocket.StatusCode) {
	g.logger.Info("Terminating connection",
		slog.String("connID", conn.ID.String()),
		slog.String("code", code),
	)
	g.send(conn, event.NewError(code))
	conn.Transport.CloseWithStatus(status, code)
	g.registry.Evict(conn.ID)
}

func (g *Guard) send(conn *hub.Connection, env event.Envelope) {
	msg, err := env.Encode()
	if err != nil {
		g.logger.Error("Failed to encode frame", slog.Any("error", err))
		return
	}
	if err := conn.Transport.Send(msg); err != nil {
		g.logger.Warn("Failed to send frame",
			slog.String("connID", conn.ID.String()),
			slog.Any("error", err),
		)
	}
}
