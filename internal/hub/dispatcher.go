package hub

import (
	"log/slog"

	"github.com/tritonJS826/ai-crm/pkg/event"
)

// Dispatcher is the single surface the rest of the backend uses to push
// realtime notifications. Delivery is best-effort and fire-and-forget:
// a failure to reach one connection evicts that connection and is never
// reported to the caller.
type Dispatcher struct {
	registry              *Registry
	enableGlobalBroadcast bool
	logger                *slog.Logger
}

func NewDispatcher(registry *Registry, enableGlobalBroadcast bool, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry:              registry,
		enableGlobalBroadcast: enableGlobalBroadcast,
		logger:                logger.With(slog.String("component", "dispatcher")),
	}
}

// Dispatch routes a raw producer payload. This is the collaborator
// entry point; typed callers should prefer DispatchEvent.
func (d *Dispatcher) Dispatch(eventType string, payload map[string]any) {
	d.DispatchEvent(eventType, event.PayloadFromMap(payload))
}

// DispatchEvent wraps the payload in a wire envelope and routes it: to
// the conversation's scope when the payload names one, otherwise to a
// global broadcast when that fallback is enabled. Events that match
// neither policy are dropped silently.
func (d *Dispatcher) DispatchEvent(eventType string, payload event.Payload) {
	msg, err := event.New(eventType, payload).Encode()
	if err != nil {
		d.logger.Error("Failed to encode event", slog.String("type", eventType), slog.Any("error", err))
		return
	}

	if payload.ConversationID != "" {
		scope := ConversationScope(payload.ConversationID)
		d.deliver(d.registry.SubscribersOf(scope), msg, eventType)
		return
	}

	if !d.enableGlobalBroadcast {
		d.logger.Debug("Global broadcast disabled, dropping event", slog.String("type", eventType))
		return
	}
	d.deliver(d.registry.All(), msg, eventType)
}

// deliver pushes one encoded frame to each target. The registry lock is
// not held here; a connection evicted since the snapshot simply fails
// its send and is evicted again, which is a no-op.
func (d *Dispatcher) deliver(targets []*Connection, msg []byte, eventType string) {
	for _, conn := range targets {
		if err := conn.Transport.Send(msg); err != nil {
			d.logger.Warn("Failed to deliver event, evicting connection",
				slog.String("type", eventType),
				slog.String("connID", conn.ID.String()),
				slog.Any("error", err),
			)
			conn.Transport.Close(err)
			d.registry.Evict(conn.ID)
		}
	}
}
