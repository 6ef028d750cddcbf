// Package event defines the wire envelope pushed to clients and the
// well-known event vocabulary producers emit through the dispatcher.
package event

import (
	"encoding/json"
	"time"
)

// Well-known event types. The set is open: producers may dispatch any
// type string, these are the ones the rest of the backend emits today.
const (
	TypeHealthPing          = "health_ping"
	TypeNewMessage          = "new_message"
	TypeConversationUpdated = "conversation_updated"
	TypeOrderCreated        = "order_created"

	// Protocol-level frames sent by the session layer.
	TypeSubscribed = "subscribed"
	TypeError      = "error"
)

// Error codes carried in the data of a TypeError frame.
const (
	CodeInvalidJSON      = "invalid_json"
	CodeTokenExpired     = "token_expired"
	CodeIdleTimeout      = "idle_timeout"
	CodeInvalidSubscribe = "invalid_subscribe"
	CodeForbidden        = "forbidden"
)

// Envelope is the outbound frame shape. Events are transient; nothing
// here is ever persisted.
type Envelope struct {
	V    int    `json:"v"`
	Type string `json:"type"`
	TS   string `json:"ts"`
	Data any    `json:"data"`
}

// New wraps data in a version-1 envelope stamped with the current UTC time.
func New(eventType string, data any) Envelope {
	return Envelope{
		V:    1,
		Type: eventType,
		TS:   time.Now().UTC().Format(time.RFC3339Nano),
		Data: data,
	}
}

// Encode marshals the envelope for transmission.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// ErrorData is the payload of a TypeError frame.
type ErrorData struct {
	Code string `json:"code"`
}

// NewError builds an error frame with the given code.
func NewError(code string) Envelope {
	return New(TypeError, ErrorData{Code: code})
}
