package event

import "encoding/json"

// Payload is what producers hand to the dispatcher: a closed set of
// well-known fields the routing layer understands, plus an open map for
// everything else. Keeping the known fields typed means routing never
// digs through untyped maps, while the open map keeps the wire format
// forward compatible.
type Payload struct {
	ConversationID string
	MessageID      string
	Fields         map[string]any
}

const (
	fieldConversationID = "conversation_id"
	fieldMessageID      = "message_id"
)

// PayloadFromMap lifts a raw producer map into a Payload, extracting the
// fields routing cares about. The map is not copied; callers must not
// mutate it after dispatching.
func PayloadFromMap(m map[string]any) Payload {
	p := Payload{Fields: m}
	if v, ok := m[fieldConversationID].(string); ok {
		p.ConversationID = v
	}
	if v, ok := m[fieldMessageID].(string); ok {
		p.MessageID = v
	}
	return p
}

// MarshalJSON flattens the known fields back into the open map so the
// client sees a single object, exactly as the producer shaped it.
func (p Payload) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Fields)+2)
	for k, v := range p.Fields {
		out[k] = v
	}
	if p.ConversationID != "" {
		out[fieldConversationID] = p.ConversationID
	}
	if p.MessageID != "" {
		out[fieldMessageID] = p.MessageID
	}
	return json.Marshal(out)
}
