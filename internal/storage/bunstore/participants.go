// Package bunstore implements the gate's participation check against
// the conversation_participants table.
package bunstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/tritonJS826/ai-crm/internal/hub"
)

// ConversationParticipant mirrors the CRUD layer's membership table.
type ConversationParticipant struct {
	bun.BaseModel `bun:"table:conversation_participants,alias:cp"`

	ID             uuid.UUID `bun:"id,pk,type:uuid"`
	UserID         string    `bun:"user_id,notnull"`
	ConversationID string    `bun:"conversation_id,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
}

// ParticipantStore answers "is this user a participant of this
// conversation" for the ACL gate.
type ParticipantStore struct {
	db *bun.DB
}

func NewParticipantStore(db *bun.DB) *ParticipantStore {
	return &ParticipantStore{db: db}
}

// Init creates the backing table if it does not exist. Intended for
// stand-alone deployments; when the CRUD layer owns the schema this is
// a no-op against the existing table.
func (s *ParticipantStore) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*ConversationParticipant)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// AuthorizeScope reports whether userID participates in the
// conversation named by scopeID. Unknown scope kinds are denied.
func (s *ParticipantStore) AuthorizeScope(ctx context.Context, userID, scopeKind, scopeID string) (bool, error) {
	if scopeKind != hub.ScopeKindConversation {
		return false, nil
	}
	return s.db.NewSelect().
		Model((*ConversationParticipant)(nil)).
		Where("user_id = ?", userID).
		Where("conversation_id = ?", scopeID).
		Exists(ctx)
}

// Add records a participant. Used by the surrounding CRUD glue and by
// tests; the realtime core itself only reads.
func (s *ParticipantStore) Add(ctx context.Context, userID, conversationID string) error {
	participant := &ConversationParticipant{
		ID:             uuid.New(),
		UserID:         userID,
		ConversationID: conversationID,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.db.NewInsert().Model(participant).Exec(ctx)
	return err
}
