package events

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventMetadata struct {
	ID uuid.UUID `json:"message_id" yaml:"message_id"`
	// ConversationID scopes the event. Zero means no conversation.
	ConversationID int64  `json:"conversation_id,omitempty" yaml:"conversation_id,omitempty"`
	TurnID         string `json:"turn_id,omitempty" yaml:"turn_id,omitempty"`
}

func NewEventMetadata(conversationID int64, turnID string) EventMetadata {
	return EventMetadata{
		ID:             uuid.New(),
		ConversationID: conversationID,
		TurnID:         turnID,
	}
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.ConversationID != 0 {
		e.Int64("conversation_id", em.ConversationID)
	}
	if em.TurnID != "" {
		e.Str("turn_id", em.TurnID)
	}
}
