package events

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// EventTypeStart to EventTypeFinal bracket a single turn.
	EventTypeStart  EventType = "start"
	EventTypeReveal EventType = "reveal"
	EventTypeFinal  EventType = "final"
	EventTypeError  EventType = "error"
	// EventTypeInterrupt is sent when a turn was abandoned, for example
	// because its conversation was deleted.
	EventTypeInterrupt EventType = "interrupt"

	EventTypeResponding    EventType = "responding"
	EventTypeConversations EventType = "conversations"
	EventTypeInputCleared  EventType = "input-cleared"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// store payload if the event was deserialized from JSON (see NewEventFromJson), not further used
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

var _ Event = &EventImpl{}

type EventStart struct {
	EventImpl
	// Input is the user text that started the turn.
	Input string `json:"input"`
}

func NewStartEvent(metadata EventMetadata, input string) *EventStart {
	return &EventStart{
		EventImpl: EventImpl{
			Type_:     EventTypeStart,
			Metadata_: metadata,
		},
		Input: input,
	}
}

var _ Event = &EventStart{}

// EventReveal carries one paced reveal unit.
type EventReveal struct {
	EventImpl
	Unit string `json:"unit"`
}

func NewRevealEvent(metadata EventMetadata, unit string) *EventReveal {
	return &EventReveal{
		EventImpl: EventImpl{
			Type_:     EventTypeReveal,
			Metadata_: metadata,
		},
		Unit: unit,
	}
}

var _ Event = &EventReveal{}

type EventFinal struct {
	EventImpl
	Text string `json:"text"`
}

func NewFinalEvent(metadata EventMetadata, text string) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{
			Type_:     EventTypeFinal,
			Metadata_: metadata,
		},
		Text: text,
	}
}

var _ Event = &EventFinal{}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, message string) *EventError {
	return &EventError{
		EventImpl: EventImpl{
			Type_:     EventTypeError,
			Metadata_: metadata,
		},
		ErrorString: message,
	}
}

var _ Event = &EventError{}

type EventInterrupt struct {
	EventImpl
	// Text is what had been received when the turn was abandoned.
	Text   string `json:"text"`
	Reason string `json:"reason,omitempty"`
}

func NewInterruptEvent(metadata EventMetadata, text string, reason string) *EventInterrupt {
	return &EventInterrupt{
		EventImpl: EventImpl{
			Type_:     EventTypeInterrupt,
			Metadata_: metadata,
		},
		Text:   text,
		Reason: reason,
	}
}

var _ Event = &EventInterrupt{}

type EventResponding struct {
	EventImpl
	Responding bool `json:"responding"`
}

func NewRespondingEvent(metadata EventMetadata, responding bool) *EventResponding {
	return &EventResponding{
		EventImpl: EventImpl{
			Type_:     EventTypeResponding,
			Metadata_: metadata,
		},
		Responding: responding,
	}
}

var _ Event = &EventResponding{}

// EventConversations reports a change to the set of conversations or to the
// active one.
type EventConversations struct {
	EventImpl
	Change   string `json:"change"`
	ActiveID int64  `json:"active_id,omitempty"`
	Count    int    `json:"count"`
}

func NewConversationsEvent(metadata EventMetadata, change string, activeID int64, count int) *EventConversations {
	return &EventConversations{
		EventImpl: EventImpl{
			Type_:     EventTypeConversations,
			Metadata_: metadata,
		},
		Change:   change,
		ActiveID: activeID,
		Count:    count,
	}
}

var _ Event = &EventConversations{}

type EventInputCleared struct {
	EventImpl
}

func NewInputClearedEvent(metadata EventMetadata) *EventInputCleared {
	return &EventInputCleared{
		EventImpl: EventImpl{
			Type_:     EventTypeInputCleared,
			Metadata_: metadata,
		},
	}
}

var _ Event = &EventInputCleared{}

func NewEventFromJson(b []byte) (Event, error) {
	var e *EventImpl
	err := json.Unmarshal(b, &e)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errors.New("empty event")
	}

	e.payload = b

	switch e.Type_ {
	case EventTypeStart:
		return decodeTyped[EventStart](e)
	case EventTypeReveal:
		return decodeTyped[EventReveal](e)
	case EventTypeFinal:
		return decodeTyped[EventFinal](e)
	case EventTypeError:
		return decodeTyped[EventError](e)
	case EventTypeInterrupt:
		return decodeTyped[EventInterrupt](e)
	case EventTypeResponding:
		return decodeTyped[EventResponding](e)
	case EventTypeConversations:
		return decodeTyped[EventConversations](e)
	case EventTypeInputCleared:
		return decodeTyped[EventInputCleared](e)
	}

	return e, nil
}

// eventPtr is satisfied by pointers to the typed events above, which all
// embed EventImpl.
type eventPtr[T any] interface {
	*T
	Event
	setPayload(b []byte)
}

func (e *EventImpl) setPayload(b []byte) {
	e.payload = b
}

func decodeTyped[T any, PT eventPtr[T]](e *EventImpl) (Event, error) {
	ret, ok := ToTypedEvent[T](e)
	if !ok || ret == nil {
		return nil, errors.Errorf("could not cast event to %s", e.Type_)
	}
	PT(ret).setPayload(e.payload)
	return PT(ret), nil
}

func ToTypedEvent[T any](e Event) (*T, bool) {
	var ret *T
	err := json.Unmarshal(e.Payload(), &ret)
	if err != nil {
		return nil, false
	}

	return ret, true
}
