// Package session drives request/response turns: it records the user input,
// calls the completion client, reveals the reply at a steady pace and merges
// the finished reply back into the conversation registry.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/go-go-golems/chatterbox/pkg/completion"
	"github.com/go-go-golems/chatterbox/pkg/conversation"
	"github.com/go-go-golems/chatterbox/pkg/events"
	"github.com/go-go-golems/chatterbox/pkg/reveal"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	// ErrInvalidOperation is wrapped by every rejected submission. A rejected
	// submission changes nothing.
	ErrInvalidOperation     = errors.New("invalid operation")
	ErrNoActiveConversation = errors.Wrap(ErrInvalidOperation, "no active conversation")
	ErrEmptyInput           = errors.Wrap(ErrInvalidOperation, "empty input")
	ErrBusy                 = errors.Wrap(ErrInvalidOperation, "conversation is already responding")
)

const (
	interruptReasonDeleted  = "conversation deleted"
	interruptReasonCanceled = "canceled"
	interruptReasonInactive = "conversation inactive"
)

type Session struct {
	registry *conversation.Registry
	client   completion.Client
	revealer *reveal.Revealer
	sinks    []events.EventSink

	mu    sync.Mutex
	turns map[int64]*TurnHandle
	draft string

	wg          sync.WaitGroup
	unsubscribe func()
}

type Option func(*Session)

func WithRevealer(r *reveal.Revealer) Option {
	return func(s *Session) {
		s.revealer = r
	}
}

func WithEventSinks(sinks ...events.EventSink) Option {
	return func(s *Session) {
		s.sinks = append(s.sinks, sinks...)
	}
}

func NewSession(registry *conversation.Registry, client completion.Client, options ...Option) *Session {
	s := &Session{
		registry: registry,
		client:   client,
		turns:    map[int64]*TurnHandle{},
	}
	for _, o := range options {
		o(s)
	}
	if s.revealer == nil {
		s.revealer = reveal.New()
	}
	s.unsubscribe = registry.Subscribe(s.onRegistryChange)
	return s
}

// Close detaches the session from the registry. In-flight turns keep running;
// use Wait to let them finish.
func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

func (s *Session) Registry() *conversation.Registry {
	return s.registry
}

func (s *Session) eventContext(ctx context.Context) context.Context {
	return events.WithEventSinks(ctx, s.sinks...)
}

func (s *Session) onRegistryChange(c conversation.Change) {
	ctx := s.eventContext(context.Background())

	if c.Kind == conversation.ChangeDeleted {
		s.mu.Lock()
		h := s.turns[c.ConversationID]
		s.mu.Unlock()
		if h != nil && h.abandon() {
			log.Debug().Int64("conversation_id", c.ConversationID).Str("turn_id", h.ID).
				Msg("conversation deleted while responding, abandoning turn")
			events.PublishEventToContext(ctx,
				events.NewInterruptEvent(events.NewEventMetadata(c.ConversationID, h.ID), "", interruptReasonDeleted))
		}
	}

	activeID, _ := s.registry.ActiveID()
	events.PublishEventToContext(ctx,
		events.NewConversationsEvent(events.NewEventMetadata(c.ConversationID, ""), string(c.Kind), activeID, s.registry.Len()))
}

// Submit starts a turn for the active conversation with the given input.
//
// The user message is appended before Submit returns. The rest of the turn
// runs in the background; use the returned handle to wait for or cancel it.
func (s *Session) Submit(ctx context.Context, text string) (*TurnHandle, error) {
	id, ok := s.registry.ActiveID()
	if !ok {
		return nil, ErrNoActiveConversation
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	if ctx == nil {
		ctx = context.Background()
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := newTurnHandle(uuid.NewString(), id, text, cancel)

	s.mu.Lock()
	if existing := s.turns[id]; existing != nil {
		s.mu.Unlock()
		cancel()
		return nil, errors.Wrapf(ErrBusy, "conversation %d", id)
	}
	s.turns[id] = h
	s.mu.Unlock()

	conv, ok := s.registry.Get(id)
	if !ok || !s.registry.Append(id, conversation.NewUserMessage(text)) {
		s.release(h)
		cancel()
		return nil, ErrNoActiveConversation
	}
	transcript := conversation.BuildTranscript(conv.Messages, text)

	log.Debug().Int64("conversation_id", id).Str("turn_id", h.ID).Int("history", len(conv.Messages)).
		Msg("starting turn")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.run(s.eventContext(runCtx), h, transcript)
	}()

	return h, nil
}

func (s *Session) run(ctx context.Context, h *TurnHandle, transcript string) {
	meta := func() events.EventMetadata {
		return events.NewEventMetadata(h.ConversationID, h.ID)
	}

	events.PublishEventToContext(ctx, events.NewStartEvent(meta(), h.Input))
	events.PublishEventToContext(ctx, events.NewRespondingEvent(meta(), true))

	res, err := s.stream(ctx, h, transcript, meta)
	if err != nil {
		s.release(h)
		events.PublishEventToContext(ctx, events.NewRespondingEvent(meta(), false))

		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			log.Debug().Int64("conversation_id", h.ConversationID).Str("turn_id", h.ID).Msg("turn canceled")
			events.PublishEventToContext(ctx, events.NewInterruptEvent(meta(), "", interruptReasonCanceled))
		} else {
			log.Error().Err(err).Int64("conversation_id", h.ConversationID).Str("turn_id", h.ID).Msg("turn failed")
			events.PublishEventToContext(ctx, events.NewErrorEvent(meta(), completion.UserMessage(err)))
		}
		h.setResult("", false, err)
		return
	}

	reply := strings.TrimSpace(res.Text)
	merged := false
	if !res.Abandoned && s.isRelevant(h) {
		merged = s.registry.Append(h.ConversationID, conversation.NewAIMessage(reply))
	} else if !h.Abandoned() {
		// switched away mid-stream, the reply is dropped
		events.PublishEventToContext(ctx, events.NewInterruptEvent(meta(), "", interruptReasonInactive))
	}
	s.release(h)
	events.PublishEventToContext(ctx, events.NewRespondingEvent(meta(), false))

	log.Debug().Int64("conversation_id", h.ConversationID).Str("turn_id", h.ID).
		Bool("merged", merged).Bool("abandoned", res.Abandoned).Int("units", res.Units).
		Msg("turn finished")

	if merged {
		s.mu.Lock()
		s.draft = ""
		s.mu.Unlock()
		events.PublishEventToContext(ctx, events.NewFinalEvent(meta(), reply))
		events.PublishEventToContext(ctx, events.NewInputClearedEvent(meta()))
	}
	h.setResult(reply, merged, nil)
}

func (s *Session) stream(
	ctx context.Context,
	h *TurnHandle,
	transcript string,
	meta func() events.EventMetadata,
) (reveal.Result, error) {
	src, err := s.client.Submit(ctx, transcript)
	if err != nil {
		return reveal.Result{}, err
	}

	relevant := func() bool {
		return s.isRelevant(h)
	}
	sink := reveal.SinkFunc(func(unit string) {
		events.PublishEventToContext(ctx, events.NewRevealEvent(meta(), unit))
	})

	return s.revealer.Run(ctx, src, sink, relevant)
}

// isRelevant reports whether h may still reveal units and merge its reply:
// it was not abandoned and its conversation is the active one.
func (s *Session) isRelevant(h *TurnHandle) bool {
	return !h.Abandoned() && s.registry.IsActive(h.ConversationID)
}

func (s *Session) release(h *TurnHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turns[h.ConversationID] == h {
		delete(s.turns, h.ConversationID)
	}
}

// IsResponding reports whether conversation id has a turn in flight.
func (s *Session) IsResponding(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns[id] != nil
}

// Turn returns the in-flight turn of conversation id, if any.
func (s *Session) Turn(id int64) (*TurnHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.turns[id]
	return h, ok
}

// Wait blocks until all in-flight turns are over.
func (s *Session) Wait() {
	s.wg.Wait()
}

// SetDraft stores the pending input. A non-empty draft with no active
// conversation starts a new conversation.
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()

	if text != "" {
		s.registry.EnsureActive()
	}
}

func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SubmitDraft submits the pending input. The draft is cleared once the reply
// has been merged and kept if the turn fails.
func (s *Session) SubmitDraft(ctx context.Context) (*TurnHandle, error) {
	return s.Submit(ctx, s.Draft())
}
