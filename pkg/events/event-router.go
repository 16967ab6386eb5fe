package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-go-golems/chatterbox/pkg/helpers"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ChatEventHandler receives typed chat events.
type ChatEventHandler interface {
	HandleStart(ctx context.Context, e *EventStart) error
	HandleReveal(ctx context.Context, e *EventReveal) error
	HandleFinal(ctx context.Context, e *EventFinal) error
	HandleError(ctx context.Context, e *EventError) error
	HandleInterrupt(ctx context.Context, e *EventInterrupt) error
	HandleResponding(ctx context.Context, e *EventResponding) error
	HandleConversations(ctx context.Context, e *EventConversations) error
	HandleInputCleared(ctx context.Context, e *EventInputCleared) error
}

type EventRouter struct {
	logger     watermill.LoggerAdapter
	Publisher  message.Publisher
	Subscriber message.Subscriber
	router     *message.Router
	verbose    bool
}

type EventRouterOption func(*EventRouter)

func WithLogger(logger watermill.LoggerAdapter) EventRouterOption {
	return func(r *EventRouter) {
		r.logger = logger
	}
}

func WithVerbose(verbose bool) EventRouterOption {
	return func(r *EventRouter) {
		r.verbose = verbose
		if verbose {
			r.logger = helpers.NewWatermill(log.Logger)
		}
	}
}

func NewEventRouter(options ...EventRouterOption) (*EventRouter, error) {
	ret := &EventRouter{
		logger: watermill.NopLogger{},
	}

	for _, o := range options {
		o(ret)
	}

	goPubSub := gochannel.NewGoChannel(gochannel.Config{
		BlockPublishUntilSubscriberAck: true,
	}, ret.logger)
	ret.Publisher = goPubSub
	ret.Subscriber = goPubSub

	router, err := message.NewRouter(message.RouterConfig{}, ret.logger)
	if err != nil {
		return nil, err
	}

	ret.router = router

	return ret, nil
}

// Sink returns an EventSink publishing on topic through this router.
func (e *EventRouter) Sink(topic string) *WatermillSink {
	return NewWatermillSink(e.Publisher, topic)
}

func (e *EventRouter) Close() error {
	log.Debug().Msg("Closing publisher")
	err := e.Publisher.Close()
	if err != nil {
		log.Error().Err(err).Msg("Failed to close pubsub")
	}

	log.Debug().Msg("Closing router")
	err = e.router.Close()
	if err != nil {
		log.Error().Err(err).Msg("Failed to close router")
	}
	log.Debug().Msg("Router closed")

	return nil
}

// NewChatDispatchHandler parses chat events and hands them to the matching
// method of handler. Undecodable messages are logged and dropped.
func NewChatDispatchHandler(handler ChatEventHandler) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			log.Error().Err(err).Str("message_id", msg.UUID).Str("payload", string(msg.Payload)).
				Msg("Failed to parse chat event from message payload")
			return nil
		}

		ctx := msg.Context()
		var handlerErr error
		switch ev := e.(type) {
		case *EventStart:
			handlerErr = handler.HandleStart(ctx, ev)
		case *EventReveal:
			handlerErr = handler.HandleReveal(ctx, ev)
		case *EventFinal:
			handlerErr = handler.HandleFinal(ctx, ev)
		case *EventError:
			handlerErr = handler.HandleError(ctx, ev)
		case *EventInterrupt:
			handlerErr = handler.HandleInterrupt(ctx, ev)
		case *EventResponding:
			handlerErr = handler.HandleResponding(ctx, ev)
		case *EventConversations:
			handlerErr = handler.HandleConversations(ctx, ev)
		case *EventInputCleared:
			handlerErr = handler.HandleInputCleared(ctx, ev)
		default:
			log.Warn().Str("message_id", msg.UUID).Str("event_type", string(e.Type())).Msg("Unhandled chat event type")
		}

		if handlerErr != nil {
			log.Error().Err(handlerErr).Str("message_id", msg.UUID).Str("event_type", string(e.Type())).
				Msg("Error processing chat event")
			return handlerErr
		}

		return nil
	}
}

func (e *EventRouter) AddHandler(name string, topic string, f func(msg *message.Message) error) {
	e.router.AddNoPublisherHandler(name, topic, e.Subscriber, f)
}

type RawFormat string

const (
	RawFormatJSON RawFormat = "json"
	RawFormatYAML RawFormat = "yaml"
)

// RawEventPrinterFunc writes every event payload to w. Unless the router is
// verbose, the metadata block is reduced to the message id.
func (e *EventRouter) RawEventPrinterFunc(w io.Writer, format RawFormat) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		defer msg.Ack()

		var s map[string]interface{}
		err := json.Unmarshal(msg.Payload, &s)
		if err != nil {
			return err
		}
		if !e.verbose {
			if meta, ok := s["meta"].(map[string]interface{}); ok {
				s["id"] = meta["message_id"]
			}
			delete(s, "meta")
		}

		var b []byte
		switch format {
		case RawFormatYAML:
			b, err = yaml.Marshal(s)
			if err == nil {
				b = append([]byte("---\n"), b...)
			}
		default:
			b, err = json.MarshalIndent(s, "", "  ")
			if err == nil {
				b = append(b, '\n')
			}
		}
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, string(b))
		return err
	}
}

func (e *EventRouter) Running() chan struct{} {
	return e.router.Running()
}

func (e *EventRouter) IsRunning() bool {
	return e.router.IsRunning()
}

func (e *EventRouter) Run(ctx context.Context) error {
	return e.router.Run(ctx)
}
