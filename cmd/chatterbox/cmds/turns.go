package cmds

import (
	"context"
	"io"

	"github.com/go-go-golems/chatterbox/pkg/conversation"
	"github.com/go-go-golems/chatterbox/pkg/events"
	"github.com/go-go-golems/chatterbox/pkg/helpers"
	"github.com/go-go-golems/chatterbox/pkg/session"
	"github.com/go-go-golems/chatterbox/pkg/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// turnEnvironment wires store, registry, router and session for commands
// that run turns.
type turnEnvironment struct {
	store    store.Store
	registry *conversation.Registry
	router   *events.EventRouter
	session  *session.Session
}

func newTurnEnvironment(ctx context.Context, w io.Writer, replyName string) (*turnEnvironment, error) {
	s, err := openStore()
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(ctx, s)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	client, err := newClient(cfg)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	revealer, err := newRevealer()
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	router, err := events.NewEventRouter(
		events.WithLogger(helpers.NewWatermill(log.Logger)),
		events.WithVerbose(viper.GetBool("verbose")),
	)
	if err != nil {
		_ = s.Close()
		return nil, errors.Wrap(err, "could not create event router")
	}

	var printerOptions []events.PrinterOption
	if replyName != "" {
		printerOptions = append(printerOptions, events.WithName(replyName))
	}
	router.AddHandler("console", chatTopic, events.ConsolePrinterFunc(w, printerOptions...))
	if viper.GetBool("print-raw-events") {
		format := events.RawFormat(viper.GetString("raw-events-format"))
		router.AddHandler("raw", chatTopic, router.RawEventPrinterFunc(w, format))
	}

	registry := conversation.NewRegistry(ctx, s)
	sess := session.NewSession(registry, client,
		session.WithRevealer(revealer),
		session.WithEventSinks(router.Sink(chatTopic)),
	)

	return &turnEnvironment{
		store:    s,
		registry: registry,
		router:   router,
		session:  sess,
	}, nil
}

// run starts the router and calls f once it is ready. In-flight turns are
// awaited before the router shuts down.
func (e *turnEnvironment) run(ctx context.Context, f func(ctx context.Context) error) error {
	defer func() {
		e.session.Close()
		if err := e.registry.Flush(context.Background()); err != nil {
			log.Warn().Err(err).Msg("could not save conversations")
		}
		if err := e.store.Close(); err != nil {
			log.Warn().Err(err).Msg("could not close store")
		}
	}()

	eg, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg.Go(func() error {
		defer cancel()
		return e.router.Run(ctx)
	})

	eg.Go(func() error {
		defer cancel()
		select {
		case <-e.router.Running():
		case <-ctx.Done():
			return ctx.Err()
		}
		err := f(ctx)
		e.session.Wait()
		return err
	})

	err := eg.Wait()
	_ = e.router.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
