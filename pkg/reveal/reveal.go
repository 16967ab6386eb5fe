package reveal

import (
	"context"
	"strings"
	"time"

	"github.com/go-go-golems/chatterbox/pkg/helpers"
	"github.com/rs/zerolog/log"
)

// Sink receives reveal units one at a time.
type Sink interface {
	Reveal(unit string)
}

type SinkFunc func(unit string)

func (f SinkFunc) Reveal(unit string) {
	f(unit)
}

// Result describes a finished reveal run.
type Result struct {
	// Text is the concatenation of all raw fragments. It is empty when the
	// source failed.
	Text      string
	Units     int
	Fragments int
	// Abandoned is set once the relevance check failed. Delivery stopped at
	// that point but the source was still drained into Text.
	Abandoned bool
}

type Revealer struct {
	splitter Splitter
	newPacer func() Pacer
}

type Option func(*Revealer)

// WithDelay sets the delay between two reveal units. Zero disables pacing.
func WithDelay(delay time.Duration) Option {
	return func(r *Revealer) {
		r.newPacer = func() Pacer {
			if delay <= 0 {
				return NoPacer{}
			}
			return NewRatePacer(delay)
		}
	}
}

func WithSplitter(s Splitter) Option {
	return func(r *Revealer) {
		r.splitter = s
	}
}

// WithPacerFactory sets the pacer constructor, called once per run.
func WithPacerFactory(f func() Pacer) Option {
	return func(r *Revealer) {
		r.newPacer = f
	}
}

func New(options ...Option) *Revealer {
	r := &Revealer{
		splitter: SplitRunes,
	}
	WithDelay(DefaultDelay)(r)
	for _, o := range options {
		o(r)
	}
	return r
}

// Run consumes src until it closes, fails or ctx is done.
//
// Every fragment is split into units which are handed to sink one at a time,
// each after a pacer wait. relevant is checked right before each delivery;
// once it returns false nothing more is delivered. A nil relevant means
// always relevant.
//
// On a source error Run stops immediately and returns the error with an
// empty Result.Text: partially streamed text is never a confirmed result.
func (r *Revealer) Run(
	ctx context.Context,
	src <-chan helpers.Result[string],
	sink Sink,
	relevant func() bool,
) (Result, error) {
	pacer := r.newPacer()
	var accumulated strings.Builder
	res := Result{}

	for {
		select {
		case <-ctx.Done():
			return discardText(res), ctx.Err()

		case fr, ok := <-src:
			if !ok {
				// a source closing because ctx ended is not a success
				if err := ctx.Err(); err != nil {
					return discardText(res), err
				}
				res.Text = accumulated.String()
				log.Debug().
					Int("fragments", res.Fragments).
					Int("units", res.Units).
					Bool("abandoned", res.Abandoned).
					Int("length", len(res.Text)).
					Msg("reveal finished")
				return res, nil
			}

			fragment, err := fr.Value()
			if err != nil {
				log.Debug().Err(err).Int("fragments", res.Fragments).Msg("reveal source failed")
				return discardText(res), err
			}
			res.Fragments++
			accumulated.WriteString(fragment)

			if res.Abandoned {
				continue
			}

			for _, unit := range r.splitter(fragment) {
				if err := pacer.Wait(ctx); err != nil {
					return discardText(res), err
				}
				if relevant != nil && !relevant() {
					log.Debug().Int("units", res.Units).Msg("reveal no longer relevant, suppressing delivery")
					res.Abandoned = true
					break
				}
				sink.Reveal(unit)
				res.Units++
			}
		}
	}
}

func discardText(res Result) Result {
	res.Text = ""
	return res
}
