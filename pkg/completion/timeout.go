package completion

import (
	"context"
	"time"

	"github.com/go-go-golems/chatterbox/pkg/helpers"
	"github.com/pkg/errors"
)

type timeoutClient struct {
	inner   Client
	timeout time.Duration
}

// WithTimeout bounds the whole remote call, including streaming, by d.
// A zero or negative d returns inner unchanged.
func WithTimeout(inner Client, d time.Duration) Client {
	if d <= 0 {
		return inner
	}
	return &timeoutClient{inner: inner, timeout: d}
}

func (t *timeoutClient) Submit(ctx context.Context, transcript string) (<-chan helpers.Result[string], error) {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, t.timeout)

	src, err := t.inner.Submit(ctx, transcript)
	if err != nil {
		cancel()
		return nil, err
	}

	ret := make(chan helpers.Result[string])
	go func() {
		defer close(ret)
		defer cancel()

		fail := func(err error) {
			if errors.Is(err, context.DeadlineExceeded) && !IsTransportError(err) {
				err = NewTransportError(err, "request timed out")
			}
			select {
			case ret <- helpers.NewErrorResult[string](err):
			case <-parent.Done():
			}
		}

		for {
			select {
			case <-ctx.Done():
				fail(ctx.Err())
				return
			case r, ok := <-src:
				if !ok {
					if errors.Is(ctx.Err(), context.DeadlineExceeded) {
						fail(ctx.Err())
					}
					return
				}
				if err := r.Error(); err != nil {
					fail(err)
					return
				}
				select {
				case ret <- r:
				case <-ctx.Done():
				}
			}
		}
	}()

	return ret, nil
}
