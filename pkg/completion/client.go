// Package completion holds the remote call collaborator: something that takes
// the full conversation transcript and yields the AI reply as an ordered
// sequence of text fragments.
package completion

import (
	"context"

	"github.com/go-go-golems/chatterbox/pkg/helpers"
)

// Client submits a transcript and streams back the reply.
//
// The returned channel yields fragments in order. Abnormal termination is
// reported as a final error Result, after which the channel is closed.
// Implementations must stop sending once ctx is done.
type Client interface {
	Submit(ctx context.Context, transcript string) (<-chan helpers.Result[string], error)
}

type ClientFunc func(ctx context.Context, transcript string) (<-chan helpers.Result[string], error)

func (f ClientFunc) Submit(ctx context.Context, transcript string) (<-chan helpers.Result[string], error) {
	return f(ctx, transcript)
}

// send delivers r unless ctx is done first.
func send(ctx context.Context, c chan<- helpers.Result[string], r helpers.Result[string]) bool {
	select {
	case <-ctx.Done():
		return false
	case c <- r:
		return true
	}
}
