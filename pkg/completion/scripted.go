package completion

import (
	"context"
	"sync"

	"github.com/go-go-golems/chatterbox/pkg/helpers"
)

// ScriptedClient replays a fixed list of fragments, optionally followed by an
// error. Every transcript it receives is recorded.
type ScriptedClient struct {
	Fragments []string
	Err       error
	// Gate, when set, is waited on before each fragment is sent.
	Gate <-chan struct{}

	mu          sync.Mutex
	transcripts []string
}

func NewScriptedClient(fragments []string, err error) *ScriptedClient {
	return &ScriptedClient{
		Fragments: fragments,
		Err:       err,
	}
}

func (s *ScriptedClient) Submit(ctx context.Context, transcript string) (<-chan helpers.Result[string], error) {
	s.mu.Lock()
	s.transcripts = append(s.transcripts, transcript)
	s.mu.Unlock()

	c := make(chan helpers.Result[string])
	go func() {
		defer close(c)
		for _, f := range s.Fragments {
			if s.Gate != nil {
				select {
				case <-ctx.Done():
					send(ctx, c, helpers.NewErrorResult[string](ctx.Err()))
					return
				case <-s.Gate:
				}
			}
			if !send(ctx, c, helpers.NewValueResult(f)) {
				return
			}
		}
		if s.Err != nil {
			send(ctx, c, helpers.NewErrorResult[string](s.Err))
		}
	}()
	return c, nil
}

func (s *ScriptedClient) Transcripts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]string, len(s.transcripts))
	copy(ret, s.transcripts)
	return ret
}
