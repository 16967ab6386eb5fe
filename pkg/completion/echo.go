package completion

import (
	"context"
	"strings"
	"time"

	"github.com/go-go-golems/chatterbox/pkg/helpers"
	"github.com/pkg/errors"
)

const userLinePrefix = "You: "

// EchoClient answers with the last user line of the transcript, cut into
// fixed size fragments. Useful offline.
type EchoClient struct {
	FragmentSize  int
	FragmentDelay time.Duration
}

func NewEchoClient() *EchoClient {
	return &EchoClient{
		FragmentSize: 4,
	}
}

func (e *EchoClient) Submit(ctx context.Context, transcript string) (<-chan helpers.Result[string], error) {
	input, ok := lastUserLine(transcript)
	if !ok {
		return nil, NewTransportError(errors.New("no user line in transcript"), "nothing to echo")
	}

	size := e.FragmentSize
	if size <= 0 {
		size = 1
	}

	c := make(chan helpers.Result[string])
	go func() {
		defer close(c)
		runes := []rune(input)
		for start := 0; start < len(runes); start += size {
			end := start + size
			if end > len(runes) {
				end = len(runes)
			}
			if e.FragmentDelay > 0 {
				select {
				case <-ctx.Done():
					send(ctx, c, helpers.NewErrorResult[string](ctx.Err()))
					return
				case <-time.After(e.FragmentDelay):
				}
			}
			if !send(ctx, c, helpers.NewValueResult(string(runes[start:end]))) {
				return
			}
		}
	}()

	return c, nil
}

func lastUserLine(transcript string) (string, bool) {
	lines := strings.Split(transcript, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(lines[i], userLinePrefix) {
			return strings.TrimPrefix(lines[i], userLinePrefix), true
		}
	}
	return "", false
}
