package completion

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-go-golems/chatterbox/pkg/helpers"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

const DefaultModel = go_openai.GPT3Dot5Turbo

// OpenAIClient talks to any OpenAI compatible chat completion endpoint and
// sends the transcript as a single user message.
type OpenAIClient struct {
	client *go_openai.Client
	model  string
}

type OpenAIOption func(*openAIOptions)

type openAIOptions struct {
	model      string
	httpClient *http.Client
}

func WithModel(model string) OpenAIOption {
	return func(o *openAIOptions) {
		if model != "" {
			o.model = model
		}
	}
}

func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(o *openAIOptions) {
		o.httpClient = c
	}
}

func NewOpenAIClient(baseURL string, apiKey string, options ...OpenAIOption) (*OpenAIClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, NewTransportError(nil, "no API base URL configured")
	}

	opts := &openAIOptions{model: DefaultModel}
	for _, o := range options {
		o(opts)
	}

	config := go_openai.DefaultConfig(apiKey)
	config.BaseURL = strings.TrimRight(baseURL, "/")
	if opts.httpClient != nil {
		config.HTTPClient = opts.httpClient
	}

	return &OpenAIClient{
		client: go_openai.NewClientWithConfig(config),
		model:  opts.model,
	}, nil
}

func (c *OpenAIClient) Model() string {
	return c.model
}

func (c *OpenAIClient) Submit(ctx context.Context, transcript string) (<-chan helpers.Result[string], error) {
	req := go_openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []go_openai.ChatCompletionMessage{
			{
				Role:    go_openai.ChatMessageRoleUser,
				Content: transcript,
			},
		},
		Stream: true,
	}

	log.Debug().
		Str("model", c.model).
		Int("transcript_length", len(transcript)).
		Msg("starting chat completion stream")

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, wrapOpenAIError(err)
	}

	ret := make(chan helpers.Result[string])
	go func() {
		defer close(ret)
		defer stream.Close()

		fragments := 0
		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				log.Debug().Int("fragments", fragments).Msg("chat completion stream done")
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					err = ctx.Err()
				}
				log.Debug().Err(err).Int("fragments", fragments).Msg("chat completion stream failed")
				send(ctx, ret, helpers.NewErrorResult[string](wrapOpenAIError(err)))
				return
			}

			if len(response.Choices) == 0 {
				continue
			}
			delta := response.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			fragments++
			if !send(ctx, ret, helpers.NewValueResult(delta)) {
				return
			}
		}
	}()

	return ret, nil
}

func wrapOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	if IsTransportError(err) {
		return err
	}

	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) {
		return NewTransportError(err, apiErr.Message)
	}
	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) && reqErr.Err != nil {
		return NewTransportError(err, reqErr.Err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTransportError(err, "request timed out")
	}
	if errors.Is(err, context.Canceled) {
		return NewTransportError(err, "request canceled")
	}
	return NewTransportError(err, "")
}
