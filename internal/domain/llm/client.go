package llm

import (
	"context"
	stderrors "errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"eloquence-server-go/internal/platform/config"
	"eloquence-server-go/internal/platform/errors"
	"eloquence-server-go/internal/platform/logging"
)

// Message is one entry of the conversation sent to the model.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// Client streams chat completions from an OpenAI-compatible endpoint.
type Client struct {
	api    *openai.Client
	cfg    config.LLMConfig
	logger *logging.Logger
}

// NewClient builds a client against the configured endpoint.
func NewClient(cfg config.LLMConfig, logger *logging.Logger) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIURL != "" {
		apiCfg.BaseURL = cfg.APIURL
	}
	return &Client{
		api:    openai.NewClientWithConfig(apiCfg),
		cfg:    cfg,
		logger: logger,
	}
}

// Stream requests a completion and emits text deltas as they arrive.
// The delta channel closes when the stream ends; the error channel then
// carries at most one terminal error. The whole request is bounded by
// the configured timeout.
func (c *Client) Stream(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	deltas := make(chan string, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(deltas)
		defer close(errCh)

		const op = "llm.stream"

		reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		req := openai.ChatCompletionRequest{
			Model:       c.cfg.ModelName,
			Messages:    toAPIMessages(messages),
			Temperature: float32(c.cfg.Temperature),
			MaxTokens:   c.cfg.MaxTokens,
			Stream:      true,
		}

		stream, err := c.api.CreateChatCompletionStream(reqCtx, req)
		if err != nil {
			errCh <- classify(reqCtx, ctx, op, err)
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if stderrors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errCh <- classify(reqCtx, ctx, op, err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case deltas <- delta:
			case <-reqCtx.Done():
				errCh <- classify(reqCtx, ctx, op, reqCtx.Err())
				return
			}
		}
	}()

	return deltas, errCh
}

func classify(reqCtx, parent context.Context, op string, err error) error {
	switch {
	case parent.Err() != nil:
		return errors.Wrap(errors.KindCancelled, op, "completion cancelled", err)
	case stderrors.Is(reqCtx.Err(), context.DeadlineExceeded):
		return errors.Wrap(errors.KindTimeout, op, "completion timed out", err)
	default:
		return errors.Wrap(errors.KindUpstream, op, "language model unavailable", err)
	}
}

func toAPIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
