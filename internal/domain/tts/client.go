package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"

	"eloquence-server-go/internal/platform/config"
	"eloquence-server-go/internal/platform/errors"
)

// Client calls the synthesis engine over HTTP. The engine answers with
// raw 16-bit mono PCM at the configured sample rate.
type Client struct {
	cfg        config.TTSConfig
	httpClient *http.Client
}

type synthesisRequest struct {
	Text     string `json:"text"`
	Voice    string `json:"voice"`
	Language string `json:"language"`
	Emotion  string `json:"emotion"`
}

func NewClient(cfg config.TTSConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

// Synthesize renders one text unit to PCM. The emotion label steers
// the engine's delivery.
func (c *Client) Synthesize(ctx context.Context, language, emotion, text string) ([]byte, error) {
	const op = "tts.synthesize"

	body, err := sonic.Marshal(synthesisRequest{
		Text:     text,
		Voice:    c.cfg.Voice,
		Language: language,
		Emotion:  emotion,
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, op, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, op, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(errors.KindCancelled, op, "synthesis cancelled", ctx.Err())
		}
		return nil, errors.Wrap(errors.KindUpstream, op, "synthesis engine unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.New(errors.KindUpstream, op,
			fmt.Sprintf("synthesis engine returned %d: %s", resp.StatusCode, data))
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.KindUpstream, op, "read synthesis response", err)
	}
	return pcm, nil
}
