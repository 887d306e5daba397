package asr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"eloquence-server-go/internal/platform/config"
	"eloquence-server-go/internal/platform/errors"
	"eloquence-server-go/internal/platform/logging"
	"eloquence-server-go/internal/util"
)

const (
	// Segments shorter than this are noise, not speech.
	minSegmentMS    = 200
	minSegmentBytes = 400

	retryBackoff = 250 * time.Millisecond
)

// Client transcribes PCM segments through the speech recognition service.
type Client struct {
	cfg        config.ASRConfig
	sampleRate int
	httpClient *http.Client
	logger     *logging.Logger
}

type transcriptResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// NewClient builds an ASR client.
func NewClient(cfg config.ASRConfig, sampleRate int, logger *logging.Logger) *Client {
	return &Client{
		cfg:        cfg,
		sampleRate: sampleRate,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Transcribe sends one utterance and returns its transcript. Undersized
// segments fail fast with KindSegmentTooSmall. A single upstream
// failure is retried once after a short backoff; cancellation is never
// retried.
func (c *Client) Transcribe(ctx context.Context, pcm []byte, language string) (string, error) {
	const op = "asr.transcribe"

	if language == "" {
		language = "fr"
	}
	if len(pcm) < minSegmentBytes || util.PCMDurationMS(pcm, c.sampleRate) < minSegmentMS {
		return "", errors.New(errors.KindSegmentTooSmall, op,
			fmt.Sprintf("segment too small: %d bytes, %dms", len(pcm), util.PCMDurationMS(pcm, c.sampleRate)))
	}

	text, err := c.post(ctx, pcm, language)
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", errors.Wrap(errors.KindCancelled, op, "transcription cancelled", ctx.Err())
	}

	if c.logger != nil {
		c.logger.WarnTag("ASR", "request failed, retrying once: %v", err)
	}
	select {
	case <-time.After(retryBackoff):
	case <-ctx.Done():
		return "", errors.Wrap(errors.KindCancelled, op, "transcription cancelled", ctx.Err())
	}

	text, err = c.post(ctx, pcm, language)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.Wrap(errors.KindCancelled, op, "transcription cancelled", ctx.Err())
		}
		return "", errors.Wrap(errors.KindUpstream, op, "speech recognition unavailable", err)
	}
	return text, nil
}

func (c *Client) post(ctx context.Context, pcm []byte, language string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "segment.wav")
	if err != nil {
		return "", err
	}
	if err := util.EncodeWAV(part, pcm, c.sampleRate); err != nil {
		return "", err
	}
	if err := writer.WriteField("language", language); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("asr service returned %d: %s", resp.StatusCode, data)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var parsed transcriptResponse
	if err := sonic.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("malformed asr response: %w", err)
	}
	return parsed.Text, nil
}
