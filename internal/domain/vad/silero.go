package vad

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"eloquence-server-go/internal/platform/logging"
)

// SileroDetector scores frames through an external model service. One
// frame per request; the service keeps its own rolling context keyed by
// nothing, so frames must arrive in order.
type SileroDetector struct {
	url        string
	httpClient *http.Client
}

type scoreResponse struct {
	Probability float64 `json:"probability"`
}

// NewSileroDetector builds a detector against the model endpoint.
func NewSileroDetector(url string) *SileroDetector {
	return &SileroDetector{
		url: url,
		// Scoring sits on the per-frame hot path, a slow model answer
		// is as useless as none.
		httpClient: &http.Client{Timeout: 500 * time.Millisecond},
	}
}

func (d *SileroDetector) Probability(frame []byte) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(frame))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("vad service returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return 0, err
	}
	var parsed scoreResponse
	if err := sonic.Unmarshal(data, &parsed); err != nil {
		return 0, fmt.Errorf("malformed vad response: %w", err)
	}
	return parsed.Probability, nil
}

func (d *SileroDetector) Reset() {}

// FallbackDetector tries a primary detector and degrades to energy
// scoring when it fails. Degradation is sticky for the cooldown period
// so a dead model service is not hammered once per frame. onDegrade
// fires on each transition into degraded scoring.
type FallbackDetector struct {
	primary   Detector
	fallback  Detector
	logger    *logging.Logger
	onDegrade func(error)

	degradedUntil time.Time
}

const degradeCooldown = 30 * time.Second

func NewFallbackDetector(primary Detector, logger *logging.Logger, onDegrade func(error)) *FallbackDetector {
	return &FallbackDetector{
		primary:   primary,
		fallback:  NewEnergyDetector(),
		logger:    logger,
		onDegrade: onDegrade,
	}
}

func (d *FallbackDetector) Probability(frame []byte) (float64, error) {
	if time.Now().Before(d.degradedUntil) {
		return d.fallback.Probability(frame)
	}

	p, err := d.primary.Probability(frame)
	if err == nil {
		return p, nil
	}

	d.degradedUntil = time.Now().Add(degradeCooldown)
	if d.logger != nil {
		d.logger.WarnTag("VAD", "model scoring degraded to energy: %v", err)
	}
	if d.onDegrade != nil {
		d.onDegrade(err)
	}
	return d.fallback.Probability(frame)
}

func (d *FallbackDetector) Reset() {
	d.primary.Reset()
	d.fallback.Reset()
}
