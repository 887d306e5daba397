package tts

import (
	"context"
	"time"

	"eloquence-server-go/internal/platform/config"
	"eloquence-server-go/internal/platform/errors"
	"eloquence-server-go/internal/platform/logging"
	"eloquence-server-go/internal/util"
)

// Frames are capped at 100ms of audio. The first few are sent without
// pacing so playback starts immediately.
const (
	frameMS        = 100
	preBufferCount = 3
)

// FrameSink receives paced audio frames. last is set on the final frame
// of one utterance.
type FrameSink func(seq int, frame []byte, last bool) error

// Pipeline turns text units into paced PCM frames, with a Redis cache
// in front of the synthesis engine.
type Pipeline struct {
	client *Client
	cache  *Cache
	cfg    config.TTSConfig
	logger *logging.Logger
}

func NewPipeline(client *Client, cache *Cache, cfg config.TTSConfig, logger *logging.Logger) *Pipeline {
	return &Pipeline{
		client: client,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
	}
}

// defaultEmotion keys units synthesized outside a resolved turn.
const defaultEmotion = "neutre"

// Fetch returns PCM for one unit, serving from cache when possible.
func (p *Pipeline) Fetch(ctx context.Context, language, emotion, text string) ([]byte, error) {
	if emotion == "" {
		emotion = defaultEmotion
	}
	if p.cfg.UseCache {
		if pcm, ok := p.cache.Get(ctx, language, p.cfg.Voice, emotion, text); ok {
			cacheHits.Inc()
			return pcm, nil
		}
		cacheMisses.Inc()
	}

	start := time.Now()
	pcm, err := p.client.Synthesize(ctx, language, emotion, text)
	if err != nil {
		return nil, err
	}
	synthDuration.Observe(time.Since(start).Seconds())

	if p.cfg.UseCache {
		p.cache.Put(ctx, language, p.cfg.Voice, emotion, text, pcm)
	}
	return pcm, nil
}

// Speak synthesizes one unit and streams it to the sink at playback
// rate. Cancelling ctx stops the stream between frames.
func (p *Pipeline) Speak(ctx context.Context, language, emotion, text string, sink FrameSink) error {
	pcm, err := p.Fetch(ctx, language, emotion, text)
	if err != nil {
		return err
	}
	return p.Stream(ctx, pcm, sink)
}

// Stream paces pre-rendered PCM into the sink.
func (p *Pipeline) Stream(ctx context.Context, pcm []byte, sink FrameSink) error {
	const op = "tts.stream"

	frames := util.ChunkPCM(pcm, p.cfg.SampleRate, frameMS)
	frameDur := time.Duration(frameMS) * time.Millisecond

	var ticker *time.Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for i, frame := range frames {
		if i >= preBufferCount {
			if ticker == nil {
				ticker = time.NewTicker(frameDur)
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				interruptions.Inc()
				return errors.Wrap(errors.KindCancelled, op, "playback interrupted", ctx.Err())
			}
		} else if ctx.Err() != nil {
			interruptions.Inc()
			return errors.Wrap(errors.KindCancelled, op, "playback interrupted", ctx.Err())
		}

		if err := sink(i, frame, i == len(frames)-1); err != nil {
			return errors.Wrap(errors.KindTransport, op, "frame delivery failed", err)
		}
	}
	return nil
}

// Prewarm synthesizes the common phrase list into the cache so canned
// replies play without an engine round trip.
func (p *Pipeline) Prewarm(ctx context.Context, language string, phrases []string) {
	if !p.cfg.UseCache {
		return
	}
	for _, phrase := range phrases {
		if _, ok := p.cache.Get(ctx, language, p.cfg.Voice, defaultEmotion, phrase); ok {
			continue
		}
		pcm, err := p.client.Synthesize(ctx, language, defaultEmotion, phrase)
		if err != nil {
			if p.logger != nil {
				p.logger.WarnTag("TTS", "prewarm skipped %q: %v", phrase, err)
			}
			continue
		}
		p.cache.Put(ctx, language, p.cfg.Voice, defaultEmotion, phrase, pcm)
	}
	if p.logger != nil {
		p.logger.InfoTag("TTS", "prewarmed %d common phrases", len(phrases))
	}
}
