package tts

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"eloquence-server-go/internal/platform/config"
	"eloquence-server-go/internal/platform/logging"
)

// Compressed entries pay off only when they actually shrink. Small
// payloads are stored raw unless gzip saves at least 10 percent.
const (
	gzipRatioLimit   = 0.9
	gzipSizeFloor    = 4 * 1024
	gzipMagic0       = 0x1f
	gzipMagic1       = 0x8b
)

// Cache stores synthesized audio in Redis keyed by language, voice,
// emotion and text. Entries expire after the configured TTL.
type Cache struct {
	client *redis.Client
	cfg    config.TTSConfig
	logger *logging.Logger
}

// NewCache builds a cache on an existing Redis client.
func NewCache(client *redis.Client, cfg config.TTSConfig, logger *logging.Logger) *Cache {
	return &Cache{client: client, cfg: cfg, logger: logger}
}

// Key derives the cache key for one synthesis unit.
func (c *Cache) Key(language, voice, emotion, text string) string {
	return fmt.Sprintf("%s%s:%s:%s:%s", c.cfg.CachePrefix, language, voice, emotion, text)
}

// Get returns the cached PCM for the unit, or (nil, false) on miss.
// Stored bytes are transparently decompressed.
func (c *Cache) Get(ctx context.Context, language, voice, emotion, text string) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, c.Key(language, voice, emotion, text)).Bytes()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.WarnTag("Cache", "get failed: %v", err)
		}
		return nil, false
	}

	pcm, err := maybeDecompress(raw)
	if err != nil {
		if c.logger != nil {
			c.logger.WarnTag("Cache", "corrupt entry dropped: %v", err)
		}
		c.client.Del(ctx, c.Key(language, voice, emotion, text))
		return nil, false
	}
	return pcm, true
}

// Put stores the PCM for the unit, gzip-compressed when worthwhile.
func (c *Cache) Put(ctx context.Context, language, voice, emotion, text string, pcm []byte) {
	if c == nil || c.client == nil || len(pcm) == 0 {
		return
	}

	payload := pcm
	if compressed, ok := maybeCompress(pcm); ok {
		payload = compressed
	}

	if err := c.client.Set(ctx, c.Key(language, voice, emotion, text), payload, c.cfg.CacheExpiration).Err(); err != nil {
		if c.logger != nil {
			c.logger.WarnTag("Cache", "put failed: %v", err)
		}
	}
}

func maybeCompress(pcm []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(pcm); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}

	compressed := buf.Bytes()
	ratio := float64(len(compressed)) / float64(len(pcm))
	if ratio <= gzipRatioLimit || (len(pcm) >= gzipSizeFloor && len(compressed) < len(pcm)) {
		return compressed, true
	}
	return nil, false
}

func maybeDecompress(raw []byte) ([]byte, error) {
	if len(raw) < 2 || raw[0] != gzipMagic0 || raw[1] != gzipMagic1 {
		return raw, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
