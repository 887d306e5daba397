package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"eloquence-server-go/internal/platform/config"
	"eloquence-server-go/internal/platform/errors"
	"eloquence-server-go/internal/platform/logging"
)

func testPipeline(t *testing.T, engine http.HandlerFunc) (*Pipeline, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		engine(w, r)
	}))
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	cfg := config.TTSConfig{
		APIURL:          srv.URL,
		UseCache:        true,
		CachePrefix:     "tts_cache:",
		CacheExpiration: time.Hour,
		Voice:           "fr_coach_1",
		SampleRate:      16000,
	}
	cache := NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), cfg, logging.Discard())
	return NewPipeline(NewClient(cfg), cache, cfg, logging.Discard()), &calls
}

func pcmEngine(size int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, size))
	}
}

func TestFetchCachesSynthesis(t *testing.T) {
	p, calls := testPipeline(t, pcmEngine(3200))
	ctx := context.Background()

	first, err := p.Fetch(ctx, "fr", "neutre", "bonjour")
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := p.Fetch(ctx, "fr", "neutre", "bonjour")
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if len(first) != 3200 || len(second) != 3200 {
		t.Fatalf("unexpected payload sizes %d/%d", len(first), len(second))
	}
	if calls.Load() != 1 {
		t.Fatalf("second fetch must hit the cache, engine called %d times", calls.Load())
	}
}

func TestSpeakFrameBounds(t *testing.T) {
	// 250ms of 16kHz PCM: frames of 100, 100 and 50ms.
	p, _ := testPipeline(t, pcmEngine(250*32))

	var frames [][]byte
	var sawLast bool
	err := p.Speak(context.Background(), "fr", "neutre", "test", func(seq int, frame []byte, last bool) error {
		frames = append(frames, frame)
		if last {
			if seq != 2 {
				t.Errorf("last flag on frame %d", seq)
			}
			sawLast = true
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	if len(frames[0]) != 100*32 || len(frames[2]) != 50*32 {
		t.Fatalf("unexpected frame sizes %d/%d", len(frames[0]), len(frames[2]))
	}
	if !sawLast {
		t.Fatalf("final frame must carry the last flag")
	}
}

func TestStreamStopsOnCancel(t *testing.T) {
	p, _ := testPipeline(t, pcmEngine(0))

	// 1s of audio, ten frames, paced after a 3-frame pre-buffer.
	pcm := make([]byte, 1000*32)
	ctx, cancel := context.WithCancel(context.Background())

	var delivered atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- p.Stream(ctx, pcm, func(seq int, frame []byte, last bool) error {
			delivered.Add(1)
			return nil
		})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	start := time.Now()
	err := <-done
	if !errors.IsKind(err, errors.KindCancelled) {
		t.Fatalf("expected cancelled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("stream took %v to stop after cancel", elapsed)
	}
	if n := delivered.Load(); n >= 10 {
		t.Fatalf("stream should have stopped early, delivered %d frames", n)
	}
}

func TestPrewarmPopulatesCache(t *testing.T) {
	p, calls := testPipeline(t, pcmEngine(1600))
	ctx := context.Background()

	phrases := []string{"Je vous écoute.", "Très bien."}
	p.Prewarm(ctx, "fr", phrases)
	if calls.Load() != 2 {
		t.Fatalf("expected one synthesis per phrase, got %d", calls.Load())
	}

	// A second prewarm finds everything cached.
	p.Prewarm(ctx, "fr", phrases)
	if calls.Load() != 2 {
		t.Fatalf("prewarm must not re-synthesize cached phrases")
	}
}
