package asr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"eloquence-server-go/internal/platform/config"
	"eloquence-server-go/internal/platform/errors"
	"eloquence-server-go/internal/platform/logging"
)

func newTestClient(url string) *Client {
	return NewClient(config.ASRConfig{
		APIURL:  url,
		Timeout: 5 * time.Second,
	}, 16000, logging.Discard())
}

// 500ms of audio at 16kHz mono PCM16.
func validSegment() []byte {
	return make([]byte, 16000)
}

func TestTranscribeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("expected multipart request: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("expected wav file part: %v", err)
		}
		w.Write([]byte(`{"text":"bonjour à tous","language":"fr"}`))
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).Transcribe(context.Background(), validSegment(), "fr")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "bonjour à tous" {
		t.Fatalf("unexpected transcript %q", text)
	}
}

func TestTranscribeRejectsTinySegment(t *testing.T) {
	client := newTestClient("http://unreachable.invalid")

	_, err := client.Transcribe(context.Background(), make([]byte, 300), "fr")
	if !errors.IsKind(err, errors.KindSegmentTooSmall) {
		t.Fatalf("expected segment_too_small, got %v", err)
	}

	// Enough bytes but too short in duration.
	_, err = client.Transcribe(context.Background(), make([]byte, 1000), "fr")
	if !errors.IsKind(err, errors.KindSegmentTooSmall) {
		t.Fatalf("expected segment_too_small for 31ms segment, got %v", err)
	}
}

func TestTranscribeRetriesOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"text":"deuxième essai"}`))
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).Transcribe(context.Background(), validSegment(), "fr")
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if text != "deuxième essai" {
		t.Fatalf("unexpected transcript %q", text)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", calls.Load())
	}
}

func TestTranscribeUpstreamAfterRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Transcribe(context.Background(), validSegment(), "fr")
	if !errors.IsKind(err, errors.KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", calls.Load())
	}
}

func TestTranscribeCancelledNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"text":"trop tard"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := newTestClient(srv.URL).Transcribe(ctx, validSegment(), "fr")
	if !errors.IsKind(err, errors.KindCancelled) {
		t.Fatalf("expected cancelled, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("cancellation must not retry, got %d attempts", calls.Load())
	}
}
