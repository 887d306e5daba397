package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"eloquence-server-go/internal/platform/config"
	"eloquence-server-go/internal/platform/errors"
	"eloquence-server-go/internal/platform/logging"
)

func sseServer(t *testing.T, chunks []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", chunk)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
}

func testClient(url string, timeout time.Duration) *Client {
	return NewClient(config.LLMConfig{
		APIURL:    url + "/v1",
		ModelName: "test-model",
		MaxTokens: 128,
		Timeout:   timeout,
	}, logging.Discard())
}

func collect(t *testing.T, deltas <-chan string, errCh <-chan error) (string, error) {
	t.Helper()
	var sb strings.Builder
	for delta := range deltas {
		sb.WriteString(delta)
	}
	return sb.String(), <-errCh
}

func TestStreamDeltas(t *testing.T) {
	srv := sseServer(t, []string{"[EMOTION: neutre] ", "Bonjour, ", "commençons."})
	defer srv.Close()

	client := testClient(srv.URL, 5*time.Second)
	deltas, errCh := client.Stream(context.Background(), BuildMessages(PromptInput{UserText: "Bonjour"}))

	text, err := collect(t, deltas, errCh)
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if text != "[EMOTION: neutre] Bonjour, commençons." {
		t.Fatalf("unexpected assembled text %q", text)
	}
}

func TestStreamUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL, 5*time.Second)
	deltas, errCh := client.Stream(context.Background(), BuildMessages(PromptInput{UserText: "x"}))

	if _, err := collect(t, deltas, errCh); !errors.IsKind(err, errors.KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestStreamTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	client := testClient(srv.URL, 50*time.Millisecond)
	deltas, errCh := client.Stream(context.Background(), BuildMessages(PromptInput{UserText: "x"}))

	if _, err := collect(t, deltas, errCh); !errors.IsKind(err, errors.KindTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestStreamCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := testClient(srv.URL, 5*time.Second)
	deltas, errCh := client.Stream(ctx, BuildMessages(PromptInput{UserText: "x"}))

	time.Sleep(20 * time.Millisecond)
	cancel()

	if _, err := collect(t, deltas, errCh); !errors.IsKind(err, errors.KindCancelled) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
}
