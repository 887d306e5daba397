package feedback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"eloquence-server-go/internal/platform/config"
	"eloquence-server-go/internal/platform/errors"
	"eloquence-server-go/internal/platform/logging"
	"eloquence-server-go/internal/util"
	"eloquence-server-go/internal/util/work"
)

// TurnRecord is the per-turn evaluation material the sink persists.
type TurnRecord struct {
	SessionID  string    `json:"session_id"`
	TurnIndex  int       `json:"turn_index"`
	Transcript string    `json:"transcript"`
	AgentText  string    `json:"agent_text"`
	Emotion    string    `json:"emotion"`
	DurationMS int       `json:"duration_ms"`
	AudioPath  string    `json:"audio_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type job struct {
	record TurnRecord
	pcm    []byte
}

// Sink persists turn artifacts in the background: the user audio as a
// WAV file, the record as JSON on disk, and a copy in a Redis list for
// fast aggregation. Each (session, turn) pair is accepted once.
type Sink struct {
	queue      *work.Queue[job]
	client     *redis.Client
	storage    config.StorageConfig
	sampleRate int
	logger     *logging.Logger

	mu   sync.Mutex
	seen map[string]bool
}

// NewSink starts the sink workers.
func NewSink(client *redis.Client, storage config.StorageConfig, sampleRate int, logger *logging.Logger) *Sink {
	s := &Sink{
		client:     client,
		storage:    storage,
		sampleRate: sampleRate,
		logger:     logger,
		seen:       make(map[string]bool),
	}
	s.queue = work.NewQueue[job](2, 128, s.persist)
	return s
}

// Submit enqueues one turn. Duplicate (session, turn) submissions are
// dropped silently.
func (s *Sink) Submit(record TurnRecord, pcm []byte) error {
	key := fmt.Sprintf("%s:%d", record.SessionID, record.TurnIndex)

	s.mu.Lock()
	if s.seen[key] {
		s.mu.Unlock()
		return nil
	}
	s.seen[key] = true
	s.mu.Unlock()

	record.CreatedAt = time.Now()
	if err := s.queue.SubmitWithRetries(job{record: record, pcm: pcm}, 1); err != nil {
		s.mu.Lock()
		delete(s.seen, key)
		s.mu.Unlock()
		return errors.Wrap(errors.KindOverloaded, "feedback.submit", "feedback queue saturated", err)
	}
	return nil
}

// Forget releases the dedupe entries of a finished session.
func (s *Sink) Forget(sessionID string) {
	prefix := sessionID + ":"
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.seen {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(s.seen, key)
		}
	}
}

// Stop drains pending jobs.
func (s *Sink) Stop() {
	s.queue.Stop()
}

func (s *Sink) persist(j job) error {
	record := j.record

	if len(j.pcm) > 0 {
		audioPath := filepath.Join(s.storage.AudioPath, record.SessionID,
			fmt.Sprintf("turn_%03d.wav", record.TurnIndex))
		if err := util.WriteWAV(audioPath, j.pcm, s.sampleRate); err != nil {
			return fmt.Errorf("write turn audio: %w", err)
		}
		record.AudioPath = audioPath
	}

	data, err := sonic.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	jsonPath := filepath.Join(s.storage.FeedbackPath, record.SessionID,
		fmt.Sprintf("turn_%03d.json", record.TurnIndex))
	if err := os.MkdirAll(filepath.Dir(jsonPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	if s.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.client.RPush(ctx, listKey(record.SessionID), data).Err(); err != nil {
			return fmt.Errorf("push record: %w", err)
		}
	}

	if s.logger != nil {
		s.logger.DebugTag("Feedback", "persisted %s turn %d", record.SessionID, record.TurnIndex)
	}
	return nil
}

func listKey(sessionID string) string {
	return "feedback:" + sessionID
}
