package feedback

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"eloquence-server-go/internal/platform/errors"
)

// Report aggregates a session's turns for the feedback endpoint.
type Report struct {
	SessionID       string         `json:"session_id"`
	TurnCount       int            `json:"turn_count"`
	TotalSpeechMS   int            `json:"total_speech_ms"`
	EmotionCounts   map[string]int `json:"emotion_counts"`
	Turns           []TurnRecord   `json:"turns"`
}

// BuildReport reads the session's turn list from Redis and aggregates it.
func BuildReport(ctx context.Context, client *redis.Client, sessionID string) (*Report, error) {
	const op = "feedback.report"

	entries, err := client.LRange(ctx, listKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, op, "read feedback list", err)
	}
	if len(entries) == 0 {
		return nil, errors.New(errors.KindNotFound, op, "no feedback for session "+sessionID)
	}

	report := &Report{
		SessionID:     sessionID,
		EmotionCounts: make(map[string]int),
	}
	for _, entry := range entries {
		var record TurnRecord
		if err := sonic.Unmarshal([]byte(entry), &record); err != nil {
			continue
		}
		report.Turns = append(report.Turns, record)
		report.TotalSpeechMS += record.DurationMS
		if record.Emotion != "" {
			report.EmotionCounts[record.Emotion]++
		}
	}
	report.TurnCount = len(report.Turns)
	return report, nil
}
