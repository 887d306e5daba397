package protocol

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Frame type names exchanged as JSON text messages. Raw audio travels
// in binary WebSocket messages and never appears here.
const (
	TypeStreamStarted    = "stream_started"
	TypeStartStream      = "start_stream"
	TypeStopStream       = "stop_stream"
	TypeCancel           = "cancel"
	TypeASRPartial       = "asr_partial"
	TypeASRFinal         = "asr_final"
	TypeAgentTextPartial = "agent_text_partial"
	TypeAgentTextFinal   = "agent_text_final"
	TypeTTSChunk         = "tts_chunk"
	TypeTTSStop          = "tts_stop"
	TypeTTSFallback      = "tts_fallback"
	TypeTurnEmotion      = "turn_emotion"
	TypeError            = "error"
	TypeHeartbeat        = "heartbeat"
)

var knownTypes = map[string]bool{
	TypeStreamStarted:    true,
	TypeStartStream:      true,
	TypeStopStream:       true,
	TypeCancel:           true,
	TypeASRPartial:       true,
	TypeASRFinal:         true,
	TypeAgentTextPartial: true,
	TypeAgentTextFinal:   true,
	TypeTTSChunk:         true,
	TypeTTSStop:          true,
	TypeTTSFallback:      true,
	TypeTurnEmotion:      true,
	TypeError:            true,
	TypeHeartbeat:        true,
}

// Frame is the envelope for every control message. Epoch identifies the
// conversation turn the frame belongs to; receivers drop frames whose
// epoch is older than the current one.
type Frame struct {
	Type    string         `json:"type"`
	Epoch   uint64         `json:"epoch"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Encode serializes a frame to its wire form.
func Encode(f *Frame) ([]byte, error) {
	if !knownTypes[f.Type] {
		return nil, fmt.Errorf("unknown frame type %q", f.Type)
	}
	return sonic.Marshal(f)
}

// Decode parses a wire frame and rejects unknown types.
func Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := sonic.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if !knownTypes[f.Type] {
		return nil, fmt.Errorf("unknown frame type %q", f.Type)
	}
	return &f, nil
}

// NewFrame builds a frame with an optional payload.
func NewFrame(frameType string, epoch uint64, payload map[string]any) *Frame {
	return &Frame{Type: frameType, Epoch: epoch, Payload: payload}
}

// Text builds a frame carrying transcript or agent text.
func Text(frameType string, epoch uint64, text string) *Frame {
	return &Frame{Type: frameType, Epoch: epoch, Payload: map[string]any{"text": text}}
}

// TTSChunk announces one outbound audio frame. The PCM itself follows
// as a binary message.
func TTSChunk(epoch uint64, seq int, last bool) *Frame {
	return &Frame{Type: TypeTTSChunk, Epoch: epoch, Payload: map[string]any{
		"seq":  seq,
		"last": last,
	}}
}

// Emotion builds the per-turn emotion announcement.
func Emotion(epoch uint64, label string) *Frame {
	return &Frame{Type: TypeTurnEmotion, Epoch: epoch, Payload: map[string]any{"emotion": label}}
}

// ErrorFrame reports a failure to the client with its kind.
func ErrorFrame(epoch uint64, kind, message string) *Frame {
	return &Frame{Type: TypeError, Epoch: epoch, Payload: map[string]any{
		"kind":    kind,
		"message": message,
	}}
}

// PayloadString extracts a string field from the payload, empty when absent.
func (f *Frame) PayloadString(key string) string {
	if f.Payload == nil {
		return ""
	}
	if s, ok := f.Payload[key].(string); ok {
		return s
	}
	return ""
}
