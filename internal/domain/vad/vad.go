package vad

// Detector scores one PCM frame with a speech probability in [0, 1].
type Detector interface {
	Probability(frame []byte) (float64, error)
	Reset()
}

// Event classifies the outcome of feeding one frame to the gate.
type Event int

const (
	// EventNone means the gate state did not change.
	EventNone Event = iota
	// EventSpeechStart fires when enough consecutive speech frames
	// confirmed a new utterance.
	EventSpeechStart
	// EventSegment fires when trailing silence closed the utterance.
	// Result.Segment carries the padded audio.
	EventSegment
)

// Result reports what one frame did to the gate.
type Result struct {
	Event       Event
	Probability float64
	// Segment is the full utterance, leading pad included. Set only
	// on EventSegment.
	Segment []byte
	// SilenceMS is accumulated trailing silence inside an utterance.
	SilenceMS int
	// IdleMS is accumulated silence while no utterance is active.
	IdleMS int
}
