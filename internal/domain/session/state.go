package session

import "fmt"

// TurnState tracks where a session is inside one conversation turn.
type TurnState string

const (
	// StateListening accepts inbound audio and runs the speech gate.
	StateListening TurnState = "listening"
	// StateProcessingASR transcribes the closed utterance.
	StateProcessingASR TurnState = "processing_asr"
	// StateProcessingLLM streams the agent reply.
	StateProcessingLLM TurnState = "processing_llm"
	// StateSpeaking plays synthesized audio to the client.
	StateSpeaking TurnState = "speaking_tts"
	// StateClosed is terminal.
	StateClosed TurnState = "closed"
)

// Barge-in returns any active state to listening; otherwise only the
// forward path and closure are allowed.
var transitions = map[TurnState][]TurnState{
	StateListening:     {StateProcessingASR, StateClosed},
	StateProcessingASR: {StateProcessingLLM, StateListening, StateClosed},
	StateProcessingLLM: {StateSpeaking, StateListening, StateClosed},
	StateSpeaking:      {StateListening, StateClosed},
	StateClosed:        {},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to TurnState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and returns the new state.
func Transition(from, to TurnState) (TurnState, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	return to, nil
}
