package dialogue

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"eloquence-server-go/internal/domain/llm"
)

// History is windowed both by turn count and by token budget so prompts
// stay inside the model context.
const (
	maxTurns  = 8
	maxTokens = 4000
)

// Turn is one completed user/agent exchange.
type Turn struct {
	UserText  string
	AgentText string
	Emotion   string
}

// Manager keeps the conversation history for one session and produces
// the prompt window.
type Manager struct {
	mu    sync.Mutex
	turns []Turn

	encoder *tiktoken.Tiktoken
}

// NewManager builds an empty history. Token counting degrades to a
// bytes/4 estimate when the encoder cannot be loaded.
func NewManager() *Manager {
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		encoder = nil
	}
	return &Manager{encoder: encoder}
}

// Append records a completed turn.
func (m *Manager) Append(turn Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
}

// Len returns the number of recorded turns.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

// Turns returns a copy of the full history, oldest first.
func (m *Manager) Turns() []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Window returns the most recent turns as prompt messages, newest-last,
// bounded by maxTurns and maxTokens. The newest turn is always
// included even if it alone exceeds the budget.
func (m *Manager) Window() []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := len(m.turns) - maxTurns
	if start < 0 {
		start = 0
	}
	window := m.turns[start:]

	budget := maxTokens
	first := len(window)
	for i := len(window) - 1; i >= 0; i-- {
		cost := m.countTokens(window[i].UserText) + m.countTokens(window[i].AgentText)
		if budget-cost < 0 && first < len(window) {
			break
		}
		budget -= cost
		first = i
	}

	messages := make([]llm.Message, 0, (len(window)-first)*2)
	for _, turn := range window[first:] {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: turn.UserText},
			llm.Message{Role: llm.RoleAssistant, Content: turn.AgentText},
		)
	}
	return messages
}

func (m *Manager) countTokens(text string) int {
	if m.encoder != nil {
		return len(m.encoder.Encode(text, nil, nil))
	}
	return len(text) / 4
}
