package scenario

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
)

// Engine advances scenario state from the structured updates the agent
// emits at the end of each reply.
type Engine struct {
	store *Store
}

func NewEngine(store *Store) *Engine {
	return &Engine{store: store}
}

// NewState starts a scenario at its first step with default variables.
func (e *Engine) NewState(scenarioID string) (*State, error) {
	sc, err := e.store.Get(scenarioID)
	if err != nil {
		return nil, err
	}

	vars := make(map[string]string, len(sc.Variables))
	for name, v := range sc.Variables {
		vars[name] = v.DefaultValue
	}
	return &State{
		ScenarioID:  sc.ID,
		CurrentStep: sc.FirstStep,
		Variables:   vars,
	}, nil
}

// Prompt renders the current step's prompt template with the collected
// variables. Unknown placeholders stay verbatim.
func (e *Engine) Prompt(state *State) (string, error) {
	sc, err := e.store.Get(state.ScenarioID)
	if err != nil {
		return "", err
	}
	step, ok := sc.Steps[state.CurrentStep]
	if !ok {
		return "", fmt.Errorf("state points at unknown step %q", state.CurrentStep)
	}

	out := step.PromptTemplate
	for name, value := range state.Variables {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}
	return out, nil
}

// Updates is what the agent reports after a turn: variables it
// extracted from the user and the step it wants to move to.
type Updates struct {
	Variables map[string]string `json:"variables"`
	NextStep  string            `json:"next_step"`
}

// The agent appends its updates as a fenced JSON block which never
// reaches the client.
var updatesRe = regexp.MustCompile("(?s)```json\\s*(\\{.*?\"scenario_updates\".*?\\})\\s*```")

type updatesEnvelope struct {
	ScenarioUpdates Updates `json:"scenario_updates"`
}

// ExtractUpdates pulls the updates block out of the agent reply. It
// returns the cleaned text and the parsed updates, nil when absent or
// malformed.
func ExtractUpdates(text string) (string, *Updates) {
	match := updatesRe.FindStringSubmatch(text)
	if match == nil {
		return text, nil
	}
	cleaned := strings.TrimSpace(updatesRe.ReplaceAllString(text, ""))

	var env updatesEnvelope
	if err := sonic.Unmarshal([]byte(match[1]), &env); err != nil {
		return cleaned, nil
	}
	return cleaned, &env.ScenarioUpdates
}

// Apply merges updates into the state. Variable merges always happen;
// the step only changes when the transition is declared by the current
// step. Completing a final step marks the scenario done.
func (e *Engine) Apply(state *State, updates *Updates) error {
	if updates == nil {
		return nil
	}
	sc, err := e.store.Get(state.ScenarioID)
	if err != nil {
		return err
	}

	for name, value := range updates.Variables {
		if value == "" {
			continue
		}
		if _, declared := sc.Variables[name]; declared {
			state.Variables[name] = value
		}
	}

	if updates.NextStep == "" || updates.NextStep == state.CurrentStep {
		return nil
	}

	current, ok := sc.Steps[state.CurrentStep]
	if !ok {
		return fmt.Errorf("state points at unknown step %q", state.CurrentStep)
	}
	allowed := false
	for _, next := range current.NextSteps {
		if next == updates.NextStep {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("transition %s -> %s not declared", state.CurrentStep, updates.NextStep)
	}

	state.CompletedSteps = append(state.CompletedSteps, state.CurrentStep)
	state.CurrentStep = updates.NextStep
	if sc.Steps[updates.NextStep].IsFinal {
		state.Done = true
	}
	return nil
}
