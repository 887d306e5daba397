package scenario

// Scenario is a guided coaching exercise made of steps. The agent walks
// the user through them, collecting variables along the way.
type Scenario struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Language    string              `json:"language"`
	FirstStep   string              `json:"first_step"`
	Variables   map[string]Variable `json:"variables"`
	Steps       map[string]Step     `json:"steps"`
}

// Variable declares a piece of information the scenario collects.
type Variable struct {
	Description  string `json:"description"`
	DefaultValue string `json:"default_value"`
}

// Step is one stage of the exercise.
type Step struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	PromptTemplate    string   `json:"prompt_template"`
	ExpectedVariables []string `json:"expected_variables"`
	NextSteps         []string `json:"next_steps"`
	IsFinal           bool     `json:"is_final"`
}

// State is the mutable progress of one session through a scenario.
type State struct {
	ScenarioID     string            `json:"scenario_id"`
	CurrentStep    string            `json:"current_step"`
	CompletedSteps []string          `json:"completed_steps"`
	Variables      map[string]string `json:"variables"`
	Done           bool              `json:"done"`
}
