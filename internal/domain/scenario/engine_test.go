package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"eloquence-server-go/internal/platform/errors"
	"eloquence-server-go/internal/platform/logging"
)

const interviewJSON = `{
  "id": "entretien",
  "name": "Entretien d'embauche",
  "language": "fr",
  "first_step": "accueil",
  "variables": {
    "poste": {"description": "poste visé", "default_value": "non précisé"},
    "entreprise": {"description": "entreprise", "default_value": ""}
  },
  "steps": {
    "accueil": {
      "name": "Accueil",
      "prompt_template": "Accueille le candidat pour le poste de {poste}.",
      "expected_variables": ["poste"],
      "next_steps": ["questions"]
    },
    "questions": {
      "name": "Questions",
      "prompt_template": "Pose des questions sur le poste de {poste} chez {entreprise}.",
      "next_steps": ["conclusion"]
    },
    "conclusion": {
      "name": "Conclusion",
      "prompt_template": "Conclus l'entretien.",
      "is_final": true
    }
  }
}`

func testStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "entretien.json"), []byte(interviewJSON), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	store, err := LoadStore(dir, logging.Discard())
	if err != nil {
		t.Fatalf("LoadStore failed: %v", err)
	}
	return store
}

func TestNewStateStartsAtFirstStep(t *testing.T) {
	engine := NewEngine(testStore(t))
	state, err := engine.NewState("entretien")
	if err != nil {
		t.Fatalf("NewState failed: %v", err)
	}
	if state.CurrentStep != "accueil" {
		t.Fatalf("expected first step accueil, got %s", state.CurrentStep)
	}
	if state.Variables["poste"] != "non précisé" {
		t.Fatalf("default variable missing: %v", state.Variables)
	}
}

func TestUnknownScenario(t *testing.T) {
	engine := NewEngine(testStore(t))
	if _, err := engine.NewState("inexistant"); !errors.IsKind(err, errors.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestPromptRendersVariables(t *testing.T) {
	engine := NewEngine(testStore(t))
	state, _ := engine.NewState("entretien")
	state.Variables["poste"] = "ingénieure logiciel"

	prompt, err := engine.Prompt(state)
	if err != nil {
		t.Fatalf("Prompt failed: %v", err)
	}
	if prompt != "Accueille le candidat pour le poste de ingénieure logiciel." {
		t.Fatalf("unexpected prompt %q", prompt)
	}
}

func TestApplyAdvancesDeclaredTransition(t *testing.T) {
	engine := NewEngine(testStore(t))
	state, _ := engine.NewState("entretien")

	err := engine.Apply(state, &Updates{
		Variables: map[string]string{"poste": "ingénieure", "inconnu": "x"},
		NextStep:  "questions",
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if state.CurrentStep != "questions" {
		t.Fatalf("expected step questions, got %s", state.CurrentStep)
	}
	if len(state.CompletedSteps) != 1 || state.CompletedSteps[0] != "accueil" {
		t.Fatalf("completed steps not recorded: %v", state.CompletedSteps)
	}
	if state.Variables["poste"] != "ingénieure" {
		t.Fatalf("declared variable not merged")
	}
	if _, ok := state.Variables["inconnu"]; ok {
		t.Fatalf("undeclared variable must be ignored")
	}
}

func TestApplyRejectsUndeclaredTransition(t *testing.T) {
	engine := NewEngine(testStore(t))
	state, _ := engine.NewState("entretien")

	if err := engine.Apply(state, &Updates{NextStep: "conclusion"}); err == nil {
		t.Fatalf("skipping a step must fail")
	}
	if state.CurrentStep != "accueil" {
		t.Fatalf("state must not change on rejected transition")
	}
}

func TestFinalStepMarksDone(t *testing.T) {
	engine := NewEngine(testStore(t))
	state, _ := engine.NewState("entretien")

	if err := engine.Apply(state, &Updates{NextStep: "questions"}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := engine.Apply(state, &Updates{NextStep: "conclusion"}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !state.Done {
		t.Fatalf("reaching the final step must mark the scenario done")
	}
}

func TestExtractUpdates(t *testing.T) {
	text := "Très bien, merci.\n```json\n{\"scenario_updates\": {\"variables\": {\"poste\": \"ingénieure\"}, \"next_step\": \"questions\"}}\n```"
	cleaned, updates := ExtractUpdates(text)
	if cleaned != "Très bien, merci." {
		t.Fatalf("block must be stripped, got %q", cleaned)
	}
	if updates == nil || updates.NextStep != "questions" || updates.Variables["poste"] != "ingénieure" {
		t.Fatalf("unexpected updates %+v", updates)
	}
}

func TestExtractUpdatesAbsent(t *testing.T) {
	cleaned, updates := ExtractUpdates("Pas de bloc ici.")
	if cleaned != "Pas de bloc ici." || updates != nil {
		t.Fatalf("text without block must pass through")
	}
}

func TestStoreList(t *testing.T) {
	store := testStore(t)
	list := store.List()
	if len(list) != 1 || list[0].ID != "entretien" {
		t.Fatalf("unexpected list %v", list)
	}
}
