package llm

import (
	"strings"
	"testing"

	"eloquence-server-go/internal/domain/emotion"
)

func TestBuildMessagesOrder(t *testing.T) {
	messages := BuildMessages(PromptInput{
		Persona:        "Tu es un coach vocal bienveillant.",
		ScenarioPrompt: "Étape: présentation personnelle.",
		UserText:       "Je m'appelle Marie.",
		History: []Message{
			{Role: RoleUser, Content: "Bonjour"},
			{Role: RoleAssistant, Content: "Bonjour Marie"},
		},
	})

	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	if messages[0].Role != RoleSystem {
		t.Fatalf("first message must be the system prompt")
	}
	sys := messages[0].Content
	if !strings.Contains(sys, "coach vocal") || !strings.Contains(sys, "présentation personnelle") {
		t.Fatalf("system prompt missing persona or scenario: %q", sys)
	}
	if !strings.Contains(sys, "[EMOTION: label]") {
		t.Fatalf("system prompt must carry the emotion protocol")
	}
	if messages[3].Role != RoleUser || messages[3].Content != "Je m'appelle Marie." {
		t.Fatalf("user turn must come last, got %+v", messages[3])
	}
}

func TestBuildMessagesScenarioUpdateProtocol(t *testing.T) {
	withScenario := BuildMessages(PromptInput{
		ScenarioPrompt: "Étape: questions du recruteur.",
		UserText:       "D'accord.",
	})
	sys := withScenario[0].Content
	if !strings.Contains(sys, "scenario_updates") || !strings.Contains(sys, "next_step") {
		t.Fatalf("active scenario must teach the updates block, got %q", sys)
	}

	withoutScenario := BuildMessages(PromptInput{UserText: "Bonjour."})
	if strings.Contains(withoutScenario[0].Content, "scenario_updates") {
		t.Fatalf("no scenario, no updates instruction")
	}
}

func TestFallbackAlwaysReturns(t *testing.T) {
	if Fallback("emotion_inconnue") == "" {
		t.Fatalf("fallback must never be empty")
	}
	if Fallback("encouragement") == "" {
		t.Fatalf("fallback must never be empty")
	}
	if len(CommonPhrases()) < 4 {
		t.Fatalf("expected the full canned utterance list")
	}
}

func TestFallbackCoversEveryLabel(t *testing.T) {
	labels := []string{
		emotion.Neutral,
		emotion.Encouragement,
		emotion.Empathy,
		emotion.ModerateEnthusiasm,
		emotion.Curiosity,
		emotion.Reflection,
	}
	for _, label := range labels {
		if len(fallbackUtterances[label]) == 0 {
			t.Fatalf("no canned utterance for %s", label)
		}
	}
}
