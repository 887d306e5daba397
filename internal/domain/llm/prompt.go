package llm

import (
	"strings"
)

// emotionInstruction teaches the model the turn emotion protocol. The
// marker is stripped before any text reaches the client.
const emotionInstruction = `Commence chaque réponse par un marqueur d'émotion au format [EMOTION: label].
Labels autorisés: neutre, encouragement, empathie, enthousiasme_modere, curiosite, reflexion.
N'utilise jamais d'autre label. Le marqueur ne doit apparaître qu'une seule fois, en tête de réponse.`

// scenarioUpdateInstruction teaches the model how to report progression
// when a scenario is active. The fenced block is parsed server-side and
// never reaches the client.
const scenarioUpdateInstruction = "Si l'utilisateur a satisfait les critères de l'étape actuelle ou si une transition est logique, " +
	"termine ta réponse par une mise à jour du scénario dans un bloc markdown au format:\n" +
	"```json\n{\"scenario_updates\": {\"next_step\": \"id_de_la_prochaine_etape\", \"variables\": {\"nom_variable\": \"nouvelle_valeur\"}}}\n```\n" +
	"Tu peux mettre à jour l'étape (\"next_step\") et/ou les variables (\"variables\").\n" +
	"Ne propose un changement d'étape que si l'utilisateur a clairement progressé ou terminé l'objectif de l'étape actuelle."

// PromptInput gathers everything the system prompt is built from.
type PromptInput struct {
	Persona        string
	ScenarioPrompt string
	UserText       string
	History        []Message
}

// BuildMessages assembles the full message list for one coaching turn:
// system prompt first, then the windowed history, then the user turn.
func BuildMessages(in PromptInput) []Message {
	var sys strings.Builder
	if in.Persona != "" {
		sys.WriteString(in.Persona)
		sys.WriteString("\n\n")
	}
	if in.ScenarioPrompt != "" {
		sys.WriteString(in.ScenarioPrompt)
		sys.WriteString("\n\n")
		sys.WriteString(scenarioUpdateInstruction)
		sys.WriteString("\n\n")
	}
	sys.WriteString(emotionInstruction)

	messages := make([]Message, 0, len(in.History)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: sys.String()})
	messages = append(messages, in.History...)
	messages = append(messages, Message{Role: RoleUser, Content: in.UserText})
	return messages
}
