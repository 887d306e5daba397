package llm

import (
	"context"
	"fmt"
	"strings"
)

// ExerciseInput parameterizes a generated coaching exercise.
type ExerciseInput struct {
	Type       string `json:"type"`
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"`
	Sentences  int    `json:"sentences"`
}

func (in *ExerciseInput) normalize() {
	if in.Type == "" {
		in.Type = "articulation"
	}
	if in.Difficulty == "" {
		in.Difficulty = "moyen"
	}
	if in.Sentences <= 0 {
		in.Sentences = 5
	}
	if in.Sentences > 20 {
		in.Sentences = 20
	}
}

// ExerciseMessages builds the prompt for a standalone exercise text. The
// reply is plain text meant to be read aloud, no emotion marker. Missing
// fields of in are filled with their defaults.
func ExerciseMessages(in *ExerciseInput) []Message {
	in.normalize()

	var sys strings.Builder
	sys.WriteString("Tu es un coach vocal. Tu rédiges des exercices d'expression orale en français. ")
	sys.WriteString("Réponds uniquement avec le texte de l'exercice, sans titre ni commentaire.")

	user := fmt.Sprintf("Rédige un exercice de type %q, difficulté %s, en %d phrases environ.",
		in.Type, in.Difficulty, in.Sentences)
	if in.Topic != "" {
		user += fmt.Sprintf(" Le thème est : %s.", in.Topic)
	}

	return []Message{
		{Role: RoleSystem, Content: sys.String()},
		{Role: RoleUser, Content: user},
	}
}

// Complete runs one non-streamed completion by draining the stream.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	deltas, errCh := c.Stream(ctx, messages)

	var b strings.Builder
	for delta := range deltas {
		b.WriteString(delta)
	}
	if err := <-errCh; err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}
