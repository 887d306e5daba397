package llm

import (
	"math/rand"

	"eloquence-server-go/internal/domain/emotion"
)

// Canned coach replies used when the model is unreachable or times out.
// They are also pre-synthesized into the speech cache at startup.
var fallbackUtterances = map[string][]string{
	emotion.Neutral: {
		"Je vous écoute, continuez.",
		"D'accord, poursuivez votre idée.",
	},
	emotion.Encouragement: {
		"Très bien, vous êtes sur la bonne voie.",
		"Continuez, c'est exactement ça.",
	},
	emotion.Empathy: {
		"Je comprends, prenez votre temps.",
	},
	emotion.ModerateEnthusiasm: {
		"C'est une excellente piste, développez-la !",
	},
	emotion.Curiosity: {
		"Pouvez-vous m'en dire un peu plus ?",
	},
	emotion.Reflection: {
		"Prenons un instant pour y réfléchir ensemble.",
	},
}

// Fallback returns a canned utterance matching the emotion, defaulting
// to a neutral one.
func Fallback(label string) string {
	options := fallbackUtterances[label]
	if len(options) == 0 {
		options = fallbackUtterances[emotion.Neutral]
	}
	return options[rand.Intn(len(options))]
}

// CommonPhrases lists every canned utterance, used to pre-warm the
// speech cache.
func CommonPhrases() []string {
	var out []string
	for _, options := range fallbackUtterances {
		out = append(out, options...)
	}
	return out
}
