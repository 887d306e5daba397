package emotion

import "testing"

func TestExtractMarker(t *testing.T) {
	label, cleaned, found := Extract("[EMOTION: encouragement] Très bien, continuez !")
	if !found {
		t.Fatalf("marker should be detected")
	}
	if label != Encouragement {
		t.Fatalf("expected encouragement, got %s", label)
	}
	if cleaned != "Très bien, continuez !" {
		t.Fatalf("marker should be stripped, got %q", cleaned)
	}
}

func TestExtractAccentVariant(t *testing.T) {
	label, _, found := Extract("[ÉMOTION: curiosité] Dites-m'en plus.")
	if !found || label != Curiosity {
		t.Fatalf("accented marker should resolve to curiosite, got %s found=%v", label, found)
	}
}

func TestExtractUnknownLabelFallsBack(t *testing.T) {
	label, _, found := Extract("[EMOTION: rage] Non.")
	if !found {
		t.Fatalf("marker should still count as found")
	}
	if label != Neutral {
		t.Fatalf("unknown label must fall back to neutre, got %s", label)
	}
}

func TestExtractNoMarker(t *testing.T) {
	label, cleaned, found := Extract("Bonjour, comment allez-vous ?")
	if found {
		t.Fatalf("no marker expected")
	}
	if label != Neutral {
		t.Fatalf("default must be neutre, got %s", label)
	}
	if cleaned != "Bonjour, comment allez-vous ?" {
		t.Fatalf("text should be untouched, got %q", cleaned)
	}
}

func TestTaggerResolvesOnce(t *testing.T) {
	tagger := NewTagger()
	out := tagger.Feed("[EMOTION: empathie] Je comprends")
	if out != "Je comprends" {
		t.Fatalf("first delta should be cleaned, got %q", out)
	}
	if tagger.Label() != Empathy {
		t.Fatalf("expected empathie, got %s", tagger.Label())
	}

	// Later markers are treated as literal text.
	out = tagger.Feed(" [EMOTION: reflexion] votre situation.")
	if out != " [EMOTION: reflexion] votre situation." {
		t.Fatalf("later deltas must pass through, got %q", out)
	}
	if tagger.Label() != Empathy {
		t.Fatalf("label must not change after resolution")
	}
}

func TestTaggerDefault(t *testing.T) {
	tagger := NewTagger()
	out := tagger.Feed("Pas de marqueur ici.")
	if out != "Pas de marqueur ici." {
		t.Fatalf("plain text should pass through, got %q", out)
	}
	if tagger.Label() != Neutral {
		t.Fatalf("expected neutre default, got %s", tagger.Label())
	}
}

func TestTaggerSplitMarker(t *testing.T) {
	tagger := NewTagger()
	if out := tagger.Feed("[EMO"); out != "" {
		t.Fatalf("incomplete marker head must be withheld, got %q", out)
	}
	out := tagger.Feed("TION: enthousiasme_modere] Bravo !")
	if out != "Bravo !" {
		t.Fatalf("expected cleaned text after marker completes, got %q", out)
	}
	if tagger.Label() != ModerateEnthusiasm {
		t.Fatalf("expected enthousiasme_modere, got %s", tagger.Label())
	}
}

func TestTaggerFlushReleasesHead(t *testing.T) {
	tagger := NewTagger()
	if out := tagger.Feed("[EMOTION: neu"); out != "" {
		t.Fatalf("head should be withheld, got %q", out)
	}
	if out := tagger.Flush(); out != "[EMOTION: neu" {
		t.Fatalf("flush must release withheld bytes, got %q", out)
	}
}

func TestHeuristic(t *testing.T) {
	if got := Heuristic("Pouvez-vous préciser ?"); got != Curiosity {
		t.Fatalf("question should map to curiosite, got %s", got)
	}
	if got := Heuristic("Bravo, c'est excellent !"); got != Encouragement {
		t.Fatalf("exclamation should map to encouragement, got %s", got)
	}
	if got := Heuristic("Je vois."); got != Neutral {
		t.Fatalf("plain statement should map to neutre, got %s", got)
	}
}

func TestTaggerResolve(t *testing.T) {
	// Streamed marker wins over punctuation.
	tagger := NewTagger()
	tagger.Feed("[EMOTION: empathie] Je comprends.")
	if got := tagger.Resolve("Je comprends ?"); got != Empathy {
		t.Fatalf("streamed marker must win, got %s", got)
	}

	// Trailing marker in the final text is honored.
	tagger = NewTagger()
	tagger.Feed("Très bien. ")
	if got := tagger.Resolve("Très bien. [EMOTION: encouragement]"); got != Encouragement {
		t.Fatalf("trailing marker must resolve, got %s", got)
	}

	// Otherwise the punctuation heuristic decides.
	tagger = NewTagger()
	tagger.Feed("Et ensuite ?")
	if got := tagger.Resolve("Et ensuite ?"); got != Curiosity {
		t.Fatalf("heuristic fallback expected, got %s", got)
	}
}
