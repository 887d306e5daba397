package tts

import (
	"strings"
	"testing"
)

func TestSegmenterSplitsOnSentence(t *testing.T) {
	s := NewSegmenter()

	units := s.Feed("Bonjour et bienvenue. Aujourd'hui nous ")
	if len(units) != 1 || units[0] != "Bonjour et bienvenue." {
		t.Fatalf("unexpected units %v", units)
	}

	units = s.Feed("allons travailler votre présentation !")
	if len(units) != 1 || units[0] != "Aujourd'hui nous allons travailler votre présentation !" {
		t.Fatalf("unexpected units %v", units)
	}

	if rest := s.Flush(); rest != "" {
		t.Fatalf("expected empty flush, got %q", rest)
	}
}

func TestSegmenterFlushReturnsTail(t *testing.T) {
	s := NewSegmenter()
	if units := s.Feed("Une phrase sans ponctuation finale"); units != nil {
		t.Fatalf("unfinished sentence must not emit, got %v", units)
	}
	if tail := s.Flush(); tail != "Une phrase sans ponctuation finale" {
		t.Fatalf("flush should return the tail, got %q", tail)
	}
}

func TestSegmenterCapsUnitLength(t *testing.T) {
	long := strings.Repeat("mot ", 120) // 480 chars, no sentence ender
	s := NewSegmenter()
	units := s.Feed(long)
	units = append(units, s.Flush())

	var total int
	for _, u := range units {
		if len([]rune(u)) > maxUnitChars {
			t.Fatalf("unit exceeds cap: %d runes", len([]rune(u)))
		}
		total += len(strings.Fields(u))
	}
	if total != 120 {
		t.Fatalf("words lost during split: %d", total)
	}
}

func TestSegmenterMultipleSentencesInOneDelta(t *testing.T) {
	s := NewSegmenter()
	units := s.Feed("Un. Deux ! Trois ?")
	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %v", units)
	}
	if units[2] != "Trois ?" {
		t.Fatalf("unexpected third unit %q", units[2])
	}
}
