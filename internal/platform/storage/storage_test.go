package storage

import (
	"path/filepath"
	"testing"

	"eloquence-server-go/internal/platform/errors"
	"eloquence-server-go/internal/platform/logging"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"), logging.Discard())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return store
}

func TestSessionLifecycle(t *testing.T) {
	store := testStore(t)

	if err := store.CreateSession("s1", "coach", "entretien"); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	record, err := store.GetSession("s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if record.AgentID != "coach" || record.EndedAt != nil {
		t.Fatalf("unexpected record %+v", record)
	}

	if err := store.EndSession("s1"); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	record, _ = store.GetSession("s1")
	if record.EndedAt == nil {
		t.Fatalf("session end not stamped")
	}
}

func TestGetSessionNotFound(t *testing.T) {
	store := testStore(t)
	if _, err := store.GetSession("absent"); !errors.IsKind(err, errors.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestSaveTurnBumpsCounter(t *testing.T) {
	store := testStore(t)
	_ = store.CreateSession("s1", "coach", "entretien")

	for i := 1; i <= 3; i++ {
		err := store.SaveTurn(TurnRecord{
			SessionID:  "s1",
			TurnIndex:  i,
			Transcript: "bonjour",
			AgentText:  "bienvenue",
			Emotion:    "neutre",
			DurationMS: 1200,
		})
		if err != nil {
			t.Fatalf("SaveTurn failed: %v", err)
		}
	}

	record, _ := store.GetSession("s1")
	if record.TurnCount != 3 {
		t.Fatalf("expected turn_count 3, got %d", record.TurnCount)
	}

	turns, err := store.ListTurns("s1")
	if err != nil {
		t.Fatalf("ListTurns failed: %v", err)
	}
	if len(turns) != 3 || turns[0].TurnIndex != 1 || turns[2].TurnIndex != 3 {
		t.Fatalf("turns out of order: %+v", turns)
	}
}
