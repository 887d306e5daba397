package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bytedance/sonic"

	"eloquence-server-go/internal/platform/errors"
	"eloquence-server-go/internal/platform/logging"
)

// Profile describes one coaching persona: how the agent speaks and
// which voice renders it.
type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Persona  string `json:"persona"`
	Language string `json:"language"`
	Voice    string `json:"voice"`
}

// Store holds the profiles loaded from disk at startup.
type Store struct {
	profiles map[string]*Profile
	fallback *Profile
}

// LoadStore reads every *.json profile in dir. The first profile in
// lexical order becomes the default.
func LoadStore(dir string, logger *logging.Logger) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read agent dir: %w", err)
	}

	store := &Store{profiles: make(map[string]*Profile)}
	var ids []string

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read profile %s: %w", entry.Name(), err)
		}
		var p Profile
		if err := sonic.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse profile %s: %w", entry.Name(), err)
		}
		if p.ID == "" {
			p.ID = strings.TrimSuffix(entry.Name(), ".json")
		}
		if p.Language == "" {
			p.Language = "fr"
		}
		store.profiles[p.ID] = &p
		ids = append(ids, p.ID)
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("no agent profiles in %s", dir)
	}
	sort.Strings(ids)
	store.fallback = store.profiles[ids[0]]

	if logger != nil {
		logger.InfoTag("Session", "loaded %d agent profiles, default %s", len(ids), store.fallback.ID)
	}
	return store, nil
}

// Get returns a profile by ID.
func (s *Store) Get(id string) (*Profile, error) {
	p, ok := s.profiles[id]
	if !ok {
		return nil, errors.New(errors.KindNotFound, "agent.get", fmt.Sprintf("unknown agent %q", id))
	}
	return p, nil
}

// Default returns the fallback profile.
func (s *Store) Default() *Profile {
	return s.fallback
}
