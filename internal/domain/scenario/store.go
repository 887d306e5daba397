package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bytedance/sonic"

	"eloquence-server-go/internal/platform/errors"
	"eloquence-server-go/internal/platform/logging"
)

// Store holds the scenarios loaded from disk at startup. Custom
// exercises can be registered at runtime.
type Store struct {
	mu        sync.RWMutex
	scenarios map[string]*Scenario
	logger    *logging.Logger
}

// LoadStore reads every *.json file in dir. A scenario's ID defaults to
// its file name without extension.
func LoadStore(dir string, logger *logging.Logger) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}

	store := &Store{
		scenarios: make(map[string]*Scenario),
		logger:    logger,
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read scenario %s: %w", entry.Name(), err)
		}

		var sc Scenario
		if err := sonic.Unmarshal(data, &sc); err != nil {
			return nil, fmt.Errorf("parse scenario %s: %w", entry.Name(), err)
		}
		if sc.ID == "" {
			sc.ID = strings.TrimSuffix(entry.Name(), ".json")
		}
		if err := validateScenario(&sc); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.ID, err)
		}
		store.scenarios[sc.ID] = &sc
	}

	if logger != nil {
		logger.InfoTag("Scenario", "loaded %d scenarios from %s", len(store.scenarios), dir)
	}
	return store, nil
}

func validateScenario(sc *Scenario) error {
	if sc.FirstStep == "" {
		return fmt.Errorf("missing first_step")
	}
	if _, ok := sc.Steps[sc.FirstStep]; !ok {
		return fmt.Errorf("first_step %q not among steps", sc.FirstStep)
	}
	for id, step := range sc.Steps {
		for _, next := range step.NextSteps {
			if _, ok := sc.Steps[next]; !ok {
				return fmt.Errorf("step %q references unknown next step %q", id, next)
			}
		}
	}
	return nil
}

// Get returns a scenario by ID.
func (s *Store) Get(id string) (*Scenario, error) {
	s.mu.RLock()
	sc, ok := s.scenarios[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.KindNotFound, "scenario.get", fmt.Sprintf("unknown scenario %q", id))
	}
	return sc, nil
}

// List returns all scenarios sorted by ID.
func (s *Store) List() []*Scenario {
	s.mu.RLock()
	out := make([]*Scenario, 0, len(s.scenarios))
	for _, sc := range s.scenarios {
		out = append(out, sc)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Add validates and registers a scenario at runtime. Existing IDs are
// not overwritten.
func (s *Store) Add(sc *Scenario) error {
	if sc.ID == "" {
		return errors.New(errors.KindValidation, "scenario.add", "missing scenario id")
	}
	if err := validateScenario(sc); err != nil {
		return errors.Wrap(errors.KindValidation, "scenario.add", "invalid scenario", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.scenarios[sc.ID]; exists {
		return errors.New(errors.KindValidation, "scenario.add", fmt.Sprintf("scenario %q already exists", sc.ID))
	}
	s.scenarios[sc.ID] = sc
	return nil
}
