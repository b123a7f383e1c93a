package scenario

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	// ErrDuplicateScenario is returned when a scenario id is registered twice.
	ErrDuplicateScenario = errors.New("scenario already registered")

	// ErrInvalidScenario wraps validation failures.
	ErrInvalidScenario = errors.New("invalid scenario")
)

var validate = validator.New()

// Registry is a read-only (after setup) mapping from scenario id to scenario.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	scenarios map[string]*Scenario
}

// NewRegistry creates a registry holding the given scenarios.
func NewRegistry(scenarios ...*Scenario) (*Registry, error) {
	r := &Registry{scenarios: make(map[string]*Scenario)}
	for _, s := range scenarios {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates and adds a scenario. Ids must be unique.
func (r *Registry) Register(s *Scenario) error {
	if err := Validate(s); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.scenarios[s.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateScenario, s.ID)
	}
	r.scenarios[s.ID] = s
	return nil
}

// Lookup returns the scenario with the given id.
func (r *Registry) Lookup(id string) (*Scenario, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.scenarios[id]
	return s, ok
}

// List returns all scenarios sorted by id.
func (r *Registry) List() []*Scenario {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*Scenario, 0, len(r.scenarios))
	for _, s := range r.scenarios {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Validate checks the structural rules of a scenario: a non-empty id, at least
// one step, per-action required fields and unique step ids.
func Validate(s *Scenario) error {
	if s == nil {
		return fmt.Errorf("%w: nil scenario", ErrInvalidScenario)
	}
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidScenario, s.ID, err)
	}

	seen := make(map[string]bool, len(s.Steps))
	for _, step := range s.Steps {
		if seen[step.ID] {
			return fmt.Errorf("%w %q: duplicate step id %q", ErrInvalidScenario, s.ID, step.ID)
		}
		seen[step.ID] = true
	}
	return nil
}

// file is the on-disk layout of a scenario file.
type file struct {
	Scenarios []*Scenario `yaml:"scenarios"`
}

// Parse decodes scenarios from YAML (JSON is accepted as a YAML subset).
func Parse(data []byte) ([]*Scenario, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding scenarios: %w", err)
	}
	for _, s := range f.Scenarios {
		if err := Validate(s); err != nil {
			return nil, err
		}
	}
	return f.Scenarios, nil
}

// LoadFile reads and parses a scenario file.
func LoadFile(path string) ([]*Scenario, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	scenarios, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenarios, nil
}
