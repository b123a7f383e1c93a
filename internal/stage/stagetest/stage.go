// Package stagetest provides an in-memory stage.Stage for tests.
package stagetest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/v0xg/demotour/internal/stage"
)

// Kind describes what an element supports.
type Kind int

const (
	// KindBlock elements can be clicked but not typed into (buttons, links, divs).
	KindBlock Kind = iota
	// KindTextInput elements can be clicked and typed into.
	KindTextInput
	// KindInert elements support neither (e.g. SVG shapes).
	KindInert
)

type element struct {
	kind        Kind
	x, y        int
	activations int
	values      []string
}

// Handle is the fake element handle.
type Handle struct {
	selector string
}

// Selector implements stage.Element.
func (h *Handle) Selector() string { return h.selector }

// Stage is an in-memory stage recording every operation performed on it.
// It is safe for concurrent use.
type Stage struct {
	mu          sync.Mutex
	elements    map[string]*element
	marked      map[string]bool
	unmarked    map[string]int
	navigations []string
	focused     string
	calls       []string

	// OnNavigate, when set, runs after a navigation is recorded; use it to swap
	// the element set the way a real route change would.
	OnNavigate func(s *Stage, route string)

	// NavigateErr, when set, is returned by Navigate.
	NavigateErr error
}

var (
	_ stage.Stage   = (*Stage)(nil)
	_ stage.Locator = (*Stage)(nil)
)

// New returns an empty stage.
func New() *Stage {
	return &Stage{
		elements: make(map[string]*element),
		marked:   make(map[string]bool),
		unmarked: make(map[string]int),
	}
}

// Add registers an element under selector.
func (s *Stage) Add(selector string, kind Kind) *Stage {
	return s.AddAt(selector, kind, 0, 0)
}

// AddAt registers an element with a screen position.
func (s *Stage) AddAt(selector string, kind Kind, x, y int) *Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements[selector] = &element{kind: kind, x: x, y: y}
	return s
}

// Remove drops an element.
func (s *Stage) Remove(selector string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.elements, selector)
	delete(s.marked, selector)
}

// Query implements stage.Stage.
func (s *Stage) Query(selector string) (stage.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "query "+selector)

	if _, ok := s.elements[selector]; !ok {
		return nil, fmt.Errorf("%w: %s", stage.ErrNotFound, selector)
	}
	return &Handle{selector: selector}, nil
}

// Mark implements stage.Stage.
func (s *Stage) Mark(el stage.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "mark "+el.Selector())

	if _, err := s.lookup(el); err != nil {
		return err
	}
	s.marked[el.Selector()] = true
	return nil
}

// UnmarkAll implements stage.Stage.
func (s *Stage) UnmarkAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "unmarkAll")

	for sel := range s.marked {
		s.unmarked[sel]++
	}
	s.marked = make(map[string]bool)
	return nil
}

// ScrollIntoView implements stage.Stage.
func (s *Stage) ScrollIntoView(el stage.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "scroll "+el.Selector())

	_, err := s.lookup(el)
	return err
}

// Activate implements stage.Stage.
func (s *Stage) Activate(el stage.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "activate "+el.Selector())

	e, err := s.lookup(el)
	if err != nil {
		return err
	}
	if e.kind == KindInert {
		return stage.ErrNotActivatable
	}
	e.activations++
	return nil
}

// Focus implements stage.Stage.
func (s *Stage) Focus(el stage.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "focus "+el.Selector())

	if _, err := s.lookup(el); err != nil {
		return err
	}
	s.focused = el.Selector()
	return nil
}

// SetText implements stage.Stage.
func (s *Stage) SetText(el stage.Element, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf("setText %s %q", el.Selector(), text))

	e, err := s.lookup(el)
	if err != nil {
		return err
	}
	if e.kind != KindTextInput {
		return stage.ErrNotTextEntry
	}
	e.values = append(e.values, text)
	return nil
}

// Navigate implements stage.Stage.
func (s *Stage) Navigate(ctx context.Context, route string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.calls = append(s.calls, "navigate "+route)
	if s.NavigateErr != nil {
		err := s.NavigateErr
		s.mu.Unlock()
		return err
	}
	s.navigations = append(s.navigations, route)
	hook := s.OnNavigate
	s.mu.Unlock()

	if hook != nil {
		hook(s, route)
	}
	return nil
}

// Center implements stage.Locator.
func (s *Stage) Center(el stage.Element) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(el)
	if err != nil {
		return 0, 0, err
	}
	return e.x, e.y, nil
}

func (s *Stage) lookup(el stage.Element) (*element, error) {
	e, ok := s.elements[el.Selector()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", stage.ErrNotFound, el.Selector())
	}
	return e, nil
}

// Marked reports whether the element currently carries the marker.
func (s *Stage) Marked(selector string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marked[selector]
}

// MarkedSelectors returns the currently marked selectors, sorted.
func (s *Stage) MarkedSelectors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.marked))
	for sel := range s.marked {
		out = append(out, sel)
	}
	sort.Strings(out)
	return out
}

// Unmarked returns how many times the marker was removed from selector.
func (s *Stage) Unmarked(selector string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unmarked[selector]
}

// Navigations returns the recorded routes in order.
func (s *Stage) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

// Activations returns how many simulated clicks the element received.
func (s *Stage) Activations(selector string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.elements[selector]; ok {
		return e.activations
	}
	return 0
}

// Values returns every value SetText assigned to the element, in order.
func (s *Stage) Values(selector string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.elements[selector]; ok {
		return append([]string(nil), e.values...)
	}
	return nil
}

// Value returns the element's current value.
func (s *Stage) Value(selector string) string {
	values := s.Values(selector)
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}

// Focused returns the selector of the focused element.
func (s *Stage) Focused() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focused
}

// Calls returns the operation log.
func (s *Stage) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}
