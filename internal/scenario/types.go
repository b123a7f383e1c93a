// Package scenario defines the scripted tours played back by the demo engine.
//
// A [Scenario] is an ordered list of [Step] records. Scenarios are read-only once
// registered in a [Registry]; the playback engine only ever looks them up by id.
package scenario

import "time"

// Action is the interaction a step performs against the stage.
type Action string

const (
	ActionNavigate       Action = "navigate"
	ActionHighlight      Action = "highlight"
	ActionScrollIntoView Action = "scrollIntoView"
	ActionClick          Action = "click"
	ActionType           Action = "type"
)

// NeedsTarget reports whether the action resolves a target element.
func (a Action) NeedsTarget() bool {
	return a != ActionNavigate
}

// Role is the persona a step is presented as.
type Role string

const (
	RoleBuyer    Role = "buyer"
	RoleSupplier Role = "supplier"
)

// Step represents a single scripted interaction
type Step struct {
	ID             string `json:"id" yaml:"id" validate:"required"`
	Role           Role   `json:"role,omitempty" yaml:"role,omitempty" validate:"omitempty,oneof=buyer supplier"`
	Action         Action `json:"action" yaml:"action" validate:"required,oneof=navigate highlight scrollIntoView click type"`
	TargetSelector string `json:"targetSelector,omitempty" yaml:"targetSelector,omitempty" validate:"required_unless=Action navigate"`
	Route          string `json:"route,omitempty" yaml:"route,omitempty" validate:"required_if=Action navigate"`
	Text           string `json:"text,omitempty" yaml:"text,omitempty" validate:"required_if=Action type"`
	DurationMs     int    `json:"durationMs,omitempty" yaml:"durationMs,omitempty" validate:"gte=0"`

	// Title and Description are captions for tour controls; the engine ignores them.
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Duration returns how long the step stays on screen during autoplay,
// falling back to def when the step does not set one.
func (s Step) Duration(def time.Duration) time.Duration {
	if s.DurationMs <= 0 {
		return def
	}
	return time.Duration(s.DurationMs) * time.Millisecond
}

// Scenario is a named, ordered tour
type Scenario struct {
	ID    string `json:"id" yaml:"id" validate:"required"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Steps []Step `json:"steps" yaml:"steps" validate:"required,min=1,dive"`
}

// Len returns the number of steps.
func (s *Scenario) Len() int {
	return len(s.Steps)
}

// Step returns the step at index i and whether it exists.
func (s *Scenario) Step(i int) (Step, bool) {
	if i < 0 || i >= len(s.Steps) {
		return Step{}, false
	}
	return s.Steps[i], true
}
