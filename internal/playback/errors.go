package playback

import (
	"fmt"

	"github.com/v0xg/demotour/internal/scenario"
)

// ConfigurationError reports a Start request that names an unknown scenario or mode.
// The machine state is left unchanged.
type ConfigurationError struct {
	ScenarioID string
	Mode       Mode
	Reason     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("cannot start demo %q (mode %q): %s", e.ScenarioID, e.Mode, e.Reason)
}

// TargetNotFoundError reports a step whose selector matched nothing.
// The step's visual effects are skipped; playback continues.
type TargetNotFoundError struct {
	StepID   string
	Selector string
	Err      error
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("step %s: target %q not found", e.StepID, e.Selector)
}

func (e *TargetNotFoundError) Unwrap() error { return e.Err }

// TypeMismatchError reports an element lacking the capability a step needs,
// such as typing into a button.
type TypeMismatchError struct {
	StepID   string
	Action   scenario.Action
	Selector string
	Err      error
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("step %s: cannot %s %q: %v", e.StepID, e.Action, e.Selector, e.Err)
}

func (e *TypeMismatchError) Unwrap() error { return e.Err }
