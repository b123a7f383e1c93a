package playback

import (
	"time"

	"github.com/v0xg/demotour/internal/scenario"
)

// EventKind identifies the type of event emitted by the engine.
type EventKind string

const (
	// EventTourStarted is emitted when Start activates a scenario.
	EventTourStarted EventKind = "tour.started"

	// EventTourStopped is emitted when playback returns to Inactive.
	// Completed is set when a cinematic tour ran past its last step.
	EventTourStopped EventKind = "tour.stopped"

	// EventTourFinished is emitted once per session, when a guided tour reaches its end and stays on screen.
	EventTourFinished EventKind = "tour.finished"

	// EventTourPaused and EventTourResumed track the play/pause flag.
	EventTourPaused  EventKind = "tour.paused"
	EventTourResumed EventKind = "tour.resumed"

	// EventStepChanged is emitted once per genuine step transition.
	EventStepChanged EventKind = "step.changed"

	// EventStepExecuted is emitted when a step's side effects have all run.
	EventStepExecuted EventKind = "step.executed"

	// EventStepSkipped is emitted when a step's effects were skipped; Err says why.
	EventStepSkipped EventKind = "step.skipped"

	// EventNavigated is emitted after a navigate step routed the page.
	EventNavigated EventKind = "stage.navigated"

	// EventActivated is emitted when a simulated click lands.
	EventActivated EventKind = "stage.activated"

	// EventFocused is emitted when a type step has focused and cleared its field.
	EventFocused EventKind = "stage.focused"

	// EventConfigError is emitted when Start is refused.
	EventConfigError EventKind = "config.error"
)

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	return string(k)
}

// Event is a record of something that happened during playback.
type Event struct {
	Kind       EventKind
	SessionID  string
	ScenarioID string
	Mode       Mode
	StepIndex  int
	StepID     string
	Action     scenario.Action

	// X and Y are the screen position of an activated or focused element when HasPosition is set.
	X, Y        int
	HasPosition bool

	Completed bool
	Err       error
	Time      time.Time
}

func newStepEvent(kind EventKind, snap Snapshot) Event {
	e := Event{
		Kind:       kind,
		SessionID:  snap.SessionID,
		ScenarioID: snap.ScenarioID,
		Mode:       snap.Mode,
		StepIndex:  snap.StepIndex,
		Time:       time.Now(),
	}
	if snap.Step != nil {
		e.StepID = snap.Step.ID
		e.Action = snap.Step.Action
	}
	return e
}
