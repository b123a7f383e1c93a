package playback

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/v0xg/demotour/internal/scenario"
)

// Mode is the timing discipline of a tour.
type Mode string

const (
	// ModeCinematic advances automatically after each step's duration.
	ModeCinematic Mode = "cinematic"
	// ModeGuided waits for the viewer to advance.
	ModeGuided Mode = "guided"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeCinematic || m == ModeGuided
}

// ParseMode converts a string to a Mode, defaulting empty input to cinematic.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeCinematic, nil
	}
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown mode %q (supported: cinematic, guided)", s)
	}
	return m, nil
}

// Registry resolves scenario ids.
type Registry interface {
	Lookup(id string) (*scenario.Scenario, bool)
}

// Snapshot is a point-in-time view of the playback state.
type Snapshot struct {
	Active     bool           `json:"active"`
	SessionID  string         `json:"sessionId,omitempty"`
	ScenarioID string         `json:"scenarioId,omitempty"`
	StepIndex  int            `json:"stepIndex"`
	StepCount  int            `json:"stepCount"`
	Mode       Mode           `json:"mode,omitempty"`
	Playing    bool           `json:"playing"`
	Finished   bool           `json:"finished"`
	Step       *scenario.Step `json:"currentStep"`
}

// timerKey is the tuple the autoplay timer's lifetime is scoped to.
type timerKey struct {
	active    bool
	sessionID string
	stepIndex int
	playing   bool
	mode      Mode
}

func (s Snapshot) timerKey() timerKey {
	return timerKey{s.Active, s.SessionID, s.StepIndex, s.Playing, s.Mode}
}

func (s Snapshot) autoplay() bool {
	return s.Active && s.Playing && s.Mode == ModeCinematic && s.Step != nil
}

// stepChanged reports whether moving from s to next is a genuine step transition.
func (s Snapshot) stepChanged(next Snapshot) bool {
	return s.Active != next.Active || s.SessionID != next.SessionID || s.StepIndex != next.StepIndex
}

// Op names the operation that caused a transition.
type Op string

const (
	OpStart    Op = "start"
	OpStop     Op = "stop"
	OpNext     Op = "next"
	OpPrev     Op = "prev"
	OpPause    Op = "pause"
	OpResume   Op = "resume"
	OpJump     Op = "jump"
	OpAutoplay Op = "autoplay"
)

// Transition describes one state change.
type Transition struct {
	Op   Op
	Prev Snapshot
	Next Snapshot
}

// MachineOptions configures a Machine.
type MachineOptions struct {
	// DefaultStepDuration is used for steps without durationMs (default 3s).
	DefaultStepDuration time.Duration

	// Logger receives configuration errors. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Machine is the playback state machine. It owns the autoplay timer.
//
// Operations are total: calls that make no sense in the current state are no-ops.
// Transitions are serialised and listeners run in transition order, outside the
// state lock. Listeners must not call back into the machine synchronously.
type Machine struct {
	opMu sync.Mutex

	mu         sync.Mutex
	registry   Registry
	opts       MachineOptions
	logger     *slog.Logger
	scenario   *scenario.Scenario
	sessionID  string
	stepIndex  int
	mode       Mode
	playing    bool
	finished   bool
	timer      *time.Timer
	timerEpoch uint64
	closed     bool

	onStep       []func(Snapshot)
	onTransition []func(Transition)
}

// NewMachine creates an inactive machine backed by registry.
func NewMachine(registry Registry, opts MachineOptions) *Machine {
	if opts.DefaultStepDuration <= 0 {
		opts.DefaultStepDuration = 3 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		registry: registry,
		opts:     opts,
		logger:   logger,
	}
}

// OnStepChanged registers fn to run once per genuine step transition, including
// entering and leaving Active.
func (m *Machine) OnStepChanged(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStep = append(m.onStep, fn)
}

// OnTransition registers fn to run after every state change.
func (m *Machine) OnTransition(fn func(Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTransition = append(m.onTransition, fn)
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Start activates scenarioID at step 0. Unknown scenarios and modes are refused
// with a *ConfigurationError and leave the state untouched.
func (m *Machine) Start(scenarioID string, mode Mode) error {
	if !mode.Valid() {
		err := &ConfigurationError{ScenarioID: scenarioID, Mode: mode, Reason: "unknown mode"}
		m.logger.Error("demo start refused", "scenario", scenarioID, "mode", mode, "error", err)
		return err
	}
	s, ok := m.registry.Lookup(scenarioID)
	if !ok || s.Len() == 0 {
		err := &ConfigurationError{ScenarioID: scenarioID, Mode: mode, Reason: "unknown scenario"}
		m.logger.Error("demo start refused", "scenario", scenarioID, "mode", mode, "error", err)
		return err
	}

	m.transition(OpStart, func() {
		m.scenario = s
		m.sessionID = uuid.NewString()
		m.stepIndex = 0
		m.mode = mode
		m.playing = mode == ModeCinematic
		m.finished = false
	})
	return nil
}

// Stop returns to Inactive. Stopping an inactive machine does nothing.
func (m *Machine) Stop() {
	m.transition(OpStop, m.resetLocked)
}

// Next advances one step. At the last step a guided tour stops playing and is
// marked finished for the rest of the session but stays visible, while a
// cinematic tour stops.
func (m *Machine) Next() {
	m.transition(OpNext, m.nextLocked)
}

// Prev moves back one step.
func (m *Machine) Prev() {
	m.transition(OpPrev, func() {
		if m.scenario != nil && m.stepIndex > 0 {
			m.stepIndex--
		}
	})
}

// Pause clears the playing flag.
func (m *Machine) Pause() {
	m.transition(OpPause, func() {
		if m.scenario != nil {
			m.playing = false
		}
	})
}

// Resume sets the playing flag.
func (m *Machine) Resume() {
	m.transition(OpResume, func() {
		if m.scenario != nil {
			m.playing = true
		}
	})
}

// JumpToStep moves to step i when it exists.
func (m *Machine) JumpToStep(i int) {
	m.transition(OpJump, func() {
		if m.scenario != nil && i >= 0 && i < m.scenario.Len() {
			m.stepIndex = i
		}
	})
}

// Close cancels the autoplay timer. Later transitions never schedule a new one.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.stopTimerLocked()
}

func (m *Machine) nextLocked() {
	if m.scenario == nil {
		return
	}
	if m.stepIndex < m.scenario.Len()-1 {
		m.stepIndex++
		return
	}
	if m.mode == ModeGuided {
		m.playing = false
		m.finished = true
		return
	}
	m.resetLocked()
}

func (m *Machine) resetLocked() {
	m.scenario = nil
	m.sessionID = ""
	m.stepIndex = 0
	m.mode = ""
	m.playing = false
	m.finished = false
}

// advance is the autoplay timer callback. Fires from a superseded timer are ignored.
func (m *Machine) advance(epoch uint64) {
	m.transition(OpAutoplay, func() {
		if epoch != m.timerEpoch || m.closed {
			return
		}
		m.nextLocked()
	})
}

func (m *Machine) transition(op Op, mutate func()) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	prev := m.snapshotLocked()
	mutate()
	next := m.snapshotLocked()
	m.rescheduleLocked(prev, next)
	onStep := slices.Clone(m.onStep)
	onTransition := slices.Clone(m.onTransition)
	m.mu.Unlock()

	if prev.timerKey() != next.timerKey() || prev.Finished != next.Finished {
		t := Transition{Op: op, Prev: prev, Next: next}
		for _, fn := range onTransition {
			m.safeCall(func() { fn(t) })
		}
	}
	if prev.stepChanged(next) {
		for _, fn := range onStep {
			m.safeCall(func() { fn(next) })
		}
	}
}

// rescheduleLocked tears down the autoplay timer whenever its tuple changes and
// arms a new one if autoplay still applies.
func (m *Machine) rescheduleLocked(prev, next Snapshot) {
	if prev.timerKey() == next.timerKey() && (m.timer != nil || !next.autoplay()) {
		return
	}
	m.stopTimerLocked()
	if m.closed || !next.autoplay() {
		return
	}

	epoch := m.timerEpoch
	d := next.Step.Duration(m.opts.DefaultStepDuration)
	m.timer = time.AfterFunc(d, func() { m.advance(epoch) })
}

func (m *Machine) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerEpoch++
}

func (m *Machine) snapshotLocked() Snapshot {
	if m.scenario == nil {
		return Snapshot{}
	}
	step := m.scenario.Steps[m.stepIndex]
	return Snapshot{
		Active:     true,
		SessionID:  m.sessionID,
		ScenarioID: m.scenario.ID,
		StepIndex:  m.stepIndex,
		StepCount:  m.scenario.Len(),
		Mode:       m.mode,
		Playing:    m.playing,
		Finished:   m.finished,
		Step:       &step,
	}
}

func (m *Machine) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("demo listener panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}
