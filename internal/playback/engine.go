// Package playback implements the scripted demo-playback engine.
//
// The engine combines three parts:
//   - [Machine], the playback state machine (scenario, step index, mode, play/pause)
//     which also owns the autoplay timer used in cinematic mode
//   - [Executor], which turns each newly reached step into stage operations exactly
//     once and clears highlight markers when playback moves on or stops
//   - [Engine], the facade wiring both together and publishing [Event] records
//
// All operations are total. Failures (unknown scenarios, missing targets, elements
// without the needed capability) are logged and reported as events; they never
// stop the host page or the state machine.
package playback

import (
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/v0xg/demotour/internal/stage"
)

// Options configures an Engine.
type Options struct {
	SettleDelay         time.Duration
	EmphasisDelay       time.Duration
	KeystrokeDelay      time.Duration
	DefaultStepDuration time.Duration

	// Logger is used by every component. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// DefaultOptions returns the standard timing.
func DefaultOptions() Options {
	d := DefaultExecutorOptions()
	return Options{
		SettleDelay:         d.SettleDelay,
		EmphasisDelay:       d.EmphasisDelay,
		KeystrokeDelay:      d.KeystrokeDelay,
		DefaultStepDuration: 3 * time.Second,
	}
}

// Engine drives a stage through registered scenarios.
type Engine struct {
	machine  *Machine
	executor *Executor
	logger   *slog.Logger

	mu        sync.RWMutex
	observers []func(Event)
}

// New creates an inactive engine.
func New(registry Registry, st stage.Stage, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{logger: logger}
	e.machine = NewMachine(registry, MachineOptions{
		DefaultStepDuration: opts.DefaultStepDuration,
		Logger:              logger,
	})
	e.executor = NewExecutor(st, ExecutorOptions{
		SettleDelay:    opts.SettleDelay,
		EmphasisDelay:  opts.EmphasisDelay,
		KeystrokeDelay: opts.KeystrokeDelay,
		Logger:         logger,
		Emit:           e.publish,
	})

	e.machine.OnStepChanged(e.executor.HandleStepChanged)
	e.machine.OnTransition(e.handleTransition)
	return e
}

// Observe registers fn to receive every event. fn may be called from any goroutine.
//
// Lifecycle events are delivered while the state machine is mid-transition, so fn
// must not call back into the engine synchronously (Start, Stop, Next and so on
// would deadlock). Hand such calls off to another goroutine.
func (e *Engine) Observe(fn func(Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// Start begins scenarioID in the given mode at step 0.
func (e *Engine) Start(scenarioID string, mode Mode) error {
	if err := e.machine.Start(scenarioID, mode); err != nil {
		e.publish(Event{
			Kind:       EventConfigError,
			ScenarioID: scenarioID,
			Mode:       mode,
			Err:        err,
			Time:       time.Now(),
		})
		return err
	}
	return nil
}

// Stop ends playback and clears all markers.
func (e *Engine) Stop() { e.machine.Stop() }

// Next advances one step.
func (e *Engine) Next() { e.machine.Next() }

// Prev goes back one step.
func (e *Engine) Prev() { e.machine.Prev() }

// Pause suspends autoplay.
func (e *Engine) Pause() { e.machine.Pause() }

// Resume restarts autoplay from the current step.
func (e *Engine) Resume() { e.machine.Resume() }

// JumpToStep moves to step i if it exists.
func (e *Engine) JumpToStep(i int) { e.machine.JumpToStep(i) }

// Snapshot returns the current playback state.
func (e *Engine) Snapshot() Snapshot { return e.machine.Snapshot() }

// Wait blocks until in-flight step effects finish.
func (e *Engine) Wait() { e.executor.Wait() }

// Close stops the autoplay timer and cancels in-flight step effects.
// The stage is left as it is.
func (e *Engine) Close() {
	e.machine.Close()
	e.executor.Close()
}

func (e *Engine) handleTransition(t Transition) {
	prev, next := t.Prev, t.Next

	switch {
	case next.Active && (!prev.Active || prev.SessionID != next.SessionID):
		e.logger.Info("demo started", "scenario", next.ScenarioID, "mode", next.Mode, "session", next.SessionID)
		e.publish(newStepEvent(EventTourStarted, next))

	case prev.Active && !next.Active:
		ev := newStepEvent(EventTourStopped, prev)
		ev.Completed = t.Op == OpNext || t.Op == OpAutoplay
		e.logger.Info("demo stopped", "scenario", prev.ScenarioID, "session", prev.SessionID, "completed", ev.Completed)
		e.publish(ev)
		return

	case !prev.Finished && next.Finished:
		e.logger.Info("demo finished", "scenario", next.ScenarioID, "session", next.SessionID)
		e.publish(newStepEvent(EventTourFinished, next))
		return

	case prev.Playing && !next.Playing:
		e.publish(newStepEvent(EventTourPaused, next))

	case !prev.Playing && next.Playing:
		e.publish(newStepEvent(EventTourResumed, next))
	}

	if prev.stepChanged(next) && next.Active {
		e.logger.Debug("demo step", "scenario", next.ScenarioID, "index", next.StepIndex, "step", next.Step.ID)
		e.publish(newStepEvent(EventStepChanged, next))
	}
}

func (e *Engine) publish(ev Event) {
	e.mu.RLock()
	observers := slices.Clone(e.observers)
	e.mu.RUnlock()

	for _, fn := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("demo observer panicked", "panic", r, "stack", string(debug.Stack()))
				}
			}()
			fn(ev)
		}()
	}
}
