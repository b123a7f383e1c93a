package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/v0xg/demotour/internal/scenario"
	"github.com/v0xg/demotour/internal/stage"
)

// ExecutorOptions configures step execution timing.
type ExecutorOptions struct {
	// SettleDelay lets the destination page finish mounting before a target is resolved (default 100ms).
	SettleDelay time.Duration

	// EmphasisDelay is how long a click target stays highlighted before it is clicked (default 500ms).
	EmphasisDelay time.Duration

	// KeystrokeDelay is the pause after each typed character (default 50ms).
	KeystrokeDelay time.Duration

	// Logger receives warnings. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Emit receives execution events. Optional.
	Emit func(Event)
}

// DefaultExecutorOptions returns the standard timing.
func DefaultExecutorOptions() ExecutorOptions {
	return ExecutorOptions{
		SettleDelay:    100 * time.Millisecond,
		EmphasisDelay:  500 * time.Millisecond,
		KeystrokeDelay: 50 * time.Millisecond,
	}
}

// cursor identifies the last step whose side effects were started.
type cursor struct {
	sessionID string
	stepID    string
}

// execution is one run of a step's side effects.
type execution struct {
	ctx  context.Context
	gen  uint64
	snap Snapshot
	step scenario.Step
}

// Executor turns the current step into stage operations, at most once per
// arrival at a step.
//
// Every execution is tagged with a generation. A new step, or leaving Active,
// bumps the generation and cancels the in-flight execution; its pending waits
// return early and no further stage mutation is made on its behalf.
type Executor struct {
	stage  stage.Stage
	opts   ExecutorOptions
	logger *slog.Logger

	mu     sync.Mutex
	cursor cursor
	gen    uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewExecutor creates an executor driving st.
func NewExecutor(st stage.Stage, opts ExecutorOptions) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		stage:  st,
		opts:   opts,
		logger: logger,
	}
}

// HandleStepChanged reacts to a step transition. Leaving Active clears every
// marker; arriving at a step not yet executed starts its side effects.
func (e *Executor) HandleStepChanged(snap Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !snap.Active || snap.Step == nil {
		e.invalidateLocked()
		e.cursor = cursor{}
		if err := e.protect(e.stage.UnmarkAll); err != nil {
			e.logger.Warn("demo cleanup failed", "error", err)
		}
		return
	}

	cur := cursor{sessionID: snap.SessionID, stepID: snap.Step.ID}
	if e.cursor == cur {
		return
	}
	e.cursor = cur
	e.invalidateLocked()

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	if err := e.protect(e.stage.UnmarkAll); err != nil {
		e.logger.Warn("demo cleanup failed", "step", snap.Step.ID, "error", err)
	}

	x := &execution{ctx: ctx, gen: e.gen, snap: snap, step: *snap.Step}
	e.wg.Add(1)
	go e.run(x)
}

// Wait blocks until in-flight executions return.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Close cancels any in-flight execution and waits for it to return.
func (e *Executor) Close() {
	e.mu.Lock()
	e.invalidateLocked()
	e.mu.Unlock()
	e.wg.Wait()
}

func (e *Executor) invalidateLocked() {
	e.gen++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

func (e *Executor) run(x *execution) {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("demo step panicked", "step", x.step.ID, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err := e.perform(x); err != nil {
		if x.ctx.Err() != nil {
			return
		}
		e.report(x, err)
		return
	}
	if x.ctx.Err() == nil {
		e.emit(newStepEvent(EventStepExecuted, x.snap))
	}
}

// perform runs the step's sub-actions in order. A nil error with a cancelled
// context means the execution was superseded.
func (e *Executor) perform(x *execution) error {
	step := x.step

	if step.Action == scenario.ActionNavigate {
		if !e.live(x) {
			return nil
		}
		if err := e.stage.Navigate(x.ctx, step.Route); err != nil {
			return fmt.Errorf("navigate to %s: %w", step.Route, err)
		}
		e.emit(newStepEvent(EventNavigated, x.snap))
		return nil
	}

	if !sleep(x.ctx, e.opts.SettleDelay) {
		return nil
	}

	var el stage.Element
	live, err := e.apply(x, func() error {
		var qerr error
		el, qerr = e.stage.Query(step.TargetSelector)
		return qerr
	})
	if !live {
		return nil
	}
	if err != nil {
		if errors.Is(err, stage.ErrNotFound) {
			return &TargetNotFoundError{StepID: step.ID, Selector: step.TargetSelector, Err: err}
		}
		return fmt.Errorf("query %s: %w", step.TargetSelector, err)
	}

	switch step.Action {
	case scenario.ActionHighlight:
		_, err = e.apply(x, func() error { return e.stage.Mark(el) })
		return err

	case scenario.ActionScrollIntoView:
		if live, err = e.apply(x, func() error { return e.stage.ScrollIntoView(el) }); !live || err != nil {
			return err
		}
		_, err = e.apply(x, func() error { return e.stage.Mark(el) })
		return err

	case scenario.ActionClick:
		return e.click(x, el)

	case scenario.ActionType:
		return e.typeText(x, el)

	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
}

func (e *Executor) click(x *execution, el stage.Element) error {
	if live, err := e.apply(x, func() error { return e.stage.Mark(el) }); !live || err != nil {
		return err
	}
	if !sleep(x.ctx, e.opts.EmphasisDelay) {
		return nil
	}

	ev := newStepEvent(EventActivated, x.snap)
	live, err := e.apply(x, func() error {
		e.locate(&ev, el)
		return e.stage.Activate(el)
	})
	if !live {
		return nil
	}
	if errors.Is(err, stage.ErrNotActivatable) {
		return &TypeMismatchError{StepID: x.step.ID, Action: x.step.Action, Selector: x.step.TargetSelector, Err: err}
	}
	if err != nil {
		return err
	}
	e.emit(ev)
	return nil
}

func (e *Executor) typeText(x *execution, el stage.Element) error {
	if live, err := e.apply(x, func() error { return e.stage.Focus(el) }); !live || err != nil {
		return err
	}
	ev := newStepEvent(EventFocused, x.snap)
	live, err := e.apply(x, func() error {
		e.locate(&ev, el)
		return e.stage.SetText(el, "")
	})
	if !live {
		return nil
	}
	if errors.Is(err, stage.ErrNotTextEntry) {
		return &TypeMismatchError{StepID: x.step.ID, Action: x.step.Action, Selector: x.step.TargetSelector, Err: err}
	}
	if err != nil {
		return err
	}
	e.emit(ev)

	runes := []rune(x.step.Text)
	for i := range runes {
		prefix := string(runes[:i+1])
		if live, err := e.apply(x, func() error { return e.stage.SetText(el, prefix) }); !live || err != nil {
			return err
		}
		if !sleep(x.ctx, e.opts.KeystrokeDelay) {
			return nil
		}
	}
	return nil
}

// locate records the element's screen position on ev when the stage can tell.
func (e *Executor) locate(ev *Event, el stage.Element) {
	loc, ok := e.stage.(stage.Locator)
	if !ok {
		return
	}
	if cx, cy, err := loc.Center(el); err == nil {
		ev.X, ev.Y, ev.HasPosition = cx, cy, true
	}
}

// live reports whether x is still the current execution.
func (e *Executor) live(x *execution) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return x.gen == e.gen
}

// apply runs fn under the executor lock if x is still current. The first result
// is false when x was superseded and fn did not run.
func (e *Executor) apply(x *execution, fn func() error) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if x.gen != e.gen {
		return false, nil
	}
	return true, e.protect(fn)
}

// protect converts a panicking stage call into an error.
func (e *Executor) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panic: %v", r)
		}
	}()
	return fn()
}

func (e *Executor) report(x *execution, err error) {
	attrs := []any{
		"scenario", x.snap.ScenarioID,
		"step", x.step.ID,
		"action", x.step.Action,
		"error", err,
	}

	var mismatch *TypeMismatchError
	var notFound *TargetNotFoundError
	switch {
	case errors.As(err, &mismatch):
		e.logger.Debug("demo step skipped", attrs...)
	case errors.As(err, &notFound):
		e.logger.Warn("demo target not found", attrs...)
	default:
		e.logger.Warn("demo step failed", attrs...)
	}

	ev := newStepEvent(EventStepSkipped, x.snap)
	ev.Err = err
	e.emit(ev)
}

func (e *Executor) emit(ev Event) {
	if e.opts.Emit != nil {
		e.opts.Emit(ev)
	}
}

// sleep waits for d or until ctx is done, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
