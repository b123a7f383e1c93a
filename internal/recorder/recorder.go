// Package recorder captures the stage while a tour plays and renders the result
// as an animated GIF with a synthetic pointer.
package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"github.com/v0xg/demotour/internal/gifgen"
	"github.com/v0xg/demotour/internal/overlay"
	"github.com/v0xg/demotour/internal/playback"
	"github.com/v0xg/demotour/internal/stage"
)

// ErrRunning is returned by Start on a recorder that is already capturing.
var ErrRunning = errors.New("recorder already running")

// Options configures a Recorder.
type Options struct {
	// FPS is the capture rate (default 10).
	FPS int

	// MaxFrames bounds memory use; capture stops silently once reached (default 3000).
	MaxFrames int

	// Logger reports capture failures. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Recording is the captured material of one tour.
type Recording struct {
	Frames    []image.Image
	Times     []time.Duration // Offset of each frame from the start
	Keyframes []overlay.Keyframe
}

// Recorder periodically screenshots a stage and notes where clicks and typing land.
type Recorder struct {
	source stage.Screenshotter
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	started time.Time
	rec     Recording
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a recorder capturing from source.
func New(source stage.Screenshotter, opts Options) *Recorder {
	if opts.FPS <= 0 {
		opts.FPS = 10
	}
	if opts.MaxFrames <= 0 {
		opts.MaxFrames = 3000
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{source: source, opts: opts, logger: logger, now: time.Now}
}

// Start begins capturing until ctx is cancelled or Stop is called.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.started = r.now()
	r.rec = Recording{}

	go r.loop(ctx, r.done)
	return nil
}

// Stop ends capturing and returns what was recorded.
func (r *Recorder) Stop() Recording {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec
}

// Observe turns playback events into pointer keyframes. Register it with Engine.Observe.
func (r *Recorder) Observe(ev playback.Event) {
	if !ev.HasPosition {
		return
	}

	var key overlay.Keyframe
	switch ev.Kind {
	case playback.EventActivated:
		key = overlay.Keyframe{X: ev.X, Y: ev.Y, Shape: overlay.ShapeHand, Click: true}
	case playback.EventFocused:
		key = overlay.Keyframe{X: ev.X, Y: ev.Y, Shape: overlay.ShapeText}
	default:
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return
	}
	key.At = ev.Time.Sub(r.started)
	r.rec.Keyframes = append(r.rec.Keyframes, key)
}

func (r *Recorder) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(r.opts.FPS))
	defer ticker.Stop()

	for {
		r.capture()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Recorder) capture() {
	r.mu.Lock()
	full := len(r.rec.Frames) >= r.opts.MaxFrames
	r.mu.Unlock()
	if full {
		return
	}

	at := r.now()
	data, err := r.source.Screenshot()
	if err != nil {
		r.logger.Debug("frame capture failed", "error", err)
		return
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		r.logger.Debug("frame decode failed", "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec.Frames = append(r.rec.Frames, img)
	r.rec.Times = append(r.rec.Times, at.Sub(r.started))
}

// Render draws the pointer onto the recording and writes it to outputPath as a GIF.
// It returns the size of the written file.
func Render(rec Recording, outputPath string, opts gifgen.Options) (int64, error) {
	if len(rec.Frames) == 0 {
		return 0, fmt.Errorf("render %s: %w", outputPath, gifgen.ErrNoFrames)
	}
	cursors := overlay.Track(rec.Keyframes, rec.Times, overlay.TrackOptions{})
	frames := overlay.Apply(rec.Frames, cursors)
	return gifgen.WriteFile(outputPath, frames, opts)
}
