package recorder

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/demotour/internal/gifgen"
	"github.com/v0xg/demotour/internal/overlay"
	"github.com/v0xg/demotour/internal/playback"
)

// screen is a fake Screenshotter returning a fixed PNG.
type screen struct {
	png   []byte
	fail  atomic.Bool
	shots atomic.Int32
}

func newScreen(t *testing.T) *screen {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = 0xee
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &screen{png: buf.Bytes()}
}

func (s *screen) Screenshot() ([]byte, error) {
	s.shots.Add(1)
	if s.fail.Load() {
		return nil, errors.New("page closed")
	}
	return s.png, nil
}

func TestRecorder_CapturesFramesAndKeyframes(t *testing.T) {
	src := newScreen(t)
	r := New(src, Options{FPS: 100})

	require.NoError(t, r.Start(context.Background()))
	assert.ErrorIs(t, r.Start(context.Background()), ErrRunning)

	require.Eventually(t, func() bool { return src.shots.Load() >= 3 }, 2*time.Second, time.Millisecond)

	r.Observe(playback.Event{Kind: playback.EventActivated, X: 10, Y: 20, HasPosition: true, Time: time.Now()})
	r.Observe(playback.Event{Kind: playback.EventFocused, X: 30, Y: 40, HasPosition: true, Time: time.Now()})
	r.Observe(playback.Event{Kind: playback.EventActivated, Time: time.Now()})
	r.Observe(playback.Event{Kind: playback.EventStepChanged, X: 1, Y: 1, HasPosition: true, Time: time.Now()})

	rec := r.Stop()
	require.GreaterOrEqual(t, len(rec.Frames), 3)
	assert.Len(t, rec.Times, len(rec.Frames))
	for i := 1; i < len(rec.Times); i++ {
		assert.GreaterOrEqual(t, rec.Times[i], rec.Times[i-1])
	}

	require.Len(t, rec.Keyframes, 2)
	assert.Equal(t, overlay.ShapeHand, rec.Keyframes[0].Shape)
	assert.True(t, rec.Keyframes[0].Click)
	assert.Equal(t, overlay.ShapeText, rec.Keyframes[1].Shape)
	assert.False(t, rec.Keyframes[1].Click)

	// Events after Stop are ignored.
	r.Observe(playback.Event{Kind: playback.EventActivated, X: 5, Y: 5, HasPosition: true, Time: time.Now()})
	assert.Len(t, r.Stop().Keyframes, 2)
}

func TestRecorder_MaxFrames(t *testing.T) {
	src := newScreen(t)
	r := New(src, Options{FPS: 200, MaxFrames: 2})

	require.NoError(t, r.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)

	assert.Len(t, r.Stop().Frames, 2)
}

func TestRecorder_CaptureErrorsAreSkipped(t *testing.T) {
	src := newScreen(t)
	src.fail.Store(true)
	r := New(src, Options{FPS: 100})

	require.NoError(t, r.Start(context.Background()))
	require.Eventually(t, func() bool { return src.shots.Load() >= 2 }, 2*time.Second, time.Millisecond)

	assert.Empty(t, r.Stop().Frames)
}

func TestRecorder_StopsWithContext(t *testing.T) {
	src := newScreen(t)
	r := New(src, Options{FPS: 100})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Start(ctx))
	cancel()

	time.Sleep(30 * time.Millisecond)
	shots := src.shots.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, shots, src.shots.Load())
	r.Stop()
}

func TestRender(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for i := range frame.Pix {
		frame.Pix[i] = 0xff
	}
	rec := Recording{
		Frames:    []image.Image{frame, frame, frame},
		Times:     []time.Duration{0, time.Second, 1100 * time.Millisecond},
		Keyframes: []overlay.Keyframe{{At: time.Second, X: 32, Y: 24, Click: true}},
	}
	path := filepath.Join(t.TempDir(), "tour.gif")

	size, err := Render(rec, path, gifgen.Options{FPS: 10})
	require.NoError(t, err)
	assert.Positive(t, size)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	require.Len(t, g.Image, 3)

	r, _, _, _ := g.Image[1].At(32, 24).RGBA()
	assert.Less(t, r>>8, uint32(0x80), "pointer tip drawn at the click")
	r, _, _, _ = g.Image[0].At(32, 24).RGBA()
	assert.Equal(t, uint32(0xff), r>>8, "no pointer before it glides in")
}

func TestRender_Empty(t *testing.T) {
	_, err := Render(Recording{}, filepath.Join(t.TempDir(), "x.gif"), gifgen.Options{})
	assert.ErrorIs(t, err, gifgen.ErrNoFrames)
}
