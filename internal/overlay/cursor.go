// Package overlay draws a synthetic pointer and click ripples onto recorded frames.
package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"
	"time"
)

// Shape is the visual state of the pointer
type Shape int

const (
	ShapeArrow Shape = iota
	ShapeHand
	ShapeText
)

// Keyframe is a point in time at which the pointer must be over a target
type Keyframe struct {
	At    time.Duration // Offset from the start of the recording
	X, Y  int
	Shape Shape
	Click bool // Whether a click lands at this keyframe
}

// Cursor is the pointer as drawn on one frame
type Cursor struct {
	X, Y    int
	Shape   Shape
	Pressed bool
	Visible bool
}

// TrackOptions tunes pointer motion
type TrackOptions struct {
	Glide     time.Duration // How long the pointer travels towards a keyframe (default 500ms)
	ClickHold time.Duration // How long a click ripple stays visible (default 300ms)
}

// Track computes the pointer for each frame time. The pointer is hidden until the
// first keyframe starts gliding in, then eases between keyframes.
func Track(keys []Keyframe, frameTimes []time.Duration, opts TrackOptions) []Cursor {
	if opts.Glide <= 0 {
		opts.Glide = 500 * time.Millisecond
	}
	if opts.ClickHold <= 0 {
		opts.ClickHold = 300 * time.Millisecond
	}

	result := make([]Cursor, len(frameTimes))
	if len(keys) == 0 {
		return result
	}

	keys = append([]Keyframe(nil), keys...)
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].At < keys[j].At })

	for i, t := range frameTimes {
		result[i] = cursorAt(keys, t, opts)
	}
	return result
}

func cursorAt(keys []Keyframe, t time.Duration, opts TrackOptions) Cursor {
	// Index of the first keyframe not yet reached
	next := sort.Search(len(keys), func(i int) bool { return keys[i].At > t })

	if next > 0 {
		last := keys[next-1]
		if last.Click && t-last.At < opts.ClickHold {
			return Cursor{X: last.X, Y: last.Y, Shape: last.Shape, Pressed: true, Visible: true}
		}
	}

	if next == len(keys) {
		last := keys[next-1]
		return Cursor{X: last.X, Y: last.Y, Shape: last.Shape, Visible: true}
	}

	target := keys[next]
	start := target.At - opts.Glide

	if next == 0 {
		// First appearance: slide in from the top-left quarter of the target.
		if t < start {
			return Cursor{}
		}
		from := Cursor{X: target.X / 2, Y: target.Y / 2}
		return glide(from, target, progress(t, start, opts.Glide))
	}

	prev := keys[next-1]
	from := Cursor{X: prev.X, Y: prev.Y, Shape: prev.Shape, Visible: true}
	if t < start {
		return from
	}
	return glide(from, target, progress(t, start, opts.Glide))
}

func progress(t, start, span time.Duration) float64 {
	p := float64(t-start) / float64(span)
	return math.Max(0, math.Min(1, p))
}

func glide(from Cursor, to Keyframe, p float64) Cursor {
	p = easeInOut(p)
	return Cursor{
		X:       int(float64(from.X) + p*(float64(to.X)-float64(from.X))),
		Y:       int(float64(from.Y) + p*(float64(to.Y)-float64(from.Y))),
		Shape:   to.Shape,
		Visible: true,
	}
}

// easeInOut provides smooth acceleration and deceleration
func easeInOut(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - math.Pow(-2*t+2, 2)/2
}

// Apply returns copies of frames with the matching cursor drawn on each.
// Frames without a cursor entry are returned as they are.
func Apply(frames []image.Image, cursors []Cursor) []image.Image {
	result := make([]image.Image, len(frames))
	for i, frame := range frames {
		if i >= len(cursors) || !cursors[i].Visible {
			result[i] = frame
			continue
		}
		result[i] = drawCursorOnFrame(frame, cursors[i])
	}
	return result
}

// drawCursorOnFrame creates a new image with cursor overlay
func drawCursorOnFrame(frame image.Image, c Cursor) *image.RGBA {
	bounds := frame.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, frame, bounds.Min, draw.Src)

	if c.Pressed {
		drawClickRipple(result, c.X, c.Y)
	}
	switch c.Shape {
	case ShapeText:
		drawCaret(result, c.X, c.Y)
	default:
		drawArrow(result, c.X, c.Y)
	}
	return result
}

var (
	outline = color.RGBA{0, 0, 0, 255}
	fill    = color.RGBA{255, 255, 255, 255}
)

// drawArrow draws a simple arrow pointer with its tip at (x, y)
func drawArrow(img *image.RGBA, x, y int) {
	points := []image.Point{
		{0, 0},
		{0, 16},
		{4, 12},
		{7, 18},
		{10, 17},
		{7, 11},
		{12, 11},
	}

	for dy := 0; dy < 18; dy++ {
		for dx := 0; dx < 13; dx++ {
			if insideArrow(dx, dy) {
				setPixelSafe(img, x+dx, y+dy, fill)
			}
		}
	}

	for i := range points {
		p1 := points[i]
		p2 := points[(i+1)%len(points)]
		drawLine(img, x+p1.X, y+p1.Y, x+p2.X, y+p2.Y, outline)
	}
}

// drawCaret draws an I-beam centred on (x, y)
func drawCaret(img *image.RGBA, x, y int) {
	drawLine(img, x, y-8, x, y+8, outline)
	drawLine(img, x-3, y-8, x+3, y-8, outline)
	drawLine(img, x-3, y+8, x+3, y+8, outline)
}

func insideArrow(dx, dy int) bool {
	switch {
	case dy < 0 || dy > 16 || dx < 0:
		return false
	case dy <= 11:
		return dx <= dy*12/16
	default:
		return dx <= 4
	}
}

// drawLine draws a line between two points using Bresenham's algorithm
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy

	for {
		setPixelSafe(img, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// drawClickRipple draws two concentric rings around the click point
func drawClickRipple(img *image.RGBA, x, y int) {
	ripple := color.RGBA{66, 133, 244, 255}
	for _, radius := range []int{10, 16} {
		for angle := 0.0; angle < 360; angle++ {
			rad := angle * math.Pi / 180
			px := x + int(float64(radius)*math.Cos(rad))
			py := y + int(float64(radius)*math.Sin(rad))
			setPixelSafe(img, px, py, ripple)
			setPixelSafe(img, px+1, py, ripple)
		}
	}
}

func setPixelSafe(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{x, y}).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
