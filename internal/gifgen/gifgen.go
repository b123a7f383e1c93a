// Package gifgen encodes recorded tour frames as an animated GIF.
package gifgen

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"sort"

	"github.com/nfnt/resize"
)

// ErrNoFrames is returned when there is nothing to encode.
var ErrNoFrames = errors.New("no frames to encode")

// Options configures GIF generation
type Options struct {
	FPS      int
	MaxWidth uint // Frames wider than this are scaled down (default 800)
}

func (o Options) withDefaults() Options {
	if o.FPS <= 0 {
		o.FPS = 10
	}
	if o.MaxWidth == 0 {
		o.MaxWidth = 800
	}
	return o
}

// Encode writes frames to w as a looping GIF
func Encode(w io.Writer, frames []image.Image, opts Options) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	opts = opts.withDefaults()

	// Delay is in 100ths of a second
	delay := max(100/opts.FPS, 1)

	width, height := outputSize(frames[0].Bounds(), opts.MaxWidth)
	palette := generatePalette(samples(frames))

	g := &gif.GIF{
		Image:     make([]*image.Paletted, len(frames)),
		Delay:     make([]int, len(frames)),
		LoopCount: 0,
	}

	for i, frame := range frames {
		scaled := frame
		if b := frame.Bounds(); uint(b.Dx()) != width || uint(b.Dy()) != height {
			scaled = resize.Resize(width, height, frame, resize.Lanczos3)
		}

		paletted := image.NewPaletted(image.Rect(0, 0, int(width), int(height)), palette)
		draw.FloydSteinberg.Draw(paletted, paletted.Bounds(), scaled, scaled.Bounds().Min)

		g.Image[i] = paletted
		g.Delay[i] = delay
	}

	return gif.EncodeAll(w, g)
}

// WriteFile encodes frames into outputPath and returns the file size
func WriteFile(outputPath string, frames []image.Image, opts Options) (int64, error) {
	f, err := os.Create(outputPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := Encode(f, frames, opts); err != nil {
		return 0, fmt.Errorf("encode %s: %w", outputPath, err)
	}

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// outputSize keeps the aspect ratio and never scales up
func outputSize(b image.Rectangle, maxWidth uint) (uint, uint) {
	w := uint(b.Dx())
	if w <= maxWidth {
		return w, uint(b.Dy())
	}
	h := uint(float64(maxWidth) * float64(b.Dy()) / float64(b.Dx()))
	return maxWidth, max(h, 1)
}

// samples picks the first, middle and last frame for palette building
func samples(frames []image.Image) []image.Image {
	if len(frames) <= 3 {
		return frames
	}
	return []image.Image{frames[0], frames[len(frames)/2], frames[len(frames)-1]}
}

// generatePalette creates a 256-color palette from the most frequent sampled colors
func generatePalette(imgs []image.Image) color.Palette {
	colorMap := make(map[color.RGBA]int)

	// Sample every 4th pixel for performance
	const step = 4
	for _, img := range imgs {
		bounds := img.Bounds()
		for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
			for x := bounds.Min.X; x < bounds.Max.X; x += step {
				r, g, b, _ := img.At(x, y).RGBA()
				colorMap[color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255}]++
			}
		}
	}

	type colorCount struct {
		c     color.RGBA
		count int
	}
	colors := make([]colorCount, 0, len(colorMap))
	for c, count := range colorMap {
		colors = append(colors, colorCount{c, count})
	}
	sort.Slice(colors, func(i, j int) bool {
		if colors[i].count != colors[j].count {
			return colors[i].count > colors[j].count
		}
		a, b := colors[i].c, colors[j].c
		return uint32(a.R)<<16|uint32(a.G)<<8|uint32(a.B) < uint32(b.R)<<16|uint32(b.G)<<8|uint32(b.B)
	})

	palette := make(color.Palette, 0, 256)
	for i := 0; i < len(colors) && len(palette) < 256; i++ {
		palette = append(palette, colors[i].c)
	}

	// Pad with grayscale
	for len(palette) < 256 {
		gray := uint8(len(palette))
		palette = append(palette, color.RGBA{gray, gray, gray, 255})
	}

	return palette
}
