// Package stage abstracts the live page the demo engine drives.
//
// The playback executor is the only component that mutates a Stage. Implementations
// live in internal/browser (go-rod) and internal/stage/stagetest (in-memory fake).
package stage

import (
	"context"
	"errors"
)

// MarkerClass is the CSS class applied to the element being showcased.
// Its styling belongs to the host application's stylesheet.
const MarkerClass = "demo-highlight"

var (
	// ErrNotFound is returned by Query when no element matches the selector.
	ErrNotFound = errors.New("element not found")

	// ErrNotActivatable is returned by Activate for elements that cannot be clicked.
	ErrNotActivatable = errors.New("element is not activatable")

	// ErrNotTextEntry is returned by SetText for elements that do not accept text.
	ErrNotTextEntry = errors.New("element is not a text entry control")
)

// Element is an opaque handle to a resolved element.
type Element interface {
	// Selector is the selector the element was resolved from.
	Selector() string
}

// Stage is the set of page operations the executor performs.
type Stage interface {
	// Query resolves a selector, returning ErrNotFound when nothing matches.
	Query(selector string) (Element, error)

	// Mark adds MarkerClass to the element.
	Mark(el Element) error

	// UnmarkAll removes MarkerClass from every element carrying it.
	UnmarkAll() error

	// ScrollIntoView smoothly scrolls the element to the centre of the viewport.
	ScrollIntoView(el Element) error

	// Activate simulates a click, returning ErrNotActivatable when unsupported.
	Activate(el Element) error

	// Focus gives the element input focus.
	Focus(el Element) error

	// SetText replaces the element's value, returning ErrNotTextEntry when unsupported.
	SetText(el Element, text string) error

	// Navigate routes the page to route and waits for it to load.
	Navigate(ctx context.Context, route string) error
}

// Locator is implemented by stages that know where elements are on screen.
type Locator interface {
	Center(el Element) (x, y int, err error)
}

// Screenshotter is implemented by stages that can capture the viewport as PNG.
type Screenshotter interface {
	Screenshot() ([]byte, error)
}
