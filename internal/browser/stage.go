package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/v0xg/demotour/internal/stage"
)

const markerStyleScript = `(() => {
	const install = () => {
		if (document.getElementById('demotour-marker-style')) return;
		const style = document.createElement('style');
		style.id = 'demotour-marker-style';
		style.textContent = '.` + stage.MarkerClass + ` { outline: 3px solid #f59e0b; outline-offset: 4px; border-radius: 4px; transition: outline-color .2s; }';
		document.head.appendChild(style);
	};
	if (document.head) install(); else document.addEventListener('DOMContentLoaded', install);
})()`

// isTextEntry mirrors the element kinds whose value a user can type into.
const isTextEntry = `function() {
	const tag = this.tagName.toLowerCase();
	if (tag === 'textarea') return !this.readOnly && !this.disabled;
	if (tag === 'input') {
		const type = (this.type || 'text').toLowerCase();
		const ok = ['text', 'email', 'password', 'search', 'tel', 'url', 'number', ''];
		return ok.includes(type) && !this.readOnly && !this.disabled;
	}
	return this.isContentEditable === true;
}`

// setValue goes through the native setter so framework-controlled inputs see the change.
const setValue = `function(text) {
	if (this.isContentEditable) {
		this.textContent = text;
	} else {
		const proto = this.tagName.toLowerCase() === 'textarea'
			? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
		const setter = Object.getOwnPropertyDescriptor(proto, 'value').set;
		setter.call(this, text);
	}
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
}`

// element is a resolved page element.
type element struct {
	selector string
	el       *rod.Element
}

func (e *element) Selector() string { return e.selector }

// Stage is the go-rod implementation of stage.Stage.
type Stage struct {
	b *Browser

	// NavigateTimeout bounds a single navigation (default 30s).
	NavigateTimeout time.Duration
}

var (
	_ stage.Stage         = (*Stage)(nil)
	_ stage.Locator       = (*Stage)(nil)
	_ stage.Screenshotter = (*Stage)(nil)
)

// Stage returns the stage backed by this browser's page.
func (b *Browser) Stage() *Stage {
	return &Stage{b: b, NavigateTimeout: 30 * time.Second}
}

func (s *Stage) Query(selector string) (stage.Element, error) {
	has, el, err := s.b.page.Has(selector)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}
	if !has {
		return nil, fmt.Errorf("%s: %w", selector, stage.ErrNotFound)
	}
	return &element{selector: selector, el: el}, nil
}

func (s *Stage) Mark(el stage.Element) error {
	e, err := s.handle(el)
	if err != nil {
		return err
	}
	_, err = e.el.Eval(`function(cls) { this.classList.add(cls) }`, stage.MarkerClass)
	return err
}

func (s *Stage) UnmarkAll() error {
	_, err := s.b.page.Eval(`(cls) => {
		document.querySelectorAll('.' + cls).forEach(el => el.classList.remove(cls));
	}`, stage.MarkerClass)
	return err
}

func (s *Stage) ScrollIntoView(el stage.Element) error {
	e, err := s.handle(el)
	if err != nil {
		return err
	}
	_, err = e.el.Eval(`function() { this.scrollIntoView({ behavior: 'smooth', block: 'center' }) }`)
	return err
}

func (s *Stage) Activate(el stage.Element) error {
	e, err := s.handle(el)
	if err != nil {
		return err
	}
	res, err := e.el.Eval(`function() { return typeof this.click === 'function' }`)
	if err != nil {
		return err
	}
	if !res.Value.Bool() {
		return fmt.Errorf("%s: %w", e.selector, stage.ErrNotActivatable)
	}
	if err := e.el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		// Covered or zero-sized elements cannot take a pointer click; fall back to a DOM click.
		if _, evalErr := e.el.Eval(`function() { this.click() }`); evalErr != nil {
			return errors.Join(err, evalErr)
		}
	}
	return nil
}

func (s *Stage) Focus(el stage.Element) error {
	e, err := s.handle(el)
	if err != nil {
		return err
	}
	return e.el.Focus()
}

func (s *Stage) SetText(el stage.Element, text string) error {
	e, err := s.handle(el)
	if err != nil {
		return err
	}
	res, err := e.el.Eval(isTextEntry)
	if err != nil {
		return err
	}
	if !res.Value.Bool() {
		return fmt.Errorf("%s: %w", e.selector, stage.ErrNotTextEntry)
	}
	_, err = e.el.Eval(setValue, text)
	return err
}

// Navigate loads route, resolved against the base URL, and waits for the page to settle.
func (s *Stage) Navigate(ctx context.Context, route string) error {
	target, err := resolve(s.b.base, route)
	if err != nil {
		return err
	}
	if s.NavigateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.NavigateTimeout)
		defer cancel()
	}
	if err := s.b.page.Context(ctx).Navigate(target); err != nil {
		return err
	}
	s.b.settle(ctx)
	return ctx.Err()
}

// Center returns the centre of the element's first content quad in viewport pixels.
func (s *Stage) Center(el stage.Element) (int, int, error) {
	e, err := s.handle(el)
	if err != nil {
		return 0, 0, err
	}
	box, err := e.el.Shape()
	if err != nil {
		return 0, 0, err
	}
	if len(box.Quads) == 0 {
		return 0, 0, fmt.Errorf("element has no shape: %s", e.selector)
	}

	quad := box.Quads[0]
	x := (quad[0] + quad[2] + quad[4] + quad[6]) / 4
	y := (quad[1] + quad[3] + quad[5] + quad[7]) / 4
	return int(x), int(y), nil
}

// Screenshot captures the viewport as PNG.
func (s *Stage) Screenshot() ([]byte, error) {
	return s.b.page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (s *Stage) handle(el stage.Element) (*element, error) {
	e, ok := el.(*element)
	if !ok || e.el == nil {
		return nil, fmt.Errorf("foreign element handle %T", el)
	}
	return e, nil
}
