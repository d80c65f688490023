// Package fakedriver is an in-memory interfaces.Driver for unit tests. Elements
// are registered under the selector that finds them; nodes resolve lazily, so
// mutations made after a lookup are observed by later calls.
package fakedriver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"shopflow/domain/entities"
	"shopflow/domain/errs"
	"shopflow/domain/interfaces"
)

// Element is a fake DOM node. Fields must only be changed through Driver.Update
// or Driver.After once the driver is in use.
type Element struct {
	Text         string
	Value        string
	Displayed    bool
	Enabled      bool
	Selected     bool
	InViewport   bool
	Focused      bool
	Attributes   map[string]string
	CSS          map[string]string
	Style        map[string]string
	Location     entities.Location
	ScrollHeight int
	ScrollTop    int

	// OnClick runs with the driver lock held; it may mutate elements directly.
	OnClick func()

	children map[entities.Selector][]*Element
	frame    map[entities.Selector][]*Element
	parent   *Element
}

// NewElement returns a displayed, enabled element with the given text.
func NewElement(text string) *Element {
	return &Element{
		Text:       text,
		Displayed:  true,
		Enabled:    true,
		InViewport: true,
		Attributes: map[string]string{},
		CSS:        map[string]string{},
		Style:      map[string]string{},
	}
}

// SetChildren registers els as matches of selector below e.
func (e *Element) SetChildren(selector entities.Selector, els ...*Element) *Element {
	if e.children == nil {
		e.children = map[entities.Selector][]*Element{}
	}
	for _, el := range els {
		el.parent = e
	}
	e.children[selector] = els
	return e
}

// SetFrameContent makes e an iframe whose document holds els under selector.
func (e *Element) SetFrameContent(selector entities.Selector, els ...*Element) *Element {
	if e.frame == nil {
		e.frame = map[entities.Selector][]*Element{}
	}
	e.frame[selector] = els
	return e
}

// Call is a recorded driver interaction.
type Call struct {
	Op       string
	Selector entities.Selector
	Args     []string
}

// Driver is the fake browser.
type Driver struct {
	mu           sync.Mutex
	url          string
	document     map[entities.Selector][]*Element
	frames       []map[entities.Selector][]*Element
	calls        []Call
	pollInterval time.Duration

	// Clipboard is appended to the focused element's value on a paste chord.
	Clipboard string
}

// New returns an empty fake driver.
func New() *Driver {
	return &Driver{
		document:     map[entities.Selector][]*Element{},
		pollInterval: 5 * time.Millisecond,
	}
}

var _ interfaces.Driver = (*Driver)(nil)

// Set registers els as the top-level matches of selector.
func (d *Driver) Set(selector entities.Selector, els ...*Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.document[selector] = els
}

// Remove drops every top-level match of selector.
func (d *Driver) Remove(selector entities.Selector) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.document, selector)
}

// Update runs fn with the driver lock held.
func (d *Driver) Update(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

// After runs fn under the driver lock once delay has elapsed.
func (d *Driver) After(delay time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(delay, func() { d.Update(fn) })
}

// Calls returns a copy of the recorded interactions.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

// Ops returns the recorded operation names in order.
func (d *Driver) Ops() []string {
	calls := d.Calls()
	ops := make([]string, len(calls))
	for i, c := range calls {
		ops[i] = c.Op
	}
	return ops
}

func (d *Driver) record(op string, selector entities.Selector, args ...string) {
	d.calls = append(d.calls, Call{Op: op, Selector: selector, Args: args})
}

func (d *Driver) Name() string { return "fake" }

func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("navigate", "", url)
	d.url = url
	d.frames = nil
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

// scope returns the document of the current frame. Callers hold the lock.
func (d *Driver) scope() map[entities.Selector][]*Element {
	if n := len(d.frames); n > 0 {
		return d.frames[n-1]
	}
	return d.document
}

func (d *Driver) Find(ctx context.Context, selector entities.Selector) (interfaces.Node, error) {
	d.mu.Lock()
	scope := d.scope()
	d.mu.Unlock()
	return &node{d: d, selector: selector, resolve: func() (*Element, error) {
		return pick(scope[selector], 0, selector)
	}}, nil
}

func (d *Driver) FindAll(ctx context.Context, selector entities.Selector) ([]interfaces.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	scope := d.scope()
	matches := scope[selector]
	nodes := make([]interfaces.Node, len(matches))
	for i := range matches {
		idx := i
		nodes[i] = &node{d: d, selector: selector, resolve: func() (*Element, error) {
			return pick(scope[selector], idx, selector)
		}}
	}
	return nodes, nil
}

func pick(els []*Element, idx int, selector entities.Selector) (*Element, error) {
	if idx >= len(els) {
		return nil, errs.New(errs.NotFound, fmt.Sprintf("no element matches %q", selector))
	}
	return els[idx], nil
}

func (d *Driver) WaitUntil(ctx context.Context, cond interfaces.Condition, timeout time.Duration, message string) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return errs.New(errs.Timeout, message)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.pollInterval):
		}
	}
}

func (d *Driver) PressChord(ctx context.Context, modifier, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("chord", "", modifier, key)
	if strings.EqualFold(key, "v") && d.Clipboard != "" {
		for _, els := range d.scope() {
			for _, el := range els {
				if el.Focused {
					el.Value += d.Clipboard
				}
			}
		}
	}
	return nil
}

func (d *Driver) SwitchToFrame(ctx context.Context, selector entities.Selector) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, err := pick(d.scope()[selector], 0, selector)
	if err != nil {
		return err
	}
	if el.frame == nil {
		return errs.New(errs.InvalidArgument, fmt.Sprintf("element %q is not a frame", selector))
	}
	d.record("frame", selector)
	d.frames = append(d.frames, el.frame)
	return nil
}

func (d *Driver) SwitchToParentFrame(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("parent_frame", "")
	if len(d.frames) > 0 {
		d.frames = d.frames[:len(d.frames)-1]
	}
	return nil
}

// FrameDepth returns how many frames deep the driver currently is.
func (d *Driver) FrameDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.frames)
}

func (d *Driver) Close() error { return nil }
