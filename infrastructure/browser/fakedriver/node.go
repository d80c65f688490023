package fakedriver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shopflow/domain/entities"
	"shopflow/domain/errs"
	"shopflow/domain/interfaces"
)

type node struct {
	d        *Driver
	selector entities.Selector
	resolve  func() (*Element, error)
}

var _ interfaces.Node = (*node)(nil)

// with resolves the element and runs fn under the driver lock.
func (n *node) with(fn func(el *Element) error) error {
	n.d.mu.Lock()
	defer n.d.mu.Unlock()
	el, err := n.resolve()
	if err != nil {
		return err
	}
	return fn(el)
}

func (n *node) act(op string, fn func(el *Element), args ...string) error {
	return n.with(func(el *Element) error {
		n.d.record(op, n.selector, args...)
		fn(el)
		return nil
	})
}

func (n *node) Exists(ctx context.Context) (bool, error) {
	n.d.mu.Lock()
	defer n.d.mu.Unlock()
	_, err := n.resolve()
	return err == nil, nil
}

func (n *node) IsDisplayed(ctx context.Context) (bool, error) {
	n.d.mu.Lock()
	defer n.d.mu.Unlock()
	el, err := n.resolve()
	if err != nil {
		return false, nil
	}
	return el.Displayed, nil
}

func (n *node) IsDisplayedInViewport(ctx context.Context) (bool, error) {
	n.d.mu.Lock()
	defer n.d.mu.Unlock()
	el, err := n.resolve()
	if err != nil {
		return false, nil
	}
	return el.Displayed && el.InViewport, nil
}

func (n *node) IsEnabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := n.with(func(el *Element) error {
		enabled = el.Enabled
		return nil
	})
	return enabled, err
}

func (n *node) IsSelected(ctx context.Context) (bool, error) {
	var selected bool
	err := n.with(func(el *Element) error {
		selected = el.Selected
		return nil
	})
	return selected, err
}

func (n *node) Text(ctx context.Context) (string, error) {
	var text string
	err := n.with(func(el *Element) error {
		text = el.Text
		return nil
	})
	return text, err
}

func (n *node) Attribute(ctx context.Context, name string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := n.with(func(el *Element) error {
		value, ok = el.Attributes[name]
		return nil
	})
	return value, ok, err
}

func (n *node) CSSProperty(ctx context.Context, name string) (string, error) {
	var value string
	err := n.with(func(el *Element) error {
		value = el.CSS[name]
		return nil
	})
	return value, err
}

func (n *node) Location(ctx context.Context) (entities.Location, error) {
	var loc entities.Location
	err := n.with(func(el *Element) error {
		loc = el.Location
		return nil
	})
	return loc, err
}

// Click runs OnClick, then follows an href attribute like a link would.
func (n *node) Click(ctx context.Context) error {
	return n.act("click", func(el *Element) {
		if el.OnClick != nil {
			el.OnClick()
		}
		if href, ok := el.Attributes["href"]; ok && href != "" {
			n.d.url = href
			n.d.frames = nil
		}
	})
}

func (n *node) DoubleClick(ctx context.Context) error {
	return n.act("double_click", func(el *Element) {})
}

func (n *node) SetValue(ctx context.Context, value string) error {
	return n.act("set_value", func(el *Element) { el.Value = value }, value)
}

func (n *node) AddValue(ctx context.Context, value string) error {
	return n.act("add_value", func(el *Element) { el.Value += value }, value)
}

func (n *node) ClearValue(ctx context.Context) error {
	return n.act("clear_value", func(el *Element) { el.Value = "" })
}

func (n *node) MoveTo(ctx context.Context, xOffset, yOffset int) error {
	return n.act("move_to", func(el *Element) {}, fmt.Sprint(xOffset), fmt.Sprint(yOffset))
}

func (n *node) ScrollIntoView(ctx context.Context) error {
	return n.act("scroll_into_view", func(el *Element) { el.InViewport = true })
}

func (n *node) satisfied(state interfaces.WaitState) (bool, error) {
	n.d.mu.Lock()
	defer n.d.mu.Unlock()
	el, err := n.resolve()
	exists := err == nil
	switch state {
	case interfaces.StateAttached:
		return exists, nil
	case interfaces.StateDetached:
		return !exists, nil
	case interfaces.StateDisplayed:
		return exists && el.Displayed, nil
	case interfaces.StateHidden:
		return !exists || !el.Displayed, nil
	case interfaces.StateEnabled:
		return exists && el.Enabled, nil
	}
	return false, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown wait state %q", state))
}

func (n *node) WaitFor(ctx context.Context, state interfaces.WaitState, timeout time.Duration) error {
	n.d.mu.Lock()
	n.d.record("wait_"+string(state), n.selector)
	n.d.mu.Unlock()

	msg := fmt.Sprintf("timeout %v waiting for %q to be %s", timeout, n.selector, state)
	return n.d.WaitUntil(ctx, func(context.Context) (bool, error) {
		return n.satisfied(state)
	}, timeout, msg)
}

// Execute emulates the handful of scripts the element package injects.
func (n *node) Execute(ctx context.Context, script string, args ...any) (any, error) {
	var result any
	err := n.with(func(el *Element) error {
		n.d.record("execute", n.selector, script)
		switch {
		case strings.Contains(script, "setAttribute") && len(args) == 2:
			el.Attributes[fmt.Sprint(args[0])] = fmt.Sprint(args[1])
		case strings.Contains(script, "el.style"):
			if styles, ok := args[0].(map[string]string); ok {
				for k, v := range styles {
					el.Style[k] = v
				}
			}
		case strings.Contains(script, "focus()"):
			el.Focused = true
		case strings.Contains(script, "click()"):
			if el.OnClick != nil {
				el.OnClick()
			}
		case strings.Contains(script, "scrollHeight"):
			result = el.ScrollHeight
		case strings.Contains(script, "scrollTop"):
			result = el.ScrollTop
		}
		return nil
	})
	return result, err
}

func (n *node) Parent(ctx context.Context) (interfaces.Node, error) {
	parentSelector := entities.Selector(string(n.selector) + "/..")
	return &node{d: n.d, selector: parentSelector, resolve: func() (*Element, error) {
		el, err := n.resolve()
		if err != nil {
			return nil, err
		}
		if el.parent == nil {
			return nil, errs.New(errs.NotFound, fmt.Sprintf("element %q has no parent", n.selector))
		}
		return el.parent, nil
	}}, nil
}

func (n *node) Find(ctx context.Context, selector entities.Selector) (interfaces.Node, error) {
	return &node{d: n.d, selector: selector, resolve: func() (*Element, error) {
		el, err := n.resolve()
		if err != nil {
			return nil, err
		}
		return pick(el.children[selector], 0, selector)
	}}, nil
}
