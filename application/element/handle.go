// Package element implements the Element Handle: a selector bound to a driver
// that re-resolves its node on every operation.
package element

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"shopflow/domain/entities"
	"shopflow/domain/errs"
	"shopflow/domain/interfaces"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout applies to display, existence and text waits.
	DefaultTimeout = 10 * time.Second
	// DefaultEnabledTimeout applies to WaitForEnabled and the waits built on it.
	DefaultEnabledTimeout = 5 * time.Second
)

// clipboardModifier is the key held down for paste shortcuts.
var clipboardModifier = modifierFor(runtime.GOOS)

func modifierFor(goos string) string {
	if goos == "darwin" {
		return "Meta"
	}
	return "Control"
}

// Handle wraps a single selector. It holds no reference to a resolved node.
type Handle struct {
	driver   interfaces.Driver
	selector entities.Selector
	name     string
	log      logrus.FieldLogger
}

// Option configures a Handle.
type Option func(*Handle)

// WithLogger attaches a logger used for debug tracing of handle operations.
func WithLogger(log logrus.FieldLogger) Option {
	return func(h *Handle) {
		if log != nil {
			h.log = log
		}
	}
}

// New creates a handle for selector. The name is used only in diagnostics.
func New(driver interfaces.Driver, selector entities.Selector, name string, opts ...Option) (*Handle, error) {
	if selector == "" {
		return nil, errs.New(errs.InvalidArgument, "element handle requires a non-empty selector")
	}
	if driver == nil {
		return nil, errs.New(errs.InvalidArgument, "element handle requires a driver")
	}

	h := &Handle{
		driver:   driver,
		selector: selector,
		name:     name,
		log:      discardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.WithFields(logrus.Fields{"element": name, "selector": string(selector)})
	return h, nil
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Selector returns the handle's selector.
func (h *Handle) Selector() entities.Selector { return h.selector }

// Name returns the handle's display name, possibly empty.
func (h *Handle) Name() string { return h.name }

func (h *Handle) String() string {
	if h.name == "" {
		return fmt.Sprintf("%q", string(h.selector))
	}
	return fmt.Sprintf("%q (%s)", h.name, h.selector)
}

// Element resolves the live node for the handle's selector.
func (h *Handle) Element(ctx context.Context) (interfaces.Node, error) {
	node, err := h.driver.Find(ctx, h.selector)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve element %s: %w", h, err)
	}
	return node, nil
}

// IsDisplayed reports whether the element is visible on the page.
func (h *Handle) IsDisplayed(ctx context.Context) (bool, error) {
	node, err := h.Element(ctx)
	if err != nil {
		return false, err
	}
	return node.IsDisplayed(ctx)
}

// IsExisting reports whether the element is present in the DOM.
func (h *Handle) IsExisting(ctx context.Context) (bool, error) {
	node, err := h.Element(ctx)
	if err != nil {
		return false, err
	}
	return node.Exists(ctx)
}

// IsEnabled reports whether the element is enabled.
func (h *Handle) IsEnabled(ctx context.Context) (bool, error) {
	node, err := h.Element(ctx)
	if err != nil {
		return false, err
	}
	return node.IsEnabled(ctx)
}

// IsSelected reports whether a checkbox, radio button or option is selected.
func (h *Handle) IsSelected(ctx context.Context) (bool, error) {
	node, err := h.Element(ctx)
	if err != nil {
		return false, err
	}
	return node.IsSelected(ctx)
}

// IsDisplayedInViewport reports whether the element is visible inside the viewport.
func (h *Handle) IsDisplayedInViewport(ctx context.Context) (bool, error) {
	node, err := h.Element(ctx)
	if err != nil {
		return false, err
	}
	return node.IsDisplayedInViewport(ctx)
}

// IsDisabled reports true when the element carries a disabled attribute or a
// class name containing "disabled".
func (h *Handle) IsDisabled(ctx context.Context) (bool, error) {
	node, err := h.Element(ctx)
	if err != nil {
		return false, err
	}
	_, disabled, err := node.Attribute(ctx, "disabled")
	if err != nil {
		return false, err
	}
	if disabled {
		return true, nil
	}
	class, _, err := node.Attribute(ctx, "class")
	if err != nil {
		return false, err
	}
	return strings.Contains(class, "disabled"), nil
}

// Attribute returns the named DOM attribute and whether it is present.
func (h *Handle) Attribute(ctx context.Context, name string) (string, bool, error) {
	node, err := h.Element(ctx)
	if err != nil {
		return "", false, err
	}
	return node.Attribute(ctx, name)
}

// CSSProperty returns the computed value of a CSS property.
func (h *Handle) CSSProperty(ctx context.Context, property string) (string, error) {
	node, err := h.Element(ctx)
	if err != nil {
		return "", err
	}
	return node.CSSProperty(ctx, property)
}

// Location returns the element's position on the page.
func (h *Handle) Location(ctx context.Context) (entities.Location, error) {
	node, err := h.Element(ctx)
	if err != nil {
		return entities.Location{}, err
	}
	return node.Location(ctx)
}

// Text waits for the element to be displayed and returns its visible text.
func (h *Handle) Text(ctx context.Context) (string, error) {
	if err := h.WaitForDisplayed(ctx); err != nil {
		return "", err
	}
	node, err := h.Element(ctx)
	if err != nil {
		return "", err
	}
	return node.Text(ctx)
}

// Texts returns the text of every element matching the selector.
func (h *Handle) Texts(ctx context.Context) ([]string, error) {
	nodes, err := h.driver.FindAll(ctx, h.selector)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve elements %s: %w", h, err)
	}
	texts := make([]string, 0, len(nodes))
	for _, node := range nodes {
		text, err := node.Text(ctx)
		if err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	return texts, nil
}

// Count returns the number of elements matching the selector.
func (h *Handle) Count(ctx context.Context) (int, error) {
	nodes, err := h.driver.FindAll(ctx, h.selector)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve elements %s: %w", h, err)
	}
	return len(nodes), nil
}

// FirstText returns the text of the first match without waiting for display.
func (h *Handle) FirstText(ctx context.Context) (string, error) {
	nodes, err := h.driver.FindAll(ctx, h.selector)
	if err != nil {
		return "", fmt.Errorf("failed to resolve elements %s: %w", h, err)
	}
	if len(nodes) == 0 {
		return "", errs.New(errs.NotFound, fmt.Sprintf("no element matches %s", h))
	}
	return nodes[0].Text(ctx)
}

// Click waits until the element is enabled and clicks it.
func (h *Handle) Click(ctx context.Context) error {
	if err := h.WaitForEnabled(ctx); err != nil {
		return err
	}
	node, err := h.Element(ctx)
	if err != nil {
		return err
	}
	h.log.Debug("click")
	return node.Click(ctx)
}

// DoubleClick double-clicks the element.
func (h *Handle) DoubleClick(ctx context.Context) error {
	node, err := h.Element(ctx)
	if err != nil {
		return err
	}
	h.log.Debug("double click")
	return node.DoubleClick(ctx)
}

// SetValue waits until the element is enabled and replaces its value.
func (h *Handle) SetValue(ctx context.Context, value string) error {
	node, err := h.Element(ctx)
	if err != nil {
		return err
	}
	if err := h.WaitForEnabled(ctx); err != nil {
		return err
	}
	h.log.WithField("value", value).Debug("set value")
	return node.SetValue(ctx, value)
}

// AddValue waits until the element is enabled and appends to its value.
func (h *Handle) AddValue(ctx context.Context, value string) error {
	node, err := h.Element(ctx)
	if err != nil {
		return err
	}
	if err := h.WaitForEnabled(ctx); err != nil {
		return err
	}
	h.log.WithField("value", value).Debug("add value")
	return node.AddValue(ctx, value)
}

// ClearValue clears the element's value.
func (h *Handle) ClearValue(ctx context.Context) error {
	node, err := h.Element(ctx)
	if err != nil {
		return err
	}
	return node.ClearValue(ctx)
}

// MoveTo moves the mouse over the element, offset from its center.
func (h *Handle) MoveTo(ctx context.Context, xOffset, yOffset int) error {
	node, err := h.Element(ctx)
	if err != nil {
		return err
	}
	return node.MoveTo(ctx, xOffset, yOffset)
}

// Hover moves the mouse to the element's center.
func (h *Handle) Hover(ctx context.Context) error {
	return h.MoveTo(ctx, 0, 0)
}

// ScrollIntoView scrolls the element into the visible area.
func (h *Handle) ScrollIntoView(ctx context.Context) error {
	node, err := h.Element(ctx)
	if err != nil {
		return err
	}
	return node.ScrollIntoView(ctx)
}

// PasteFromClipboard focuses the element and sends the platform paste chord
// (Meta+V on macOS, Control+V elsewhere).
func (h *Handle) PasteFromClipboard(ctx context.Context) error {
	if err := h.Raw().Focus(ctx); err != nil {
		return err
	}
	h.log.WithField("modifier", clipboardModifier).Debug("paste from clipboard")
	return h.driver.PressChord(ctx, clipboardModifier, "v")
}
