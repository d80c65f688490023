package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"shopflow/domain/entities"
	"shopflow/domain/errs"
	"shopflow/domain/interfaces"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
)

// RodDriver drives Chromium over the DevTools protocol. Queries use the
// non-retrying Elements/ElementsX calls so that resolution stays lazy and
// waiting is left to WaitFor.
type RodDriver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	logger   *logrus.Logger

	mu     sync.Mutex
	frames []entities.Selector
}

var _ interfaces.Driver = (*RodDriver)(nil)

// NewRodDriver - launches a local browser and opens a blank page
func NewRodDriver(opts Options) (*RodDriver, error) {
	logger := opts.logger()

	bin := findChromeBinary(opts.ChromeBinary)
	if bin == "" {
		bin, _ = launcher.LookPath()
	}
	l := launcher.New().Headless(opts.Headless).NoSandbox(true)
	if bin != "" {
		logger.Infof("Using Chrome binary at: %s", bin)
		l = l.Bin(bin)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if opts.SlowMo > 0 {
		browser = browser.SlowMotion(opts.SlowMo)
	}
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{Width: 1280, Height: 720, DeviceScaleFactor: 1}); err != nil {
		logger.Warnf("Failed to set viewport: %v", err)
	}

	return &RodDriver{
		launcher: l,
		browser:  browser,
		page:     page,
		logger:   logger,
	}, nil
}

func (d *RodDriver) Name() string { return "rod" }

func (d *RodDriver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	page := d.page.Context(ctx)
	d.frames = nil
	d.mu.Unlock()

	d.logger.Infof("Navigating to: %s", url)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for %s to load: %w", url, err)
	}
	return nil
}

func (d *RodDriver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	page := d.page.Context(ctx)
	d.mu.Unlock()
	info, err := page.Info()
	if err != nil {
		return "", fmt.Errorf("failed to read page info: %w", err)
	}
	return info.URL, nil
}

func queryPage(page *rod.Page, selector entities.Selector) (rod.Elements, error) {
	if selector.IsXPath() {
		return page.ElementsX(selector.XPath())
	}
	return page.Elements(string(selector))
}

func queryElement(el *rod.Element, selector entities.Selector) (rod.Elements, error) {
	if selector.IsXPath() {
		return el.ElementsX(relativeXPath(selector.XPath()))
	}
	return el.Elements(string(selector))
}

func relativeXPath(xpath string) string {
	if len(xpath) > 0 && xpath[0] == '/' {
		return "." + xpath
	}
	return xpath
}

// scope walks frames from the top document and returns the innermost frame's page
func (d *RodDriver) scope(ctx context.Context, frames []entities.Selector) (*rod.Page, error) {
	d.mu.Lock()
	page := d.page.Context(ctx)
	d.mu.Unlock()
	for _, f := range frames {
		els, err := queryPage(page, f)
		if err != nil {
			return nil, fmt.Errorf("failed to locate frame %q: %w", f, err)
		}
		if len(els) == 0 {
			return nil, notFound(f)
		}
		frame, err := els[0].Frame()
		if err != nil {
			return nil, fmt.Errorf("failed to enter frame %q: %w", f, err)
		}
		page = frame.Context(ctx)
	}
	return page, nil
}

func (d *RodDriver) currentFrames() []entities.Selector {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]entities.Selector(nil), d.frames...)
}

func (d *RodDriver) resolver(selector entities.Selector, frames []entities.Selector, idx int) func(context.Context) (*rod.Element, error) {
	return func(ctx context.Context) (*rod.Element, error) {
		page, err := d.scope(ctx, frames)
		if err != nil {
			return nil, err
		}
		els, err := queryPage(page, selector)
		if err != nil {
			return nil, err
		}
		if idx >= len(els) {
			return nil, notFound(selector)
		}
		return els[idx], nil
	}
}

func (d *RodDriver) Find(ctx context.Context, selector entities.Selector) (interfaces.Node, error) {
	frames := d.currentFrames()
	return &rodNode{d: d, selector: selector, frames: frames, resolve: d.resolver(selector, frames, 0)}, nil
}

func (d *RodDriver) FindAll(ctx context.Context, selector entities.Selector) ([]interfaces.Node, error) {
	frames := d.currentFrames()
	page, err := d.scope(ctx, frames)
	if err != nil {
		return nil, err
	}
	els, err := queryPage(page, selector)
	if err != nil {
		return nil, fmt.Errorf("failed to find %q: %w", selector, err)
	}
	nodes := make([]interfaces.Node, len(els))
	for i := range els {
		nodes[i] = &rodNode{d: d, selector: selector, frames: frames, resolve: d.resolver(selector, frames, i)}
	}
	return nodes, nil
}

func (d *RodDriver) WaitUntil(ctx context.Context, cond interfaces.Condition, timeout time.Duration, message string) error {
	return poll(ctx, cond, timeout, pollInterval, message)
}

var rodModifiers = map[string]input.Key{
	"Control": input.ControlLeft,
	"Meta":    input.MetaLeft,
	"Shift":   input.ShiftLeft,
	"Alt":     input.AltLeft,
}

func (d *RodDriver) PressChord(ctx context.Context, modifier, key string) error {
	mod, ok := rodModifiers[modifier]
	if !ok {
		return errs.New(errs.InvalidArgument, fmt.Sprintf("unsupported modifier %q", modifier))
	}
	if len(key) != 1 {
		return errs.New(errs.InvalidArgument, fmt.Sprintf("unsupported key %q", key))
	}
	d.mu.Lock()
	page := d.page.Context(ctx)
	d.mu.Unlock()
	if err := page.KeyActions().Press(mod).Type(input.Key(key[0])).Do(); err != nil {
		return fmt.Errorf("failed to press %s+%s: %w", modifier, key, err)
	}
	return nil
}

func (d *RodDriver) SwitchToFrame(ctx context.Context, selector entities.Selector) error {
	next := append(d.currentFrames(), selector)
	if _, err := d.scope(ctx, next); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = next
	return nil
}

func (d *RodDriver) SwitchToParentFrame(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.frames) > 0 {
		d.frames = d.frames[:len(d.frames)-1]
	}
	return nil
}

func (d *RodDriver) Close() error {
	var err error
	if d.browser != nil {
		err = d.browser.Close()
		d.browser = nil
	}
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher = nil
	}
	return err
}

type rodNode struct {
	d        *RodDriver
	selector entities.Selector
	frames   []entities.Selector
	resolve  func(context.Context) (*rod.Element, error)
}

var _ interfaces.Node = (*rodNode)(nil)

func (n *rodNode) element(ctx context.Context) (*rod.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	el, err := n.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return el.Context(ctx), nil
}

func (n *rodNode) Exists(ctx context.Context) (bool, error) {
	_, err := n.element(ctx)
	if errs.Is(err, errs.NotFound) {
		return false, nil
	}
	return err == nil, err
}

func (n *rodNode) IsDisplayed(ctx context.Context) (bool, error) {
	el, err := n.element(ctx)
	if errs.Is(err, errs.NotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return el.Visible()
}

func (n *rodNode) IsDisplayedInViewport(ctx context.Context) (bool, error) {
	visible, err := n.IsDisplayed(ctx)
	if err != nil || !visible {
		return false, err
	}
	v, err := n.Execute(ctx, inViewportScript)
	if err != nil {
		return false, err
	}
	in, _ := v.(bool)
	return in, nil
}

func (n *rodNode) IsEnabled(ctx context.Context) (bool, error) {
	el, err := n.element(ctx)
	if err != nil {
		return false, err
	}
	disabled, err := el.Disabled()
	return !disabled, err
}

func (n *rodNode) IsSelected(ctx context.Context) (bool, error) {
	v, err := n.Execute(ctx, selectedScript)
	if err != nil {
		return false, err
	}
	selected, _ := v.(bool)
	return selected, nil
}

func (n *rodNode) Text(ctx context.Context) (string, error) {
	el, err := n.element(ctx)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (n *rodNode) Attribute(ctx context.Context, name string) (string, bool, error) {
	el, err := n.element(ctx)
	if err != nil {
		return "", false, err
	}
	value, err := el.Attribute(name)
	if err != nil || value == nil {
		return "", false, err
	}
	return *value, true, nil
}

func (n *rodNode) CSSProperty(ctx context.Context, name string) (string, error) {
	v, err := n.Execute(ctx, cssScript, name)
	if err != nil {
		return "", err
	}
	return stringResult(v), nil
}

func (n *rodNode) Location(ctx context.Context) (entities.Location, error) {
	v, err := n.Execute(ctx, locationScript)
	if err != nil {
		return entities.Location{}, err
	}
	return decodeLocation(v)
}

func (n *rodNode) Click(ctx context.Context) error {
	el, err := n.element(ctx)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (n *rodNode) DoubleClick(ctx context.Context) error {
	el, err := n.element(ctx)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 2)
}

func (n *rodNode) SetValue(ctx context.Context, value string) error {
	el, err := n.element(ctx)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("failed to select text of %q: %w", n.selector, err)
	}
	return el.Input(value)
}

func (n *rodNode) AddValue(ctx context.Context, value string) error {
	if _, err := n.Execute(ctx, `(el) => {
		el.focus();
		if (typeof el.setSelectionRange === 'function' && typeof el.value === 'string') {
			el.setSelectionRange(el.value.length, el.value.length);
		}
	}`); err != nil {
		return err
	}
	el, err := n.element(ctx)
	if err != nil {
		return err
	}
	return el.Input(value)
}

func (n *rodNode) ClearValue(ctx context.Context) error {
	el, err := n.element(ctx)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("failed to select text of %q: %w", n.selector, err)
	}
	return el.Input("")
}

// MoveTo moves the mouse to an offset from the element's center
func (n *rodNode) MoveTo(ctx context.Context, xOffset, yOffset int) error {
	el, err := n.element(ctx)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("failed to scroll to %q: %w", n.selector, err)
	}
	v, err := n.Execute(ctx, centerScript)
	if err != nil {
		return err
	}
	x, y, err := decodePoint(v)
	if err != nil {
		return err
	}
	origins, err := n.d.frameOrigins(ctx, n.frames)
	if err != nil {
		return err
	}
	n.d.mu.Lock()
	page := n.d.page.Context(ctx)
	n.d.mu.Unlock()
	return page.Mouse.MoveTo(targetPoint(proto.Point{X: x, Y: y}, origins, xOffset, yOffset))
}

// frameOriginScript returns the top-left of an iframe's content box in its
// parent document's viewport.
const frameOriginScript = `function() {
	const r = this.getBoundingClientRect();
	return { x: r.left + this.clientLeft, y: r.top + this.clientTop };
}`

// frameOrigins returns the content origin of every iframe in frames, outermost first.
func (d *RodDriver) frameOrigins(ctx context.Context, frames []entities.Selector) ([]proto.Point, error) {
	d.mu.Lock()
	page := d.page.Context(ctx)
	d.mu.Unlock()
	origins := make([]proto.Point, 0, len(frames))
	for _, f := range frames {
		els, err := queryPage(page, f)
		if err != nil {
			return nil, fmt.Errorf("failed to locate frame %q: %w", f, err)
		}
		if len(els) == 0 {
			return nil, notFound(f)
		}
		res, err := els[0].Eval(frameOriginScript)
		if err != nil {
			return nil, fmt.Errorf("failed to measure frame %q: %w", f, err)
		}
		x, y, err := decodePoint(res.Value.Val())
		if err != nil {
			return nil, err
		}
		origins = append(origins, proto.Point{X: x, Y: y})
		frame, err := els[0].Frame()
		if err != nil {
			return nil, fmt.Errorf("failed to enter frame %q: %w", f, err)
		}
		page = frame.Context(ctx)
	}
	return origins, nil
}

// targetPoint maps a point measured inside nested frames to top-level viewport
// coordinates and applies the offset.
func targetPoint(center proto.Point, origins []proto.Point, xOffset, yOffset int) proto.Point {
	p := proto.Point{X: center.X + float64(xOffset), Y: center.Y + float64(yOffset)}
	for _, o := range origins {
		p.X += o.X
		p.Y += o.Y
	}
	return p
}

func (n *rodNode) ScrollIntoView(ctx context.Context) error {
	el, err := n.element(ctx)
	if err != nil {
		return err
	}
	return el.ScrollIntoView()
}

func (n *rodNode) WaitFor(ctx context.Context, state interfaces.WaitState, timeout time.Duration) error {
	cond, err := stateCondition(n, state)
	if err != nil {
		return err
	}
	return poll(ctx, cond, timeout, pollInterval, waitMessage(n.selector, state, timeout))
}

func (n *rodNode) Execute(ctx context.Context, script string, args ...any) (any, error) {
	el, err := n.element(ctx)
	if err != nil {
		return nil, err
	}
	res, err := el.Eval(`function(...args) { return (`+script+`).apply(null, [this, ...args]); }`, args...)
	if err != nil {
		var evalErr *rod.EvalError
		if errors.As(err, &evalErr) {
			return nil, errs.Wrap(errs.Internal, fmt.Sprintf("script failed on %q", n.selector), err)
		}
		return nil, err
	}
	return res.Value.Val(), nil
}

func (n *rodNode) Parent(ctx context.Context) (interfaces.Node, error) {
	return &rodNode{d: n.d, selector: n.selector + "/..", frames: n.frames, resolve: func(ctx context.Context) (*rod.Element, error) {
		el, err := n.resolve(ctx)
		if err != nil {
			return nil, err
		}
		return el.Parent()
	}}, nil
}

func (n *rodNode) Find(ctx context.Context, selector entities.Selector) (interfaces.Node, error) {
	return &rodNode{d: n.d, selector: selector, frames: n.frames, resolve: func(ctx context.Context) (*rod.Element, error) {
		el, err := n.resolve(ctx)
		if err != nil {
			return nil, err
		}
		els, err := queryElement(el, selector)
		if err != nil {
			return nil, err
		}
		if len(els) == 0 {
			return nil, notFound(selector)
		}
		return els[0], nil
	}}, nil
}
