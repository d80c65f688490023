package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"shopflow/domain/entities"
	"shopflow/domain/errs"
	"shopflow/domain/interfaces"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
)

// PlaywrightDriver drives Chromium through playwright. Frames are tracked as a
// stack of iframe selectors and expressed as chained frame locators.
type PlaywrightDriver struct {
	pw          *playwright.Playwright
	browser     playwright.Browser
	context     playwright.BrowserContext
	page        playwright.Page
	frames      []entities.Selector
	storagePath string
	logger      *logrus.Logger
	mu          sync.Mutex
}

var _ interfaces.Driver = (*PlaywrightDriver)(nil)

// NewPlaywrightDriver - starts playwright and opens a single page
func NewPlaywrightDriver(opts Options) (*PlaywrightDriver, error) {
	logger := opts.logger()

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			"--disable-popup-blocking",
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-infobars",
			"--disable-notifications",
		},
	}
	if opts.SlowMo > 0 {
		launch.SlowMo = playwright.Float(float64(opts.SlowMo.Milliseconds()))
	}

	browser, err := pw.Chromium.Launch(launch)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOptions := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  1280,
			Height: 720,
		},
		JavaScriptEnabled: playwright.Bool(true),
		IgnoreHttpsErrors: playwright.Bool(true),
		Permissions:       []string{"clipboard-read", "clipboard-write"},
	}
	if state := loadStorageState(opts.StatePath, logger); state != nil {
		contextOptions.StorageState = state
	}

	bctx, err := browser.NewContext(contextOptions)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.OnDialog(func(dialog playwright.Dialog) {
		_ = dialog.Accept()
	})

	return &PlaywrightDriver{
		pw:          pw,
		browser:     browser,
		context:     bctx,
		page:        page,
		storagePath: opts.StatePath,
		logger:      logger,
	}, nil
}

// loadStorageState reads a previously saved storage state, if any
func loadStorageState(path string, logger *logrus.Logger) *playwright.OptionalStorageState {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var storageState playwright.StorageState
	if err := json.Unmarshal(data, &storageState); err != nil {
		logger.Warnf("Ignoring unreadable browser state %s: %v", path, err)
		return nil
	}
	return storageState.ToOptionalStorageState()
}

func pwSelector(selector entities.Selector) string {
	if selector.IsXPath() {
		return "xpath=" + selector.XPath()
	}
	return string(selector)
}

// locate builds a locator for selector inside the current frame stack
func (d *PlaywrightDriver) locate(selector entities.Selector) playwright.Locator {
	d.mu.Lock()
	page := d.page
	frames := append([]entities.Selector(nil), d.frames...)
	d.mu.Unlock()

	if len(frames) == 0 {
		return page.Locator(pwSelector(selector))
	}
	fl := page.FrameLocator(pwSelector(frames[0]))
	for _, f := range frames[1:] {
		fl = fl.FrameLocator(pwSelector(f))
	}
	return fl.Locator(pwSelector(selector))
}

func (d *PlaywrightDriver) Name() string { return "playwright" }

// Navigate - navigates to the specified URL
func (d *PlaywrightDriver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	page := d.page
	d.frames = nil
	d.mu.Unlock()

	d.logger.Infof("Navigating to: %s", url)
	_, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(30000),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (d *PlaywrightDriver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.page.URL(), nil
}

func (d *PlaywrightDriver) Find(ctx context.Context, selector entities.Selector) (interfaces.Node, error) {
	return &pwNode{d: d, selector: selector, loc: d.locate(selector).First()}, nil
}

func (d *PlaywrightDriver) FindAll(ctx context.Context, selector entities.Selector) ([]interfaces.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loc := d.locate(selector)
	count, err := loc.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to count %q: %w", selector, err)
	}
	nodes := make([]interfaces.Node, count)
	for i := range nodes {
		nodes[i] = &pwNode{d: d, selector: selector, loc: loc.Nth(i)}
	}
	return nodes, nil
}

func (d *PlaywrightDriver) WaitUntil(ctx context.Context, cond interfaces.Condition, timeout time.Duration, message string) error {
	return poll(ctx, cond, timeout, pollInterval, message)
}

func (d *PlaywrightDriver) PressChord(ctx context.Context, modifier, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	page := d.page
	d.mu.Unlock()
	if err := page.Keyboard().Press(modifier + "+" + key); err != nil {
		return fmt.Errorf("failed to press %s+%s: %w", modifier, key, err)
	}
	return nil
}

func (d *PlaywrightDriver) SwitchToFrame(ctx context.Context, selector entities.Selector) error {
	count, err := d.locate(selector).Count()
	if err != nil {
		return fmt.Errorf("failed to locate frame %q: %w", selector, err)
	}
	if count == 0 {
		return notFound(selector)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, selector)
	return nil
}

func (d *PlaywrightDriver) SwitchToParentFrame(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.frames) > 0 {
		d.frames = d.frames[:len(d.frames)-1]
	}
	return nil
}

// SaveState - saves cookies and local storage to the configured state path
func (d *PlaywrightDriver) SaveState() error {
	if d.context == nil || d.storagePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(d.storagePath), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if _, err := d.context.StorageState(d.storagePath); err != nil {
		if isClosedErr(err) {
			return nil
		}
		return fmt.Errorf("failed to save browser state: %w", err)
	}
	return nil
}

// Close - saves state and shuts the browser down
func (d *PlaywrightDriver) Close() error {
	var closeErr error
	if err := d.SaveState(); err != nil {
		closeErr = errors.Join(closeErr, err)
	}
	if d.context != nil {
		if err := d.context.Close(); err != nil && !isClosedErr(err) {
			closeErr = errors.Join(closeErr, fmt.Errorf("failed to close context: %w", err))
		}
		d.context = nil
	}
	if d.browser != nil {
		if err := d.browser.Close(); err != nil && !isClosedErr(err) {
			closeErr = errors.Join(closeErr, fmt.Errorf("failed to close browser: %w", err))
		}
		d.browser = nil
	}
	if d.pw != nil {
		if err := d.pw.Stop(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("failed to stop playwright: %w", err))
		}
		d.pw = nil
	}
	return closeErr
}

func isClosedErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "closed") || strings.Contains(msg, "target closed")
}

// pwNode wraps a locator; playwright locators already resolve on every call.
type pwNode struct {
	d        *PlaywrightDriver
	selector entities.Selector
	loc      playwright.Locator
}

var _ interfaces.Node = (*pwNode)(nil)

func (n *pwNode) Exists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	count, err := n.loc.Count()
	if err != nil {
		return false, fmt.Errorf("failed to count %q: %w", n.selector, err)
	}
	return count > 0, nil
}

// require fails with a not-found error when nothing matches, instead of
// letting playwright wait for its own default timeout.
func (n *pwNode) require(ctx context.Context) error {
	exists, err := n.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return notFound(n.selector)
	}
	return nil
}

func (n *pwNode) IsDisplayed(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return n.loc.IsVisible()
}

func (n *pwNode) IsDisplayedInViewport(ctx context.Context) (bool, error) {
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

func (n *pwNode) IsEnabled(ctx context.Context) (bool, error) {
	if err := n.require(ctx); err != nil {
		return false, err
	}
	return n.loc.IsEnabled()
}

func (n *pwNode) IsSelected(ctx context.Context) (bool, error) {
	v, err := n.Execute(ctx, selectedScript)
	if err != nil {
		return false, err
	}
	selected, _ := v.(bool)
	return selected, nil
}

func (n *pwNode) Text(ctx context.Context) (string, error) {
	if err := n.require(ctx); err != nil {
		return "", err
	}
	return n.loc.InnerText()
}

func (n *pwNode) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := n.Execute(ctx, attributeScript, name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return stringResult(v), true, nil
}

func (n *pwNode) CSSProperty(ctx context.Context, name string) (string, error) {
	v, err := n.Execute(ctx, cssScript, name)
	if err != nil {
		return "", err
	}
	return stringResult(v), nil
}

func (n *pwNode) Location(ctx context.Context) (entities.Location, error) {
	v, err := n.Execute(ctx, locationScript)
	if err != nil {
		return entities.Location{}, err
	}
	return decodeLocation(v)
}

func (n *pwNode) Click(ctx context.Context) error {
	if err := n.require(ctx); err != nil {
		return err
	}
	return n.loc.Click()
}

func (n *pwNode) DoubleClick(ctx context.Context) error {
	if err := n.require(ctx); err != nil {
		return err
	}
	return n.loc.Dblclick()
}

func (n *pwNode) SetValue(ctx context.Context, value string) error {
	if err := n.require(ctx); err != nil {
		return err
	}
	return n.loc.Fill(value)
}

func (n *pwNode) AddValue(ctx context.Context, value string) error {
	if err := n.require(ctx); err != nil {
		return err
	}
	current, err := n.loc.InputValue()
	if err != nil {
		return fmt.Errorf("failed to read value of %q: %w", n.selector, err)
	}
	return n.loc.Fill(current + value)
}

func (n *pwNode) ClearValue(ctx context.Context) error {
	if err := n.require(ctx); err != nil {
		return err
	}
	return n.loc.Clear()
}

// MoveTo hovers at an offset from the element's center
func (n *pwNode) MoveTo(ctx context.Context, xOffset, yOffset int) error {
	if err := n.require(ctx); err != nil {
		return err
	}
	box, err := n.loc.BoundingBox()
	if err != nil {
		return fmt.Errorf("failed to measure %q: %w", n.selector, err)
	}
	if box == nil {
		return errs.New(errs.NotFound, fmt.Sprintf("element %q has no layout box", n.selector))
	}
	return n.loc.Hover(playwright.LocatorHoverOptions{
		Position: &playwright.Position{
			X: box.Width/2 + float64(xOffset),
			Y: box.Height/2 + float64(yOffset),
		},
	})
}

func (n *pwNode) ScrollIntoView(ctx context.Context) error {
	if err := n.require(ctx); err != nil {
		return err
	}
	return n.loc.ScrollIntoViewIfNeeded()
}

func (n *pwNode) WaitFor(ctx context.Context, state interfaces.WaitState, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var pwState *playwright.WaitForSelectorState
	switch state {
	case interfaces.StateDisplayed:
		pwState = playwright.WaitForSelectorStateVisible
	case interfaces.StateHidden:
		pwState = playwright.WaitForSelectorStateHidden
	case interfaces.StateAttached:
		pwState = playwright.WaitForSelectorStateAttached
	case interfaces.StateDetached:
		pwState = playwright.WaitForSelectorStateDetached
	default:
		cond, err := stateCondition(n, state)
		if err != nil {
			return err
		}
		return poll(ctx, cond, timeout, pollInterval, waitMessage(n.selector, state, timeout))
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		slice, ok := sliceTimeout(time.Until(deadline), waitSlice)
		if !ok {
			return errs.New(errs.Timeout, waitMessage(n.selector, state, timeout))
		}
		err := n.loc.WaitFor(playwright.LocatorWaitForOptions{
			State:   pwState,
			Timeout: playwright.Float(slice),
		})
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, playwright.ErrTimeout):
			continue
		}
		return err
	}
}

// waitSlice bounds a single playwright wait so cancellation is noticed between slices.
const waitSlice = 250 * time.Millisecond

// sliceTimeout returns the playwright timeout in milliseconds for the next
// wait slice. Playwright treats 0 as "no timeout", so the result is at least
// 1 ms; ok is false once nothing remains.
func sliceTimeout(remaining, limit time.Duration) (float64, bool) {
	if remaining <= 0 {
		return 0, false
	}
	if remaining > limit {
		remaining = limit
	}
	ms := remaining.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return float64(ms), true
}

func (n *pwNode) Execute(ctx context.Context, script string, args ...any) (any, error) {
	if err := n.require(ctx); err != nil {
		return nil, err
	}
	if args == nil {
		args = []any{}
	}
	return n.loc.Evaluate(wrapFunction(script), args)
}

func (n *pwNode) Parent(ctx context.Context) (interfaces.Node, error) {
	return &pwNode{d: n.d, selector: n.selector + "/..", loc: n.loc.Locator("xpath=..")}, nil
}

func (n *pwNode) Find(ctx context.Context, selector entities.Selector) (interfaces.Node, error) {
	return &pwNode{d: n.d, selector: selector, loc: n.loc.Locator(pwSelector(selector)).First()}, nil
}
