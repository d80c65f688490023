package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"shopflow/domain/entities"
	"shopflow/domain/errs"
	"shopflow/domain/interfaces"

	"github.com/sirupsen/logrus"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
)

const defaultChromeDriverPort = 9515

// SeleniumDriver drives Chrome through chromedriver. WebDriver keeps a single
// frame context per session, so nodes remember the frame stack they were found
// in and re-enter it from the top document when it differs.
type SeleniumDriver struct {
	wd      selenium.WebDriver
	service *selenium.Service
	logger  *logrus.Logger

	mu     sync.Mutex
	frames []entities.Selector // requested by SwitchToFrame
	active []entities.Selector // what the session is currently switched into
}

var _ interfaces.Driver = (*SeleniumDriver)(nil)

// findChromeDriver - finds ChromeDriver executable path
func findChromeDriver(configured string) (string, error) {
	candidates := []string{configured, os.Getenv("BROWSER_DRIVER_PATH")}
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	commonPaths := []string{
		"/usr/local/bin/chromedriver",
		"/usr/bin/chromedriver",
		"/opt/homebrew/bin/chromedriver",
		filepath.Join(os.Getenv("HOME"), "bin", "chromedriver"),
	}

	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	if path, err := exec.LookPath("chromedriver"); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("chromedriver not found. Please install it or set BROWSER_DRIVER_PATH environment variable")
}

// findChromeBinary - finds Chrome/Chromium browser executable path
func findChromeBinary(configured string) string {
	for _, path := range []string{configured, os.Getenv("CHROME_BINARY_PATH")} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	chromePaths := []string{
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
	}

	for _, path := range chromePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	for _, name := range []string{"google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	return ""
}

// NewSeleniumDriver - starts chromedriver and opens a Chrome session
func NewSeleniumDriver(opts Options) (*SeleniumDriver, error) {
	logger := opts.logger()

	driverPath, err := findChromeDriver(opts.DriverPath)
	if err != nil {
		return nil, fmt.Errorf("failed to find chromedriver: %w", err)
	}
	logger.Infof("Using ChromeDriver at: %s", driverPath)

	chromeBinary := findChromeBinary(opts.ChromeBinary)
	if chromeBinary != "" {
		logger.Infof("Using Chrome binary at: %s", chromeBinary)
	}

	port := opts.Port
	if port == 0 {
		port = defaultChromeDriverPort
	}
	service, err := selenium.NewChromeDriverService(driverPath, port)
	if err != nil {
		return nil, fmt.Errorf("failed to start chromedriver: %w", err)
	}

	caps := selenium.Capabilities{
		"browserName": "chrome",
	}

	chromeCaps := chrome.Capabilities{
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--window-size=1280,720",
		},
	}
	if opts.Headless {
		chromeCaps.Args = append(chromeCaps.Args, "--headless=new")
	}
	if chromeBinary != "" {
		chromeCaps.Path = chromeBinary
	}
	caps.AddChrome(chromeCaps)

	wd, err := selenium.NewRemote(caps, fmt.Sprintf("http://localhost:%d/wd/hub", port))
	if err != nil {
		_ = service.Stop()
		if strings.Contains(err.Error(), "cannot find Chrome binary") {
			return nil, fmt.Errorf("failed to create webdriver: Chrome browser not found. Please install Google Chrome or set CHROME_BINARY_PATH environment variable. Error: %w", err)
		}
		return nil, fmt.Errorf("failed to create webdriver: %w", err)
	}

	return &SeleniumDriver{
		wd:      wd,
		service: service,
		logger:  logger,
	}, nil
}

func seleniumBy(selector entities.Selector) (string, string) {
	if selector.IsXPath() {
		return selenium.ByXPATH, selector.XPath()
	}
	return selenium.ByCSSSelector, string(selector)
}

// relativeBy scopes an absolute XPath to the element it is searched from
func relativeBy(selector entities.Selector) (string, string) {
	by, value := seleniumBy(selector)
	if by == selenium.ByXPATH && strings.HasPrefix(value, "/") {
		value = "." + value
	}
	return by, value
}

// enter switches the session into frames. Callers hold mu.
func (d *SeleniumDriver) enter(frames []entities.Selector) error {
	if equalFrames(d.active, frames) {
		return nil
	}
	if err := d.wd.SwitchFrame(nil); err != nil {
		return fmt.Errorf("failed to switch to top document: %w", err)
	}
	d.active = nil
	for _, f := range frames {
		els, err := d.wd.FindElements(seleniumBy(f))
		if err != nil {
			return fmt.Errorf("failed to locate frame %q: %w", f, err)
		}
		if len(els) == 0 {
			return notFound(f)
		}
		if err := d.wd.SwitchFrame(els[0]); err != nil {
			return fmt.Errorf("failed to switch to frame %q: %w", f, err)
		}
		d.active = append(d.active, f)
	}
	return nil
}

func equalFrames(a, b []entities.Selector) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (d *SeleniumDriver) Name() string { return "selenium" }

// Navigate - navigates browser to specified URL
func (d *SeleniumDriver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.logger.Infof("Navigating to: %s", url)
	if err := d.wd.Get(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	d.frames, d.active = nil, nil
	return nil
}

func (d *SeleniumDriver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wd.CurrentURL()
}

func (d *SeleniumDriver) currentFrames() []entities.Selector {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]entities.Selector(nil), d.frames...)
}

func (d *SeleniumDriver) Find(ctx context.Context, selector entities.Selector) (interfaces.Node, error) {
	return &seleniumNode{
		d:        d,
		selector: selector,
		frames:   d.currentFrames(),
		resolve: func() (selenium.WebElement, error) {
			els, err := d.wd.FindElements(seleniumBy(selector))
			if err != nil {
				return nil, err
			}
			if len(els) == 0 {
				return nil, notFound(selector)
			}
			return els[0], nil
		},
	}, nil
}

func (d *SeleniumDriver) FindAll(ctx context.Context, selector entities.Selector) ([]interfaces.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frames := d.currentFrames()

	d.mu.Lock()
	var count int
	err := d.enter(frames)
	if err == nil {
		var els []selenium.WebElement
		els, err = d.wd.FindElements(seleniumBy(selector))
		count = len(els)
	}
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to find %q: %w", selector, err)
	}

	nodes := make([]interfaces.Node, count)
	for i := range nodes {
		idx := i
		nodes[i] = &seleniumNode{
			d:        d,
			selector: selector,
			frames:   frames,
			resolve: func() (selenium.WebElement, error) {
				els, err := d.wd.FindElements(seleniumBy(selector))
				if err != nil {
					return nil, err
				}
				if idx >= len(els) {
					return nil, notFound(selector)
				}
				return els[idx], nil
			},
		}
	}
	return nodes, nil
}

// WaitUntil polls through WebDriver's own wait loop
func (d *SeleniumDriver) WaitUntil(ctx context.Context, cond interfaces.Condition, timeout time.Duration, message string) error {
	var condErr error
	err := d.wd.WaitWithTimeoutAndInterval(func(selenium.WebDriver) (bool, error) {
		if err := ctx.Err(); err != nil {
			condErr = err
			return false, err
		}
		ok, err := cond(ctx)
		if err != nil {
			condErr = err
		}
		return ok, err
	}, timeout, pollInterval)
	switch {
	case err == nil:
		return nil
	case condErr != nil:
		return condErr
	}
	return errs.Wrap(errs.Timeout, message, err)
}

// PressChord sends the chord to the focused element. Modifier keys stay
// pressed until the end of the key sequence.
func (d *SeleniumDriver) PressChord(ctx context.Context, modifier, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mod, ok := map[string]string{
		"Control": selenium.ControlKey,
		"Meta":    selenium.MetaKey,
		"Shift":   selenium.ShiftKey,
		"Alt":     selenium.AltKey,
	}[modifier]
	if !ok {
		return errs.New(errs.InvalidArgument, fmt.Sprintf("unsupported modifier %q", modifier))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(d.frames); err != nil {
		return err
	}
	active, err := d.wd.ActiveElement()
	if err != nil {
		return fmt.Errorf("failed to get focused element: %w", err)
	}
	if err := active.SendKeys(mod + key); err != nil {
		return fmt.Errorf("failed to press %s+%s: %w", modifier, key, err)
	}
	return nil
}

func (d *SeleniumDriver) SwitchToFrame(ctx context.Context, selector entities.Selector) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	next := append(append([]entities.Selector(nil), d.frames...), selector)
	if err := d.enter(next); err != nil {
		return err
	}
	d.frames = next
	return nil
}

func (d *SeleniumDriver) SwitchToParentFrame(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.frames) == 0 {
		return nil
	}
	next := d.frames[:len(d.frames)-1]
	if err := d.enter(next); err != nil {
		return err
	}
	d.frames = next
	return nil
}

// Close - closes browser and stops ChromeDriver service
func (d *SeleniumDriver) Close() error {
	var err error
	if d.wd != nil {
		err = d.wd.Quit()
		d.wd = nil
	}
	if d.service != nil {
		if serr := d.service.Stop(); serr != nil && err == nil {
			err = serr
		}
		d.service = nil
	}
	return err
}

type seleniumNode struct {
	d        *SeleniumDriver
	selector entities.Selector
	frames   []entities.Selector
	// resolve runs with the driver lock held and the frame entered
	resolve func() (selenium.WebElement, error)
}

var _ interfaces.Node = (*seleniumNode)(nil)

func (n *seleniumNode) with(ctx context.Context, fn func(el selenium.WebElement) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.d.mu.Lock()
	defer n.d.mu.Unlock()
	if err := n.d.enter(n.frames); err != nil {
		return err
	}
	el, err := n.resolve()
	if err != nil {
		return err
	}
	return fn(el)
}

func (n *seleniumNode) Exists(ctx context.Context) (bool, error) {
	err := n.with(ctx, func(selenium.WebElement) error { return nil })
	if errs.Is(err, errs.NotFound) {
		return false, nil
	}
	return err == nil, err
}

func (n *seleniumNode) IsDisplayed(ctx context.Context) (bool, error) {
	var displayed bool
	err := n.with(ctx, func(el selenium.WebElement) error {
		var err error
		displayed, err = el.IsDisplayed()
		return err
	})
	if errs.Is(err, errs.NotFound) {
		return false, nil
	}
	return displayed, err
}

func (n *seleniumNode) IsDisplayedInViewport(ctx context.Context) (bool, error) {
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

func (n *seleniumNode) IsEnabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := n.with(ctx, func(el selenium.WebElement) error {
		var err error
		enabled, err = el.IsEnabled()
		return err
	})
	return enabled, err
}

func (n *seleniumNode) IsSelected(ctx context.Context) (bool, error) {
	var selected bool
	err := n.with(ctx, func(el selenium.WebElement) error {
		var err error
		selected, err = el.IsSelected()
		return err
	})
	return selected, err
}

func (n *seleniumNode) Text(ctx context.Context) (string, error) {
	var text string
	err := n.with(ctx, func(el selenium.WebElement) error {
		var err error
		text, err = el.Text()
		return err
	})
	return text, err
}

// Attribute goes through script; GetAttribute cannot tell absent from empty.
func (n *seleniumNode) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := n.Execute(ctx, attributeScript, name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return stringResult(v), true, nil
}

func (n *seleniumNode) CSSProperty(ctx context.Context, name string) (string, error) {
	var value string
	err := n.with(ctx, func(el selenium.WebElement) error {
		var err error
		value, err = el.CSSProperty(name)
		return err
	})
	return value, err
}

func (n *seleniumNode) Location(ctx context.Context) (entities.Location, error) {
	var loc entities.Location
	err := n.with(ctx, func(el selenium.WebElement) error {
		p, err := el.Location()
		if err != nil {
			return err
		}
		loc = entities.Location{X: p.X, Y: p.Y}
		return nil
	})
	return loc, err
}

func (n *seleniumNode) Click(ctx context.Context) error {
	return n.with(ctx, func(el selenium.WebElement) error {
		n.scrollTo(el)
		return el.Click()
	})
}

// DoubleClick uses the legacy mouse endpoints and falls back to a synthetic
// dblclick event when the session only speaks W3C.
func (n *seleniumNode) DoubleClick(ctx context.Context) error {
	return n.with(ctx, func(el selenium.WebElement) error {
		n.scrollTo(el)
		if err := el.MoveTo(0, 0); err == nil {
			if err := n.d.wd.DoubleClick(); err == nil {
				return nil
			}
		}
		n.d.logger.Debugf("Falling back to scripted double click on %s", n.selector)
		_, err := n.d.wd.ExecuteScript(seleniumScript(`(el) => {
			el.dispatchEvent(new MouseEvent('dblclick', { bubbles: true, cancelable: true, view: window }));
		}`), []interface{}{el})
		return err
	})
}

func (n *seleniumNode) SetValue(ctx context.Context, value string) error {
	return n.with(ctx, func(el selenium.WebElement) error {
		if err := el.Clear(); err != nil {
			return fmt.Errorf("failed to clear %q: %w", n.selector, err)
		}
		return el.SendKeys(value)
	})
}

func (n *seleniumNode) AddValue(ctx context.Context, value string) error {
	return n.with(ctx, func(el selenium.WebElement) error {
		return el.SendKeys(value)
	})
}

func (n *seleniumNode) ClearValue(ctx context.Context) error {
	return n.with(ctx, func(el selenium.WebElement) error {
		return el.Clear()
	})
}

// MoveTo moves the pointer to an offset from the element's center
func (n *seleniumNode) MoveTo(ctx context.Context, xOffset, yOffset int) error {
	return n.with(ctx, func(el selenium.WebElement) error {
		size, err := el.Size()
		if err != nil {
			return fmt.Errorf("failed to measure %q: %w", n.selector, err)
		}
		if err := el.MoveTo(size.Width/2+xOffset, size.Height/2+yOffset); err == nil {
			return nil
		}
		n.d.logger.Debugf("Falling back to scripted hover on %s", n.selector)
		_, err = n.d.wd.ExecuteScript(seleniumScript(`(el) => {
			for (const type of ['mouseover', 'mouseenter', 'mousemove']) {
				el.dispatchEvent(new MouseEvent(type, { bubbles: true, view: window }));
			}
		}`), []interface{}{el})
		return err
	})
}

func (n *seleniumNode) ScrollIntoView(ctx context.Context) error {
	_, err := n.Execute(ctx, scrollIntoScript)
	return err
}

// scrollTo brings el into view before native interaction. Callers hold the lock.
func (n *seleniumNode) scrollTo(el selenium.WebElement) {
	if _, err := n.d.wd.ExecuteScript(seleniumScript(scrollIntoScript), []interface{}{el}); err != nil {
		n.d.logger.Warnf("Failed to scroll to element: %v", err)
	}
}

func (n *seleniumNode) WaitFor(ctx context.Context, state interfaces.WaitState, timeout time.Duration) error {
	cond, err := stateCondition(n, state)
	if err != nil {
		return err
	}
	return n.d.WaitUntil(ctx, cond, timeout, waitMessage(n.selector, state, timeout))
}

// seleniumScript adapts a function expression to WebDriver's script body,
// which receives its arguments through the arguments object.
func seleniumScript(script string) string {
	return "return (" + script + ").apply(null, arguments);"
}

func (n *seleniumNode) Execute(ctx context.Context, script string, args ...any) (any, error) {
	var result any
	err := n.with(ctx, func(el selenium.WebElement) error {
		var err error
		result, err = n.d.wd.ExecuteScript(seleniumScript(script), append([]interface{}{el}, args...))
		return err
	})
	return result, err
}

func (n *seleniumNode) Parent(ctx context.Context) (interfaces.Node, error) {
	return &seleniumNode{
		d:        n.d,
		selector: n.selector + "/..",
		frames:   n.frames,
		resolve: func() (selenium.WebElement, error) {
			el, err := n.resolve()
			if err != nil {
				return nil, err
			}
			return el.FindElement(selenium.ByXPATH, "..")
		},
	}, nil
}

func (n *seleniumNode) Find(ctx context.Context, selector entities.Selector) (interfaces.Node, error) {
	return &seleniumNode{
		d:        n.d,
		selector: selector,
		frames:   n.frames,
		resolve: func() (selenium.WebElement, error) {
			el, err := n.resolve()
			if err != nil {
				return nil, err
			}
			els, err := el.FindElements(relativeBy(selector))
			if err != nil {
				return nil, err
			}
			if len(els) == 0 {
				return nil, notFound(selector)
			}
			return els[0], nil
		},
	}, nil
}
