package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"shopflow/domain/entities"
	"shopflow/domain/errs"
	"shopflow/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// Options configures every browser backend. Fields a backend does not use are ignored.
type Options struct {
	Headless bool
	SlowMo   time.Duration

	// DriverPath is the chromedriver executable (selenium)
	DriverPath string
	// ChromeBinary overrides the browser executable (selenium, rod)
	ChromeBinary string
	// Port is the chromedriver port (selenium), 9515 when zero
	Port int
	// StatePath persists cookies and local storage between runs (playwright)
	StatePath string

	Logger *logrus.Logger
}

func (o Options) logger() *logrus.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

const pollInterval = 100 * time.Millisecond

// Scripts take the element as their first parameter, see interfaces.Node.Execute.
const (
	attributeScript  = `(el, name) => el.getAttribute(name)`
	cssScript        = `(el, name) => window.getComputedStyle(el).getPropertyValue(name)`
	selectedScript   = `(el) => !!(el.checked || el.selected)`
	scrollIntoScript = `(el) => { el.scrollIntoView({ block: 'center', inline: 'center' }); }`
	locationScript   = `(el) => {
		const r = el.getBoundingClientRect();
		return { x: Math.round(r.left + window.scrollX), y: Math.round(r.top + window.scrollY) };
	}`
	centerScript = `(el) => {
		const r = el.getBoundingClientRect();
		return { x: r.left + r.width / 2, y: r.top + r.height / 2 };
	}`
	inViewportScript = `(el) => {
		const r = el.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) return false;
		const h = window.innerHeight || document.documentElement.clientHeight;
		const w = window.innerWidth || document.documentElement.clientWidth;
		return r.bottom > 0 && r.right > 0 && r.top < h && r.left < w;
	}`
)

// poll runs cond every interval until it holds, fails, the context ends or timeout elapses.
func poll(ctx context.Context, cond interfaces.Condition, timeout, interval time.Duration, message string) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return errs.New(errs.Timeout, message)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// stateCondition expresses a wait state through the node's own queries.
func stateCondition(n interfaces.Node, state interfaces.WaitState) (interfaces.Condition, error) {
	switch state {
	case interfaces.StateDisplayed:
		return n.IsDisplayed, nil
	case interfaces.StateHidden:
		return func(ctx context.Context) (bool, error) {
			displayed, err := n.IsDisplayed(ctx)
			return !displayed, err
		}, nil
	case interfaces.StateAttached:
		return n.Exists, nil
	case interfaces.StateDetached:
		return func(ctx context.Context) (bool, error) {
			exists, err := n.Exists(ctx)
			return !exists, err
		}, nil
	case interfaces.StateEnabled:
		return func(ctx context.Context) (bool, error) {
			exists, err := n.Exists(ctx)
			if err != nil || !exists {
				return false, err
			}
			return n.IsEnabled(ctx)
		}, nil
	}
	return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown wait state %q", state))
}

func waitMessage(selector entities.Selector, state interfaces.WaitState, timeout time.Duration) string {
	return fmt.Sprintf("timeout %v waiting for %q to be %s", timeout, selector, state)
}

func notFound(selector entities.Selector) error {
	return errs.New(errs.NotFound, fmt.Sprintf("no element matches %q", selector))
}

// wrapFunction turns a function expression taking the element first into one
// that receives the element and an argument array.
func wrapFunction(script string) string {
	return "(el, args) => (" + script + ")(el, ...(args || []))"
}

func decodeLocation(v any) (entities.Location, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return entities.Location{}, fmt.Errorf("unexpected location result %T", v)
	}
	x, err := toInt(m["x"])
	if err != nil {
		return entities.Location{}, err
	}
	y, err := toInt(m["y"])
	if err != nil {
		return entities.Location{}, err
	}
	return entities.Location{X: x, Y: y}, nil
}

func decodePoint(v any) (float64, float64, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected point result %T", v)
	}
	x, xok := toFloat(m["x"])
	y, yok := toFloat(m["y"])
	if !xok || !yok {
		return 0, 0, fmt.Errorf("unexpected point result %v", m)
	}
	return x, y, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toInt(v any) (int, error) {
	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("unexpected numeric result %T", v)
	}
	return int(math.Round(f)), nil
}

func stringResult(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
