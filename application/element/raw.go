package element

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"shopflow/domain/errs"
)

// Raw exposes script-injection operations. They run directly in the document
// and bypass the driver's native interaction semantics: no display or enabled
// waits, no actionability checks. A missing element makes them no-ops, except
// Click, which fails with a not-found error.
type Raw struct {
	h *Handle
}

// Raw returns the script-injection operations for the handle.
func (h *Handle) Raw() *Raw {
	return &Raw{h: h}
}

// Execute runs a JavaScript function expression against the resolved element.
// The function receives the element followed by args. It returns nil without
// running the script when nothing matches.
func (r *Raw) Execute(ctx context.Context, script string, args ...any) (any, error) {
	node, err := r.h.Element(ctx)
	if err != nil {
		return nil, err
	}
	exists, err := node.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	r.h.log.Debug("execute script")
	result, err := node.Execute(ctx, script, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute script on %s: %w", r.h, err)
	}
	return result, nil
}

// Present reports whether a DOM node currently matches the selector.
func (r *Raw) Present(ctx context.Context) (bool, error) {
	node, err := r.h.Element(ctx)
	if err != nil {
		return false, err
	}
	return node.Exists(ctx)
}

// Focus sets focus on the element.
func (r *Raw) Focus(ctx context.Context) error {
	_, err := r.Execute(ctx, `(el) => { el.focus(); }`)
	return err
}

// Click dispatches a DOM click on the element.
func (r *Raw) Click(ctx context.Context) error {
	present, err := r.Present(ctx)
	if err != nil {
		return err
	}
	if !present {
		return errs.New(errs.NotFound, fmt.Sprintf("raw click: no element matches %s", r.h))
	}
	_, err = r.Execute(ctx, `(el) => { el.click(); }`)
	return err
}

// SetAttribute sets a DOM attribute on the element.
func (r *Raw) SetAttribute(ctx context.Context, name, value string) error {
	_, err := r.Execute(ctx, `(el, name, value) => { el.setAttribute(name, value); }`, name, value)
	return err
}

// SetStyle assigns inline style properties, keyed by their DOM names
// (e.g. "display", "backgroundColor").
func (r *Raw) SetStyle(ctx context.Context, styles map[string]string) error {
	_, err := r.Execute(ctx, `(el, styles) => {
		for (const [prop, val] of Object.entries(styles)) {
			el.style[prop] = val;
		}
	}`, styles)
	return err
}

// ScrollHeight returns the element's scrollHeight in pixels, 0 when missing.
func (r *Raw) ScrollHeight(ctx context.Context) (int, error) {
	v, err := r.Execute(ctx, `(el) => el.scrollHeight`)
	if err != nil {
		return 0, err
	}
	return toInt(v)
}

// ScrollTop returns the element's vertical scroll offset in pixels, 0 when missing.
func (r *Raw) ScrollTop(ctx context.Context) (int, error) {
	v, err := r.Execute(ctx, `(el) => el.scrollTop`)
	if err != nil {
		return 0, err
	}
	return toInt(v)
}

// toInt normalises numeric script results across drivers.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(math.Round(n)), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		return int(math.Round(f)), nil
	default:
		return 0, fmt.Errorf("unexpected script result type %T", v)
	}
}
