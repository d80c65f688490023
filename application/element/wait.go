package element

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shopflow/domain/errs"
	"shopflow/domain/interfaces"
)

// WaitOption overrides the defaults of a wait.
type WaitOption func(*waitConfig)

type waitConfig struct {
	timeout time.Duration
}

// WithTimeout sets the wait deadline.
func WithTimeout(timeout time.Duration) WaitOption {
	return func(c *waitConfig) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func resolveWait(def time.Duration, opts []WaitOption) waitConfig {
	cfg := waitConfig{timeout: def}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WaitForDisplayed waits for the element to become visible.
func (h *Handle) WaitForDisplayed(ctx context.Context, opts ...WaitOption) error {
	cfg := resolveWait(DefaultTimeout, opts)
	return h.waitFor(ctx, interfaces.StateDisplayed, cfg.timeout, "not displayed")
}

// WaitForNotDisplayed waits for the element to stop being visible.
func (h *Handle) WaitForNotDisplayed(ctx context.Context, opts ...WaitOption) error {
	cfg := resolveWait(DefaultTimeout, opts)
	return h.waitFor(ctx, interfaces.StateHidden, cfg.timeout, "displayed")
}

// WaitForExist waits for the element to be attached to the DOM.
func (h *Handle) WaitForExist(ctx context.Context, opts ...WaitOption) error {
	cfg := resolveWait(DefaultTimeout, opts)
	return h.waitFor(ctx, interfaces.StateAttached, cfg.timeout, "not existing")
}

// WaitForNotExist waits for the element to be removed from the DOM.
func (h *Handle) WaitForNotExist(ctx context.Context, opts ...WaitOption) error {
	cfg := resolveWait(DefaultTimeout, opts)
	return h.waitFor(ctx, interfaces.StateDetached, cfg.timeout, "existing")
}

// WaitForEnabled waits for the element to be displayed and then enabled,
// each phase bounded by the same timeout.
func (h *Handle) WaitForEnabled(ctx context.Context, opts ...WaitOption) error {
	cfg := resolveWait(DefaultEnabledTimeout, opts)
	if err := h.waitFor(ctx, interfaces.StateDisplayed, cfg.timeout, "not displayed"); err != nil {
		return err
	}
	return h.waitFor(ctx, interfaces.StateEnabled, cfg.timeout, "not enabled")
}

// WaitForText polls until the element's text, or its trimmed form, equals target.
func (h *Handle) WaitForText(ctx context.Context, target string, opts ...WaitOption) error {
	cfg := resolveWait(DefaultTimeout, opts)
	cond := func(ctx context.Context) (bool, error) {
		node, err := h.driver.Find(ctx, h.selector)
		if err != nil {
			return false, err
		}
		text, err := node.Text(ctx)
		if errs.Is(err, errs.NotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return text == target || strings.TrimSpace(text) == target, nil
	}

	msg := fmt.Sprintf("expected text of %s to change to %q", h, target)
	if err := h.driver.WaitUntil(ctx, cond, cfg.timeout, msg); err != nil {
		if errs.Is(err, errs.Timeout) {
			return errs.Wrap(errs.Timeout, msg, err)
		}
		return fmt.Errorf("failed to wait for text of %s: %w", h, err)
	}
	return nil
}

func (h *Handle) waitFor(ctx context.Context, state interfaces.WaitState, timeout time.Duration, still string) error {
	node, err := h.Element(ctx)
	if err != nil {
		return err
	}
	h.log.WithField("state", state).WithField("timeout", timeout).Debug("wait")
	if err := node.WaitFor(ctx, state, timeout); err != nil {
		if errs.Is(err, errs.Timeout) {
			return errs.Wrap(errs.Timeout, fmt.Sprintf("element %s still %s after %v", h, still, timeout), err)
		}
		return fmt.Errorf("failed to wait for %s to be %s: %w", h, state, err)
	}
	return nil
}
