package pageobject

import (
	"context"
	"fmt"
	"io"

	"shopflow/application/element"
	"shopflow/domain/entities"
	"shopflow/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// Base provides the navigation primitives shared by every page object and
// holds the page's installed getters.
type Base struct {
	driver  interfaces.Driver
	getters *Getters
	log     logrus.FieldLogger
}

// Option configures a Base.
type Option func(*baseOptions)

type baseOptions struct {
	log       logrus.FieldLogger
	overrides entities.SelectorMap
}

// WithLogger sets the logger used by the page and its element handles.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *baseOptions) { o.log = log }
}

// WithOverrides replaces selectors by leaf name before installation.
func WithOverrides(overrides entities.SelectorMap) Option {
	return func(o *baseOptions) { o.overrides = overrides }
}

// NewBase installs selectors (which may be nil) as the page's getters.
func NewBase(driver interfaces.Driver, selectors entities.SelectorMap, opts ...Option) (*Base, error) {
	o := baseOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.log = l
	}
	if selectors == nil {
		selectors = entities.SelectorMap{}
	}
	if len(o.overrides) > 0 {
		selectors = Merge(selectors, o.overrides)
	}

	getters, err := Install(driver, selectors, element.WithLogger(o.log))
	if err != nil {
		return nil, fmt.Errorf("failed to install getters: %w", err)
	}
	return &Base{driver: driver, getters: getters, log: o.log}, nil
}

// OpenURL navigates the browser to url.
func (b *Base) OpenURL(ctx context.Context, url string) error {
	b.log.WithField("url", url).Info("open url")
	if err := b.driver.Navigate(ctx, url); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	return nil
}

// URL returns the current browser URL.
func (b *Base) URL(ctx context.Context) (string, error) {
	return b.driver.CurrentURL(ctx)
}

// Element returns a new handle for an installed name.
func (b *Base) Element(name string) *element.Handle {
	return b.getters.Must(name)
}

// Getters exposes the page's installed getters.
func (b *Base) Getters() *Getters { return b.getters }

// Driver returns the driver the page operates on.
func (b *Base) Driver() interfaces.Driver { return b.driver }

// Log returns the page logger.
func (b *Base) Log() logrus.FieldLogger { return b.log }
