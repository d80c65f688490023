// Package browser holds the interfaces.Driver backends: playwright (default),
// selenium through chromedriver, and rod over the DevTools protocol.
package browser

import (
	"fmt"
	"strings"

	"shopflow/domain/errs"
	"shopflow/domain/interfaces"
)

// Backend names accepted by New.
const (
	Playwright = "playwright"
	Selenium   = "selenium"
	Rod        = "rod"
)

// Backends lists the supported backend names.
func Backends() []string {
	return []string{Playwright, Selenium, Rod}
}

// New starts the named backend.
func New(name string, opts Options) (interfaces.Driver, error) {
	logger := opts.logger()
	logger.Infof("Starting %s browser (headless=%t)", name, opts.Headless)

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Playwright:
		return NewPlaywrightDriver(opts)
	case Selenium:
		return NewSeleniumDriver(opts)
	case Rod:
		return NewRodDriver(opts)
	}
	return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown browser driver %q (want one of %s)", name, strings.Join(Backends(), ", ")))
}
