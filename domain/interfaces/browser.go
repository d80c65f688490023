package interfaces

import (
	"context"
	"time"

	"shopflow/domain/entities"
)

// WaitState is a node condition a driver can block on
type WaitState string

const (
	StateDisplayed WaitState = "displayed"
	StateHidden    WaitState = "hidden"
	StateAttached  WaitState = "attached"
	StateDetached  WaitState = "detached"
	StateEnabled   WaitState = "enabled"
)

// Condition is polled by Driver.WaitUntil until it reports true
type Condition func(ctx context.Context) (bool, error)

// Driver defines the browser automation surface the page objects rely on.
// Implementations resolve nodes lazily: Find never fails because nothing matches.
type Driver interface {
	// Name identifies the backend (playwright, selenium, rod, fake)
	Name() string

	// Navigate navigates the current tab to a URL
	Navigate(ctx context.Context, url string) error

	// CurrentURL returns the current page URL
	CurrentURL(ctx context.Context) (string, error)

	// Find returns a lazy node for the first match of selector in the current frame
	Find(ctx context.Context, selector entities.Selector) (Node, error)

	// FindAll resolves every current match of selector in the current frame
	FindAll(ctx context.Context, selector entities.Selector) ([]Node, error)

	// WaitUntil polls cond until it is true or timeout elapses
	WaitUntil(ctx context.Context, cond Condition, timeout time.Duration, message string) error

	// PressChord presses key while modifier is held down
	PressChord(ctx context.Context, modifier, key string) error

	// SwitchToFrame makes the iframe matching selector the current frame
	SwitchToFrame(ctx context.Context, selector entities.Selector) error

	// SwitchToParentFrame returns to the frame enclosing the current one
	SwitchToParentFrame(ctx context.Context) error

	// Close closes the browser
	Close() error
}

// Node is a lazily resolved element. Every call re-resolves the underlying DOM node.
type Node interface {
	Exists(ctx context.Context) (bool, error)
	IsDisplayed(ctx context.Context) (bool, error)
	IsDisplayedInViewport(ctx context.Context) (bool, error)
	IsEnabled(ctx context.Context) (bool, error)
	IsSelected(ctx context.Context) (bool, error)

	Text(ctx context.Context) (string, error)

	// Attribute returns the attribute value and whether the attribute is present
	Attribute(ctx context.Context, name string) (string, bool, error)

	CSSProperty(ctx context.Context, name string) (string, error)
	Location(ctx context.Context) (entities.Location, error)

	Click(ctx context.Context) error
	DoubleClick(ctx context.Context) error
	SetValue(ctx context.Context, value string) error
	AddValue(ctx context.Context, value string) error
	ClearValue(ctx context.Context) error
	MoveTo(ctx context.Context, xOffset, yOffset int) error
	ScrollIntoView(ctx context.Context) error

	// WaitFor blocks until the node reaches state or timeout elapses
	WaitFor(ctx context.Context, state WaitState, timeout time.Duration) error

	// Execute runs a JavaScript function expression in the page. The function
	// receives the resolved element as its first parameter followed by args.
	Execute(ctx context.Context, script string, args ...any) (any, error)

	// Parent returns the node's parent element
	Parent(ctx context.Context) (Node, error)

	// Find returns a lazy node for the first match of selector below this node
	Find(ctx context.Context, selector entities.Selector) (Node, error)
}
