package entities

import "strings"

// Selector identifies zero or more nodes in a live document (CSS or XPath).
type Selector string

// IsXPath reports whether the selector uses path-query syntax.
func (s Selector) IsXPath() bool {
	str := strings.TrimSpace(string(s))
	return strings.HasPrefix(str, "/") ||
		strings.HasPrefix(str, "(") ||
		strings.HasPrefix(str, "xpath=")
}

// XPath returns the path expression without any "xpath=" engine prefix.
func (s Selector) XPath() string {
	return strings.TrimPrefix(strings.TrimSpace(string(s)), "xpath=")
}

func (s Selector) String() string {
	return string(s)
}

// SelectorMap maps logical element names to selectors. A value is either a
// string / Selector leaf or a nested map grouping related selectors.
type SelectorMap map[string]any

// Location is the position of an element's top-left corner on the page.
type Location struct {
	X int `json:"x"`
	Y int `json:"y"`
}
