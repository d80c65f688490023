// Package audit checks page selector maps against static HTML documents, so
// a selector that no longer matches the markup is found without a browser.
// CSS selectors are matched with goquery, XPath selectors with htmlquery.
package audit

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"shopflow/application/pageobject"
	"shopflow/domain/entities"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Document is a parsed HTML document queryable by CSS and XPath.
type Document struct {
	Source string
	root   *html.Node
	doc    *goquery.Document
}

// Parse reads an HTML document; source names it in reports.
func Parse(source string, r io.Reader) (*Document, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}
	return &Document{Source: source, root: root, doc: goquery.NewDocumentFromNode(root)}, nil
}

// Count returns how many nodes match selector.
func (d *Document) Count(selector entities.Selector) (int, error) {
	if selector.IsXPath() {
		nodes, err := htmlquery.QueryAll(d.root, selector.XPath())
		if err != nil {
			return 0, fmt.Errorf("invalid xpath %q: %w", selector, err)
		}
		return len(nodes), nil
	}
	matcher, err := cascadia.Compile(string(selector))
	if err != nil {
		return 0, fmt.Errorf("invalid css selector %q: %w", selector, err)
	}
	return d.doc.FindMatcher(matcher).Length(), nil
}

// Texts returns the trimmed text of every node matching selector.
func (d *Document) Texts(selector entities.Selector) ([]string, error) {
	var texts []string
	if selector.IsXPath() {
		nodes, err := htmlquery.QueryAll(d.root, selector.XPath())
		if err != nil {
			return nil, fmt.Errorf("invalid xpath %q: %w", selector, err)
		}
		for _, n := range nodes {
			texts = append(texts, strings.TrimSpace(htmlquery.InnerText(n)))
		}
		return texts, nil
	}
	matcher, err := cascadia.Compile(string(selector))
	if err != nil {
		return nil, fmt.Errorf("invalid css selector %q: %w", selector, err)
	}
	d.doc.FindMatcher(matcher).Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(s.Text()))
	})
	return texts, nil
}

// Finding is the audit result of one getter.
type Finding struct {
	Name     string
	Selector entities.Selector
	// Matches counts matching nodes per document source
	Matches map[string]int
	Err     string
}

// Total is the number of matches across all documents.
func (f Finding) Total() int {
	total := 0
	for _, n := range f.Matches {
		total += n
	}
	return total
}

// OK reports whether the selector is valid and matched at least once.
func (f Finding) OK() bool {
	return f.Err == "" && f.Total() > 0
}

// Report is the audit of one page's selector map.
type Report struct {
	Page     string
	Findings []Finding
}

// Failed returns the findings that did not match anywhere or were invalid.
func (r Report) Failed() []Finding {
	var failed []Finding
	for _, f := range r.Findings {
		if !f.OK() {
			failed = append(failed, f)
		}
	}
	return failed
}

// Check matches every leaf of selectors against docs. A getter passes when
// any document contains a match, so a page spread over several documents
// (an iframe, a detail page) can be audited as one.
func Check(page string, selectors entities.SelectorMap, docs ...*Document) Report {
	flat := pageobject.Flatten(selectors)
	names := make([]string, 0, len(flat))
	for name := range flat {
		names = append(names, name)
	}
	sort.Strings(names)

	report := Report{Page: page}
	for _, name := range names {
		f := Finding{Name: name, Selector: flat[name], Matches: map[string]int{}}
		for _, doc := range docs {
			n, err := doc.Count(f.Selector)
			if err != nil {
				f.Err = err.Error()
				break
			}
			f.Matches[doc.Source] = n
		}
		report.Findings = append(report.Findings, f)
	}
	return report
}
