// Package pageobject turns selector maps into element getters and provides the
// base every page object embeds.
package pageobject

import (
	"fmt"
	"sort"

	"shopflow/application/element"
	"shopflow/domain/entities"
	"shopflow/domain/errs"
	"shopflow/domain/interfaces"
)

// Getters is a flat namespace of named selectors. Every lookup builds a new
// element.Handle; nothing is cached.
type Getters struct {
	driver    interfaces.Driver
	selectors map[string]entities.Selector
	opts      []element.Option
}

// Install flattens selectors into a Getters namespace. Nested maps install
// their leaves into the same namespace. A leaf name defined twice anywhere in
// the tree, an empty selector or a value that is neither a selector nor a map
// is rejected.
func Install(driver interfaces.Driver, selectors entities.SelectorMap, opts ...element.Option) (*Getters, error) {
	if driver == nil {
		return nil, errs.New(errs.InvalidArgument, "installing getters requires a driver")
	}
	g := &Getters{
		driver:    driver,
		selectors: map[string]entities.Selector{},
		opts:      opts,
	}
	paths := map[string]string{}
	if err := g.install(selectors, "", paths); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Getters) install(m map[string]any, prefix string, paths map[string]string) error {
	for _, name := range sortedKeys(m) {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}

		switch v := m[name].(type) {
		case string:
			if err := g.define(name, entities.Selector(v), path, paths); err != nil {
				return err
			}
		case entities.Selector:
			if err := g.define(name, v, path, paths); err != nil {
				return err
			}
		case entities.SelectorMap:
			if err := g.install(v, path, paths); err != nil {
				return err
			}
		case map[string]any:
			if err := g.install(v, path, paths); err != nil {
				return err
			}
		case map[string]string:
			nested := make(map[string]any, len(v))
			for k, s := range v {
				nested[k] = s
			}
			if err := g.install(nested, path, paths); err != nil {
				return err
			}
		default:
			return errs.New(errs.InvalidArgument, fmt.Sprintf("selector %q has unsupported type %T", path, v))
		}
	}
	return nil
}

func (g *Getters) define(name string, selector entities.Selector, path string, paths map[string]string) error {
	if selector == "" {
		return errs.New(errs.InvalidArgument, fmt.Sprintf("selector %q is empty", path))
	}
	if prev, ok := paths[name]; ok {
		return errs.New(errs.InvalidArgument, fmt.Sprintf("getter %q defined twice (%s and %s)", name, prev, path))
	}
	paths[name] = path
	g.selectors[name] = selector
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns a new handle for name.
func (g *Getters) Get(name string) (*element.Handle, error) {
	selector, ok := g.selectors[name]
	if !ok {
		return nil, errs.New(errs.NotFound, fmt.Sprintf("no getter named %q", name))
	}
	return element.New(g.driver, selector, name, g.opts...)
}

// Must returns a new handle for name and panics if name was never installed.
// Page accessors use it for names declared in their own selector map.
func (g *Getters) Must(name string) *element.Handle {
	h, err := g.Get(name)
	if err != nil {
		panic(err)
	}
	return h
}

// Selector returns the selector installed under name.
func (g *Getters) Selector(name string) (entities.Selector, bool) {
	s, ok := g.selectors[name]
	return s, ok
}

// Names returns every installed getter name, sorted.
func (g *Getters) Names() []string {
	names := make([]string, 0, len(g.selectors))
	for name := range g.selectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flatten returns the leaf name → selector view of m without validating it.
func Flatten(m entities.SelectorMap) map[string]entities.Selector {
	out := map[string]entities.Selector{}
	flattenInto(m, out)
	return out
}

func flattenInto(m map[string]any, out map[string]entities.Selector) {
	for name, v := range m {
		switch v := v.(type) {
		case string:
			out[name] = entities.Selector(v)
		case entities.Selector:
			out[name] = v
		case entities.SelectorMap:
			flattenInto(v, out)
		case map[string]any:
			flattenInto(v, out)
		case map[string]string:
			for k, s := range v {
				out[k] = entities.Selector(s)
			}
		}
	}
}

// Merge returns a copy of base where every leaf whose name appears in
// override takes the override's selector. Override names missing from base
// are added at the top level.
func Merge(base, override entities.SelectorMap) entities.SelectorMap {
	flat := Flatten(override)
	used := map[string]bool{}
	merged := mergeInto(base, flat, used)
	for name, sel := range flat {
		if !used[name] {
			merged[name] = string(sel)
		}
	}
	return merged
}

func mergeInto(m map[string]any, flat map[string]entities.Selector, used map[string]bool) entities.SelectorMap {
	out := make(entities.SelectorMap, len(m))
	for name, v := range m {
		switch v := v.(type) {
		case entities.SelectorMap:
			out[name] = mergeInto(v, flat, used)
		case map[string]any:
			out[name] = mergeInto(v, flat, used)
		default:
			if sel, ok := flat[name]; ok {
				out[name] = string(sel)
				used[name] = true
				continue
			}
			out[name] = v
		}
	}
	return out
}
