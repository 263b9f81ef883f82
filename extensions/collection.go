package extensions

import (
	"fmt"
	"sort"
)

// Collection is a loaded signature library: every known variant, addressable
// by key and by base name.
type Collection struct {
	byKey  map[Key]*Variant
	byName map[string][]*Variant
	uris   []string
}

// NewCollection builds a collection from variants. Duplicate keys are rejected.
func NewCollection(variants ...*Variant) (*Collection, error) {
	c := &Collection{
		byKey:  map[Key]*Variant{},
		byName: map[string][]*Variant{},
	}
	for _, v := range variants {
		if err := c.Add(v); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add registers a variant.
func (c *Collection) Add(v *Variant) error {
	k := v.Key()
	if _, exists := c.byKey[k]; exists {
		return fmt.Errorf("duplicate function variant %s", k)
	}
	if !c.hasURI(v.URI) {
		c.uris = append(c.uris, v.URI)
	}
	c.byKey[k] = v
	c.byName[v.Name] = append(c.byName[v.Name], v)
	return nil
}

func (c *Collection) hasURI(uri string) bool {
	for _, u := range c.uris {
		if u == uri {
			return true
		}
	}
	return false
}

// Merge returns a new collection holding the variants of both.
func (c *Collection) Merge(other *Collection) (*Collection, error) {
	out, _ := NewCollection()
	for _, src := range []*Collection{c, other} {
		if src == nil {
			continue
		}
		for _, uri := range src.uris {
			for _, v := range src.variantsOf(uri) {
				if err := out.Add(v); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

func (c *Collection) variantsOf(uri string) []*Variant {
	var out []*Variant
	for _, vs := range c.byName {
		for _, v := range vs {
			if v.URI == uri {
				out = append(out, v)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompoundName() < out[j].CompoundName() })
	return out
}

// Lookup finds a variant by URI and compound name.
func (c *Collection) Lookup(k Key) (*Variant, bool) {
	v, ok := c.byKey[k]
	return v, ok
}

// Candidates returns the variants named name of the given kind, in load order.
func (c *Collection) Candidates(kind FunctionKind, name string) []*Variant {
	var out []*Variant
	for _, v := range c.byName[name] {
		if v.Kind == kind {
			out = append(out, v)
		}
	}
	return out
}

// URIs lists the libraries in load order.
func (c *Collection) URIs() []string {
	return append([]string(nil), c.uris...)
}

// Len returns the number of variants.
func (c *Collection) Len() int {
	return len(c.byKey)
}
