package extensions

import (
	"github.com/hugr-lab/substrait-go/errdefs"
)

// URIEntry declares a library URI under an anchor.
type URIEntry struct {
	Anchor uint32
	URI    string
}

// FunctionEntry declares a function variant under an anchor.
type FunctionEntry struct {
	Anchor    uint32
	URIAnchor uint32
	Name      string // compound name
}

// Collector interns variants to anchors during one encode pass. Anchors are
// assigned from zero in first-use order, so equal plans encoded with fresh
// collectors get equal anchor tables.
type Collector struct {
	uris      []URIEntry
	uriIndex  map[string]uint32
	funcs     []FunctionEntry
	funcIndex map[Key]uint32
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{
		uriIndex:  map[string]uint32{},
		funcIndex: map[Key]uint32{},
	}
}

// URIAnchor returns the anchor of uri, assigning the next one on first use.
func (c *Collector) URIAnchor(uri string) uint32 {
	if a, ok := c.uriIndex[uri]; ok {
		return a
	}
	a := uint32(len(c.uris))
	c.uriIndex[uri] = a
	c.uris = append(c.uris, URIEntry{Anchor: a, URI: uri})
	return a
}

// FunctionAnchor returns the anchor of v, assigning the next one on first use.
func (c *Collector) FunctionAnchor(v *Variant) uint32 {
	k := v.Key()
	if a, ok := c.funcIndex[k]; ok {
		return a
	}
	uriAnchor := c.URIAnchor(v.URI)
	a := uint32(len(c.funcs))
	c.funcIndex[k] = a
	c.funcs = append(c.funcs, FunctionEntry{Anchor: a, URIAnchor: uriAnchor, Name: k.Name})
	return a
}

// URIs returns the URI table in anchor order.
func (c *Collector) URIs() []URIEntry {
	return append([]URIEntry(nil), c.uris...)
}

// Functions returns the function table in anchor order.
func (c *Collector) Functions() []FunctionEntry {
	return append([]FunctionEntry(nil), c.funcs...)
}

// Directory maps anchors back to variants during one decode pass. It is built
// from the plan's anchor table before any expression is reconstructed.
type Directory struct {
	uris  map[uint32]string
	funcs map[uint32]*Variant
}

// NewDirectory resolves every function entry against c. Duplicate anchors,
// entries pointing at undeclared URIs and signatures missing from c fail.
func NewDirectory(uris []URIEntry, funcs []FunctionEntry, c *Collection) (*Directory, error) {
	d := &Directory{
		uris:  make(map[uint32]string, len(uris)),
		funcs: make(map[uint32]*Variant, len(funcs)),
	}
	for _, u := range uris {
		if _, dup := d.uris[u.Anchor]; dup {
			return nil, errdefs.Integrityf("duplicate URI anchor %d", u.Anchor)
		}
		d.uris[u.Anchor] = u.URI
	}
	for _, f := range funcs {
		if _, dup := d.funcs[f.Anchor]; dup {
			return nil, errdefs.Integrityf("duplicate function anchor %d", f.Anchor)
		}
		uri, ok := d.uris[f.URIAnchor]
		if !ok {
			return nil, errdefs.AnchorError{Kind: "URI", Anchor: f.URIAnchor}
		}
		if c == nil {
			return nil, errdefs.Resolutionf("no signature library for %s#%s", uri, f.Name)
		}
		v, ok := c.Lookup(Key{URI: uri, Name: f.Name})
		if !ok {
			return nil, errdefs.Resolutionf("signature %s#%s not in library", uri, f.Name)
		}
		d.funcs[f.Anchor] = v
	}
	return d, nil
}

// Function returns the variant declared under anchor.
func (d *Directory) Function(anchor uint32) (*Variant, error) {
	v, ok := d.funcs[anchor]
	if !ok {
		return nil, errdefs.AnchorError{Kind: "function", Anchor: anchor}
	}
	return v, nil
}

// Len returns the number of declared functions.
func (d *Directory) Len() int {
	return len(d.funcs)
}
