package extensions

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/types"
)

// TypePattern is a type expression from a signature library: a concrete type,
// a wildcard ("any", "any1"), or a parameterized type whose parameters may be
// integer literals or names bound during matching ("decimal<P1,S1>").
type TypePattern struct {
	// ID is the variant; empty for wildcards.
	ID types.TypeID
	// Wildcard is "any" or "anyN" when ID is empty.
	Wildcard string
	// Nullable is set when the pattern carries a '?' suffix.
	Nullable bool
	// Params are the integer parameters of fixedchar/varchar/fixedbinary/decimal,
	// each an integer literal or a binding name.
	Params []string
	// Children are the element patterns of list/map/struct.
	Children []TypePattern
}

// Bindings maps wildcard and parameter names to their bound values.
type Bindings struct {
	Types  map[string]types.Type
	Values map[string]int64
}

func newBindings() Bindings {
	return Bindings{Types: map[string]types.Type{}, Values: map[string]int64{}}
}

func (b Bindings) clone() Bindings {
	c := newBindings()
	for k, v := range b.Types {
		c.Types[k] = v
	}
	for k, v := range b.Values {
		c.Values[k] = v
	}
	return c
}

// ConcretePattern wraps a concrete type as a pattern.
func ConcretePattern(t types.Type) TypePattern {
	p := TypePattern{ID: t.ID(), Nullable: t.Nullable()}
	switch t := t.(type) {
	case types.FixedCharType:
		p.Params = []string{strconv.Itoa(int(t.Length))}
	case types.VarCharType:
		p.Params = []string{strconv.Itoa(int(t.Length))}
	case types.FixedBinaryType:
		p.Params = []string{strconv.Itoa(int(t.Length))}
	case types.DecimalType:
		p.Params = []string{strconv.Itoa(int(t.Precision)), strconv.Itoa(int(t.Scale))}
	case types.ListType:
		p.Children = []TypePattern{ConcretePattern(t.Element)}
	case types.MapType:
		p.Children = []TypePattern{ConcretePattern(t.Key), ConcretePattern(t.Value)}
	case types.StructType:
		for _, f := range t.Fields {
			p.Children = append(p.Children, ConcretePattern(f))
		}
	}
	return p
}

// WildcardPattern returns the pattern "any" or "anyN".
func WildcardPattern(name string) TypePattern {
	return TypePattern{Wildcard: name}
}

// IsWildcard reports whether the pattern is any/anyN.
func (p TypePattern) IsWildcard() bool { return p.Wildcard != "" }

// IsConcrete reports whether the pattern has no wildcards and no named parameters.
func (p TypePattern) IsConcrete() bool {
	if p.IsWildcard() {
		return false
	}
	for _, param := range p.Params {
		if _, err := strconv.ParseInt(param, 10, 32); err != nil {
			return false
		}
	}
	for _, c := range p.Children {
		if !c.IsConcrete() {
			return false
		}
	}
	return true
}

// ShortName returns the signature abbreviation used in compound names.
func (p TypePattern) ShortName() string {
	if p.IsWildcard() {
		return p.Wildcard
	}
	return p.ID.ShortName()
}

func (p TypePattern) String() string {
	if p.IsWildcard() {
		if p.Nullable {
			return p.Wildcard + "?"
		}
		return p.Wildcard
	}
	var sb strings.Builder
	sb.WriteString(string(p.ID))
	if p.Nullable {
		sb.WriteByte('?')
	}
	var parts []string
	parts = append(parts, p.Params...)
	for _, c := range p.Children {
		parts = append(parts, c.String())
	}
	if len(parts) > 0 {
		sb.WriteString("<" + strings.Join(parts, ",") + ">")
	}
	return sb.String()
}

// Match reports whether t satisfies the pattern, ignoring top-level nullability,
// extending b with any new bindings. On failure b is left unchanged.
func (p TypePattern) Match(t types.Type, b Bindings) bool {
	scratch := b.clone()
	if !p.match(t, scratch) {
		return false
	}
	for k, v := range scratch.Types {
		b.Types[k] = v
	}
	for k, v := range scratch.Values {
		b.Values[k] = v
	}
	return true
}

func (p TypePattern) match(t types.Type, b Bindings) bool {
	if p.IsWildcard() {
		if p.Wildcard == "any" {
			return true
		}
		if bound, ok := b.Types[p.Wildcard]; ok {
			return types.EqualIgnoringNullability(bound, t)
		}
		b.Types[p.Wildcard] = types.AsRequired(t)
		return true
	}
	if t.ID() != p.ID {
		return false
	}
	var actual []int64
	switch t := t.(type) {
	case types.FixedCharType:
		actual = []int64{int64(t.Length)}
	case types.VarCharType:
		actual = []int64{int64(t.Length)}
	case types.FixedBinaryType:
		actual = []int64{int64(t.Length)}
	case types.DecimalType:
		actual = []int64{int64(t.Precision), int64(t.Scale)}
	case types.ListType:
		return len(p.Children) == 0 || (len(p.Children) == 1 && p.Children[0].match(t.Element, b))
	case types.MapType:
		return len(p.Children) == 0 ||
			(len(p.Children) == 2 && p.Children[0].match(t.Key, b) && p.Children[1].match(t.Value, b))
	case types.StructType:
		if len(p.Children) == 0 {
			return true
		}
		if len(p.Children) != len(t.Fields) {
			return false
		}
		for i, c := range p.Children {
			if !c.match(t.Fields[i], b) {
				return false
			}
		}
		return true
	}
	if len(p.Params) == 0 {
		return true
	}
	if len(p.Params) != len(actual) {
		return false
	}
	for i, param := range p.Params {
		if n, err := strconv.ParseInt(param, 10, 64); err == nil {
			if n != actual[i] {
				return false
			}
			continue
		}
		if bound, ok := b.Values[param]; ok {
			if bound != actual[i] {
				return false
			}
			continue
		}
		b.Values[param] = actual[i]
	}
	return true
}

// Evaluate builds the concrete type described by the pattern under b. The
// nullability comes from the pattern's '?' marker.
func (p TypePattern) Evaluate(b Bindings) (types.Type, error) {
	c := types.Creator{Nullable: p.Nullable}
	if p.IsWildcard() {
		bound, ok := b.Types[p.Wildcard]
		if !ok {
			return nil, errdefs.Resolutionf("wildcard %s is not bound", p.Wildcard)
		}
		return bound.WithNullability(p.Nullable), nil
	}
	params := make([]int32, len(p.Params))
	for i, param := range p.Params {
		if n, err := strconv.ParseInt(param, 10, 32); err == nil {
			params[i] = int32(n)
			continue
		}
		v, ok := b.Values[param]
		if !ok {
			return nil, errdefs.Resolutionf("type parameter %s is not bound", param)
		}
		params[i] = int32(v)
	}
	children := make([]types.Type, len(p.Children))
	for i, child := range p.Children {
		ct, err := child.Evaluate(b)
		if err != nil {
			return nil, err
		}
		children[i] = ct
	}
	switch p.ID {
	case types.TypeIDFixedChar, types.TypeIDVarChar, types.TypeIDFixedBinary:
		if len(params) != 1 {
			return nil, errdefs.Resolutionf("%s needs one parameter", p.ID)
		}
		switch p.ID {
		case types.TypeIDFixedChar:
			return c.FixedChar(params[0])
		case types.TypeIDVarChar:
			return c.VarChar(params[0])
		default:
			return c.FixedBinary(params[0])
		}
	case types.TypeIDDecimal:
		if len(params) != 2 {
			return nil, errdefs.Resolutionf("decimal needs precision and scale")
		}
		return c.Decimal(params[0], params[1])
	case types.TypeIDList:
		if len(children) != 1 {
			return nil, errdefs.Resolutionf("list needs an element type")
		}
		return c.List(children[0]), nil
	case types.TypeIDMap:
		if len(children) != 2 {
			return nil, errdefs.Resolutionf("map needs key and value types")
		}
		return c.Map(children[0], children[1]), nil
	case types.TypeIDStruct:
		return c.Struct(children...), nil
	}
	return c.Primitive(p.ID)
}

// ParsePattern parses a signature-library type expression such as "i32",
// "string?", "DECIMAL<P1,S1>", "list<any1>" or "any".
func ParsePattern(s string) (TypePattern, error) {
	ps := &patternParser{src: strings.TrimSpace(s)}
	p, err := ps.parse()
	if err != nil {
		return TypePattern{}, fmt.Errorf("invalid type pattern %q: %w", s, err)
	}
	ps.skipSpace()
	if ps.pos != len(ps.src) {
		return TypePattern{}, fmt.Errorf("invalid type pattern %q: trailing input at %d", s, ps.pos)
	}
	return p, nil
}

// MustParsePattern is ParsePattern that panics on error.
func MustParsePattern(s string) TypePattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

type patternParser struct {
	src string
	pos int
}

func (ps *patternParser) skipSpace() {
	for ps.pos < len(ps.src) && ps.src[ps.pos] == ' ' {
		ps.pos++
	}
}

func (ps *patternParser) ident() string {
	ps.skipSpace()
	start := ps.pos
	for ps.pos < len(ps.src) {
		r := rune(ps.src[ps.pos])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '!' {
			break
		}
		ps.pos++
	}
	return ps.src[start:ps.pos]
}

func (ps *patternParser) peek() byte {
	ps.skipSpace()
	if ps.pos < len(ps.src) {
		return ps.src[ps.pos]
	}
	return 0
}

func (ps *patternParser) parse() (TypePattern, error) {
	name := ps.ident()
	if name == "" {
		return TypePattern{}, errdefs.ErrUnsupported
	}
	var p TypePattern
	lower := strings.ToLower(name)
	switch {
	case lower == "any" || (strings.HasPrefix(lower, "any") && isDigits(lower[3:])):
		p.Wildcard = lower
	case strings.HasPrefix(lower, "u!"):
		return TypePattern{}, errdefs.Unsupportedf("user-defined type %s", name)
	default:
		id, ok := types.IDFromShortName(lower)
		if !ok {
			return TypePattern{}, errdefs.Unsupportedf("type %s", name)
		}
		p.ID = id
	}
	if ps.peek() == '?' {
		ps.pos++
		p.Nullable = true
	}
	if ps.peek() != '<' {
		return p, nil
	}
	if p.IsWildcard() {
		return TypePattern{}, fmt.Errorf("wildcard %s takes no parameters", name)
	}
	ps.pos++
	for {
		switch p.ID {
		case types.TypeIDList, types.TypeIDMap, types.TypeIDStruct:
			child, err := ps.parse()
			if err != nil {
				return TypePattern{}, err
			}
			p.Children = append(p.Children, child)
		default:
			param := ps.ident()
			if param == "" {
				return TypePattern{}, fmt.Errorf("expected parameter at %d", ps.pos)
			}
			p.Params = append(p.Params, param)
		}
		switch ps.peek() {
		case ',':
			ps.pos++
			continue
		case '>':
			ps.pos++
			return p, nil
		default:
			return TypePattern{}, fmt.Errorf("expected ',' or '>' at %d", ps.pos)
		}
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
