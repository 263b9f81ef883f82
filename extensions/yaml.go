package extensions

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// raw structures for the simple-extension YAML layout.
type rawLibrary struct {
	URN                string        `yaml:"urn"`
	ScalarFunctions    []rawFunction `yaml:"scalar_functions"`
	AggregateFunctions []rawFunction `yaml:"aggregate_functions"`
	WindowFunctions    []rawFunction `yaml:"window_functions"`
}

type rawFunction struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Impls       []rawImpl `yaml:"impls"`
}

type rawImpl struct {
	Args         []rawArg             `yaml:"args"`
	Options      map[string]rawOption `yaml:"options"`
	Variadic     *rawVariadic         `yaml:"variadic"`
	Nullability  string               `yaml:"nullability"`
	Return       string               `yaml:"return"`
	Intermediate string               `yaml:"intermediate"`
	Decomposable string               `yaml:"decomposable"`
	WindowType   string               `yaml:"window_type"`
}

type rawArg struct {
	Name    string   `yaml:"name"`
	Value   string   `yaml:"value"`
	Type    string   `yaml:"type"`
	Options []string `yaml:"options"`
}

type rawOption struct {
	Values []string `yaml:"values"`
}

type rawVariadic struct {
	Min                  int    `yaml:"min"`
	Max                  int    `yaml:"max"`
	ParameterConsistency string `yaml:"parameterConsistency"`
}

// LoadYAML reads a simple-extension YAML document and returns its variants as
// a collection under uri.
func LoadYAML(uri string, r io.Reader) (*Collection, error) {
	doc, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read extension YAML %s: %w", uri, err)
	}
	var lib rawLibrary
	dec := yaml.NewDecoder(bytes.NewReader(stripDirectives(doc)))
	if err := dec.Decode(&lib); err != nil {
		return nil, fmt.Errorf("failed to decode extension YAML %s: %w", uri, err)
	}
	c, _ := NewCollection()
	groups := []struct {
		kind  FunctionKind
		funcs []rawFunction
	}{
		{KindScalar, lib.ScalarFunctions},
		{KindAggregate, lib.AggregateFunctions},
		{KindWindow, lib.WindowFunctions},
	}
	for _, g := range groups {
		for _, f := range g.funcs {
			for i, impl := range f.Impls {
				v, err := buildVariant(uri, g.kind, f, impl)
				if err != nil {
					return nil, fmt.Errorf("%s: %s impl %d: %w", uri, f.Name, i, err)
				}
				if err := c.Add(v); err != nil {
					return nil, fmt.Errorf("%s: %w", uri, err)
				}
			}
		}
	}
	return c, nil
}

// stripDirectives drops the directive prologue of a document. yaml.v3 only
// accepts "%YAML 1.1" while published extension files declare 1.2.
func stripDirectives(doc []byte) []byte {
	rest := doc
	for len(rest) > 0 {
		line, tail, _ := bytes.Cut(rest, []byte("\n"))
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 && trimmed[0] != '%' && trimmed[0] != '#' {
			return rest
		}
		rest = tail
	}
	return rest
}

// LoadYAMLString is LoadYAML over an in-memory document.
func LoadYAMLString(uri, doc string) (*Collection, error) {
	return LoadYAML(uri, strings.NewReader(doc))
}

func buildVariant(uri string, kind FunctionKind, f rawFunction, impl rawImpl) (*Variant, error) {
	v := &Variant{
		URI:          uri,
		Name:         f.Name,
		Description:  f.Description,
		Kind:         kind,
		Nullability:  NullabilityHandling(strings.ToUpper(impl.Nullability)),
		Decomposable: impl.Decomposable,
		WindowType:   impl.WindowType,
	}
	if v.Nullability == "" {
		v.Nullability = NullabilityMirror
	}
	switch v.Nullability {
	case NullabilityMirror, NullabilityDeclared, NullabilityDiscrete:
	default:
		return nil, fmt.Errorf("unknown nullability handling %q", impl.Nullability)
	}
	for i, a := range impl.Args {
		p := Param{Name: a.Name}
		switch {
		case len(a.Options) > 0:
			p.Kind = ArgEnum
			p.Options = a.Options
		case a.Value != "":
			pat, err := ParsePattern(a.Value)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			p.Kind, p.Pattern = ArgValue, pat
		case a.Type != "":
			pat, err := ParsePattern(a.Type)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			p.Kind, p.Pattern = ArgType, pat
		default:
			return nil, fmt.Errorf("argument %d has neither value, type nor options", i)
		}
		v.Params = append(v.Params, p)
	}
	if len(impl.Options) > 0 {
		v.Options = make(map[string][]string, len(impl.Options))
		for name, o := range impl.Options {
			v.Options[name] = o.Values
		}
	}
	if impl.Variadic != nil {
		v.Variadic = &Variadic{
			Min:          impl.Variadic.Min,
			Max:          impl.Variadic.Max,
			Inconsistent: strings.EqualFold(impl.Variadic.ParameterConsistency, "INCONSISTENT"),
		}
	}
	if impl.Return == "" {
		return nil, fmt.Errorf("missing return type")
	}
	ret, err := ParseReturn(impl.Return)
	if err != nil {
		return nil, fmt.Errorf("return: %w", err)
	}
	v.Return = ret
	if impl.Intermediate != "" {
		inter, err := ParseReturn(impl.Intermediate)
		if err != nil {
			return nil, fmt.Errorf("intermediate: %w", err)
		}
		v.Intermediate = inter
	}
	return v, nil
}
