package extensions

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/hugr-lab/substrait-go/errdefs"
)

// Assignment is one line of a return-type derivation program.
type Assignment struct {
	Name string
	Expr IntExpr
}

// IntExpr is an integer expression over bound type parameters.
type IntExpr interface {
	eval(vars map[string]int64) (int64, error)
}

type intLit int64

func (l intLit) eval(map[string]int64) (int64, error) { return int64(l), nil }

type intVar string

func (v intVar) eval(vars map[string]int64) (int64, error) {
	n, ok := vars[string(v)]
	if !ok {
		return 0, errdefs.Resolutionf("unbound parameter %s", string(v))
	}
	return n, nil
}

type intBinary struct {
	op          string
	left, right IntExpr
}

func (e intBinary) eval(vars map[string]int64) (int64, error) {
	l, err := e.left.eval(vars)
	if err != nil {
		return 0, err
	}
	r, err := e.right.eval(vars)
	if err != nil {
		return 0, err
	}
	switch e.op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return 0, errdefs.Resolutionf("division by zero")
		}
		return l / r, nil
	case ">":
		return boolInt(l > r), nil
	case "<":
		return boolInt(l < r), nil
	case ">=":
		return boolInt(l >= r), nil
	case "<=":
		return boolInt(l <= r), nil
	case "==":
		return boolInt(l == r), nil
	case "!=":
		return boolInt(l != r), nil
	}
	return 0, errdefs.Unsupportedf("operator %s", e.op)
}

type intCall struct {
	fn   string
	args []IntExpr
}

func (e intCall) eval(vars map[string]int64) (int64, error) {
	vals := make([]int64, len(e.args))
	for i, a := range e.args {
		v, err := a.eval(vars)
		if err != nil {
			return 0, err
		}
		vals[i] = v
	}
	switch e.fn {
	case "max", "min":
		if len(vals) == 0 {
			return 0, errdefs.Resolutionf("%s needs arguments", e.fn)
		}
		out := vals[0]
		for _, v := range vals[1:] {
			if (e.fn == "max" && v > out) || (e.fn == "min" && v < out) {
				out = v
			}
		}
		return out, nil
	case "abs":
		if len(vals) != 1 {
			return 0, errdefs.Resolutionf("abs takes one argument")
		}
		if vals[0] < 0 {
			return -vals[0], nil
		}
		return vals[0], nil
	}
	return 0, errdefs.Unsupportedf("function %s", e.fn)
}

type intCond struct {
	cond, then, els IntExpr
}

func (e intCond) eval(vars map[string]int64) (int64, error) {
	c, err := e.cond.eval(vars)
	if err != nil {
		return 0, err
	}
	if c != 0 {
		return e.then.eval(vars)
	}
	return e.els.eval(vars)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func parseAssignment(line string) (Assignment, error) {
	name, rhs, ok := strings.Cut(line, "=")
	if !ok || strings.HasPrefix(rhs, "=") {
		return Assignment{}, fmt.Errorf("invalid derivation line %q", line)
	}
	name = strings.TrimSpace(name)
	p := &exprParser{src: rhs}
	e, err := p.ternary()
	if err != nil {
		return Assignment{}, fmt.Errorf("invalid derivation line %q: %w", line, err)
	}
	p.skip()
	if p.pos != len(p.src) {
		return Assignment{}, fmt.Errorf("invalid derivation line %q: trailing input", line)
	}
	return Assignment{Name: name, Expr: e}, nil
}

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) skip() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *exprParser) accept(tok string) bool {
	p.skip()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *exprParser) ternary() (IntExpr, error) {
	cond, err := p.comparison()
	if err != nil {
		return nil, err
	}
	if !p.accept("?") {
		return cond, nil
	}
	then, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if !p.accept(":") {
		return nil, fmt.Errorf("expected ':' at %d", p.pos)
	}
	els, err := p.ternary()
	if err != nil {
		return nil, err
	}
	return intCond{cond: cond, then: then, els: els}, nil
}

func (p *exprParser) comparison() (IntExpr, error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	for _, op := range []string{">=", "<=", "==", "!=", ">", "<"} {
		if p.accept(op) {
			right, err := p.additive()
			if err != nil {
				return nil, err
			}
			return intBinary{op: op, left: left, right: right}, nil
		}
	}
	return left, nil
}

func (p *exprParser) additive() (IntExpr, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.accept("+"):
			op = "+"
		case p.accept("-"):
			op = "-"
		default:
			return left, nil
		}
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = intBinary{op: op, left: left, right: right}
	}
}

func (p *exprParser) term() (IntExpr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.accept("*"):
			op = "*"
		case p.accept("/"):
			op = "/"
		default:
			return left, nil
		}
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = intBinary{op: op, left: left, right: right}
	}
}

func (p *exprParser) unary() (IntExpr, error) {
	if p.accept("-") {
		e, err := p.unary()
		if err != nil {
			return nil, err
		}
		return intBinary{op: "-", left: intLit(0), right: e}, nil
	}
	return p.primary()
}

func (p *exprParser) primary() (IntExpr, error) {
	if p.accept("(") {
		e, err := p.ternary()
		if err != nil {
			return nil, err
		}
		if !p.accept(")") {
			return nil, fmt.Errorf("expected ')' at %d", p.pos)
		}
		return e, nil
	}
	p.skip()
	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		p.pos++
	}
	tok := p.src[start:p.pos]
	if tok == "" {
		return nil, fmt.Errorf("unexpected input at %d", p.pos)
	}
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return intLit(n), nil
	}
	if !p.accept("(") {
		return intVar(tok), nil
	}
	call := intCall{fn: strings.ToLower(tok)}
	if p.accept(")") {
		return call, nil
	}
	for {
		a, err := p.ternary()
		if err != nil {
			return nil, err
		}
		call.args = append(call.args, a)
		if p.accept(")") {
			return call, nil
		}
		if !p.accept(",") {
			return nil, fmt.Errorf("expected ',' or ')' at %d", p.pos)
		}
	}
}
