package expr

import "math"

// MaxDepth bounds nested unary/parenthesis/exponent productions per call.
const MaxDepth = 1000

// parser is the cursor for one Evaluate call. Only the first failure is kept.
type parser struct {
	src   string
	pos   int
	depth int
	err   *Error
}

// Evaluate parses input and returns its finite value, or an *Error locating
// the first failure.
func Evaluate(input string) (float64, error) {
	p := &parser{src: input}
	v, ok := p.expr()
	if !ok {
		return 0, p.err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		p.fail(KindTrailingInput, "unexpected token")
		return 0, p.err
	}
	return v, nil
}

func (p *parser) expr() (float64, bool) {
	v, ok := p.term()
	if !ok {
		return 0, false
	}
	for {
		switch {
		case p.match('+'):
			rhs, ok := p.term()
			if !ok {
				return 0, false
			}
			if v, ok = p.finite(v + rhs); !ok {
				return 0, false
			}
		case p.match('-'):
			rhs, ok := p.term()
			if !ok {
				return 0, false
			}
			if v, ok = p.finite(v - rhs); !ok {
				return 0, false
			}
		default:
			return v, true
		}
	}
}

func (p *parser) term() (float64, bool) {
	v, ok := p.power()
	if !ok {
		return 0, false
	}
	for {
		switch {
		case p.match('*'):
			rhs, ok := p.power()
			if !ok {
				return 0, false
			}
			if v, ok = p.finite(v * rhs); !ok {
				return 0, false
			}
		case p.match('/'):
			rhs, ok := p.power()
			if !ok {
				return 0, false
			}
			if rhs == 0 {
				return p.fail(KindDivisionByZero, "division by zero")
			}
			if v, ok = p.finite(v / rhs); !ok {
				return 0, false
			}
		default:
			return v, true
		}
	}
}

func (p *parser) power() (float64, bool) {
	base, ok := p.unary()
	if !ok {
		return 0, false
	}
	if !p.match('^') {
		return base, true
	}
	exp, ok := p.power()
	if !ok {
		return 0, false
	}
	r := math.Pow(base, exp)
	if math.IsInf(r, 0) || math.IsNaN(r) {
		return p.fail(KindInvalidExponent, "invalid exponentiation")
	}
	return r, true
}

func (p *parser) unary() (float64, bool) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > MaxDepth {
		return p.fail(KindTooDeep, "expression too deeply nested")
	}

	if p.match('+') {
		return p.unary()
	}
	if p.match('-') {
		v, ok := p.unary()
		return -v, ok
	}
	return p.primary()
}

func (p *parser) primary() (float64, bool) {
	if p.match('(') {
		v, ok := p.expr()
		if !ok {
			return 0, false
		}
		if !p.match(')') {
			return p.fail(KindSyntax, "expected ')'")
		}
		return v, true
	}
	return p.number()
}

func (p *parser) number() (float64, bool) {
	p.skipSpace()
	n := scanNumber(p.src[p.pos:])
	if n == 0 {
		return p.fail(KindSyntax, "expected number or '('")
	}
	v, err := parseNumber(p.src[p.pos : p.pos+n])
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return p.fail(KindInvalidNumber, "invalid number")
	}
	p.pos += n
	return v, true
}

func (p *parser) finite(v float64) (float64, bool) {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return p.fail(KindOverflow, "numeric overflow")
	}
	return v, true
}

func (p *parser) fail(kind Kind, reason string) (float64, bool) {
	if p.err == nil {
		p.err = &Error{
			Kind:   kind,
			Reason: reason,
			Pos:    p.pos,
			Near:   describeAt(p.src, p.pos),
		}
	}
	return 0, false
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *parser) match(c byte) bool {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
