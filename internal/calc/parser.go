package calc

import "math"

// parser is a recursive-descent parser that evaluates while it parses.
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = ("-" | "+") unary | power
//	power   = primary [ "**" unary ]
//	primary = number | "(" expr ")"
type parser struct {
	tokens       []token
	pos          int
	depth        int
	maxMagnitude float64
	maxDepth     int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) enter(pos int) error {
	p.depth++
	if p.depth > p.maxDepth {
		return malformed(pos, "nested deeper than %d levels", p.maxDepth)
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) parseExpr() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}

	for {
		op := p.peek()
		if op.kind != tokPlus && op.kind != tokMinus {
			return v, nil
		}
		p.next()

		rhs, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op.kind == tokPlus {
			v += rhs
		} else {
			v -= rhs
		}
		if err := p.check(v, op.pos); err != nil {
			return 0, err
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	v, err := p.parseUnary()
	if err != nil {
		return 0, err
	}

	for {
		op := p.peek()
		if op.kind != tokStar && op.kind != tokSlash {
			return v, nil
		}
		p.next()

		rhs, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if op.kind == tokStar {
			v *= rhs
		} else {
			if rhs == 0 {
				return 0, &Error{Err: ErrDivisionByZero, Pos: op.pos}
			}
			v /= rhs
		}
		if err := p.check(v, op.pos); err != nil {
			return 0, err
		}
	}
}

func (p *parser) parseUnary() (float64, error) {
	tok := p.peek()
	if tok.kind != tokMinus && tok.kind != tokPlus {
		return p.parsePower()
	}
	p.next()

	if err := p.enter(tok.pos); err != nil {
		return 0, err
	}
	defer p.leave()

	v, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	if tok.kind == tokMinus {
		return -v, nil
	}
	return v, nil
}

func (p *parser) parsePower() (float64, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}

	op := p.peek()
	if op.kind != tokPow {
		return base, nil
	}
	p.next()

	// The exponent is parsed as a unary so that ** is right associative
	// and accepts a signed exponent: 2**3**2 == 2**9, 2**-1 == 0.5.
	exp, err := p.parseUnary()
	if err != nil {
		return 0, err
	}

	if base == 0 && exp < 0 {
		return 0, &Error{Err: ErrDivisionByZero, Pos: op.pos, Detail: "zero raised to a negative power"}
	}

	v := math.Pow(base, exp)
	if err := p.check(v, op.pos); err != nil {
		return 0, err
	}
	return v, nil
}

func (p *parser) parsePrimary() (float64, error) {
	tok := p.next()

	switch tok.kind {
	case tokNumber:
		if err := p.check(tok.value, tok.pos); err != nil {
			return 0, err
		}
		return tok.value, nil

	case tokLParen:
		if err := p.enter(tok.pos); err != nil {
			return 0, err
		}
		defer p.leave()

		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return 0, malformed(closing.pos, "missing closing parenthesis")
		}
		return v, nil

	case tokEOF:
		return 0, malformed(tok.pos, "unexpected end of expression")

	default:
		return 0, malformed(tok.pos, "unexpected %q", tok.text)
	}
}

func (p *parser) check(v float64, pos int) error {
	if math.IsNaN(v) {
		return &Error{Err: ErrUndefined, Pos: pos}
	}
	if math.IsInf(v, 0) || math.Abs(v) > p.maxMagnitude {
		return &Error{Err: ErrOverflow, Pos: pos, Detail: "result exceeds the allowed magnitude"}
	}
	return nil
}
