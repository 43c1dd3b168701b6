// Package calc evaluates the small arithmetic language accepted by /calc.
//
// Expressions may contain digits, decimal points, spaces, parentheses, the four
// binary operators, unary minus/plus and the power operator "**". Evaluation is done
// by a recursive-descent parser over float64; there is no dynamic evaluation of the
// input. Every intermediate value is checked against a magnitude ceiling so inputs
// such as 9**9**9**9 fail fast with ErrOverflow instead of burning CPU.
package calc

import (
	"math"
	"strconv"
)

const (
	// DefaultMaxMagnitude is the largest absolute value any intermediate result may take
	DefaultMaxMagnitude = 1e15
	// DefaultMaxLength is the longest expression, in bytes, that will be parsed
	DefaultMaxLength = 256
	// DefaultMaxDepth bounds nesting of parentheses and unary operators
	DefaultMaxDepth = 64
)

// Evaluator holds the limits applied while evaluating. Zero fields use the defaults.
type Evaluator struct {
	MaxMagnitude float64
	MaxLength    int
	MaxDepth     int
}

var defaultEvaluator = &Evaluator{}

// Evaluate evaluates expr with the default limits.
func Evaluate(expr string) (float64, error) {
	return defaultEvaluator.Evaluate(expr)
}

// Evaluate checks the character set, parses and evaluates expr.
func (e *Evaluator) Evaluate(expr string) (float64, error) {
	if err := CheckCharacters(expr); err != nil {
		return 0, err
	}

	if len(expr) > e.maxLength() {
		return 0, malformed(-1, "expression longer than %d characters", e.maxLength())
	}

	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 1 {
		return 0, malformed(0, "empty expression")
	}

	p := &parser{
		tokens:       tokens,
		maxMagnitude: e.maxMagnitude(),
		maxDepth:     e.maxDepth(),
	}

	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}

	if tok := p.peek(); tok.kind != tokEOF {
		if tok.kind == tokRParen {
			return 0, malformed(tok.pos, "unmatched closing parenthesis")
		}
		return 0, malformed(tok.pos, "unexpected %q", tok.text)
	}

	if v == 0 {
		v = 0 // drop negative zero
	}
	return v, nil
}

// CheckCharacters reports the first character outside the allowed set.
func CheckCharacters(expr string) error {
	for i, r := range expr {
		if !isAllowed(r) {
			return &Error{Err: ErrInvalidCharacter, Char: r, Pos: i}
		}
	}
	return nil
}

func isAllowed(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r == '+', r == '-', r == '*', r == '/', r == '(', r == ')', r == '.', r == ' ':
		return true
	}
	return false
}

// FormatResult renders v without a fractional part when it is integral.
func FormatResult(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (e *Evaluator) maxMagnitude() float64 {
	if e == nil || e.MaxMagnitude <= 0 {
		return DefaultMaxMagnitude
	}
	return e.MaxMagnitude
}

func (e *Evaluator) maxLength() int {
	if e == nil || e.MaxLength <= 0 {
		return DefaultMaxLength
	}
	return e.MaxLength
}

func (e *Evaluator) maxDepth() int {
	if e == nil || e.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return e.MaxDepth
}
