package calc

import (
	"errors"
	"strconv"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPow
	tokLParen
	tokRParen
)

type token struct {
	kind  tokenKind
	value float64
	pos   int
	text  string
}

// tokenize assumes the input already passed CheckCharacters.
func tokenize(expr string) ([]token, error) {
	var tokens []token

	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == ' ':
			i++
		case c == '*':
			if i+1 < len(expr) && expr[i+1] == '*' {
				tokens = append(tokens, token{kind: tokPow, pos: i, text: "**"})
				i += 2
				continue
			}
			tokens = append(tokens, token{kind: tokStar, pos: i, text: "*"})
			i++
		case c == '+', c == '-', c == '/', c == '(', c == ')':
			tokens = append(tokens, token{kind: operatorKinds[c], pos: i, text: string(c)})
			i++
		default:
			start := i
			dots := 0
			for i < len(expr) && (isDigit(expr[i]) || expr[i] == '.') {
				if expr[i] == '.' {
					dots++
				}
				i++
			}
			text := expr[start:i]
			if dots > 1 || text == "." {
				return nil, malformed(start, "invalid number %q", text)
			}
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				if errors.Is(err, strconv.ErrRange) {
					return nil, &Error{Err: ErrOverflow, Pos: start, Detail: "number too large"}
				}
				return nil, malformed(start, "invalid number %q", text)
			}
			tokens = append(tokens, token{kind: tokNumber, value: v, pos: start, text: text})
		}
	}

	return append(tokens, token{kind: tokEOF, pos: len(expr)}), nil
}

var operatorKinds = map[byte]tokenKind{
	'+': tokPlus,
	'-': tokMinus,
	'/': tokSlash,
	'(': tokLParen,
	')': tokRParen,
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
