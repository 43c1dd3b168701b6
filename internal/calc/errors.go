package calc

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCharacter    = errors.New("invalid character")
	ErrMalformedExpression = errors.New("malformed expression")
	ErrDivisionByZero      = errors.New("division by zero")
	ErrOverflow            = errors.New("overflow")
	ErrUndefined           = errors.New("result is not a real number")
)

// Error describes why an expression could not be evaluated.
// Err is one of the package sentinels, so callers match with errors.Is.
type Error struct {
	Err    error
	Char   rune   // offending character, set for ErrInvalidCharacter
	Pos    int    // byte offset into the expression, -1 when not applicable
	Detail string // short human readable reason
}

func (e *Error) Error() string {
	switch {
	case errors.Is(e.Err, ErrInvalidCharacter):
		return fmt.Sprintf("%v %q at position %d", e.Err, e.Char, e.Pos)
	case e.Detail != "":
		return fmt.Sprintf("%v: %s", e.Err, e.Detail)
	default:
		return e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func malformed(pos int, format string, args ...interface{}) *Error {
	return &Error{Err: ErrMalformedExpression, Pos: pos, Detail: fmt.Sprintf(format, args...)}
}
