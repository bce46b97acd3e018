package expr

import (
	"errors"
	"fmt"
)

var (
	ErrSyntax          = errors.New("expr: syntax error")
	ErrInvalidNumber   = errors.New("expr: invalid number")
	ErrDivisionByZero  = errors.New("expr: division by zero")
	ErrInvalidExponent = errors.New("expr: invalid exponentiation")
	ErrOverflow        = errors.New("expr: numeric overflow")
	ErrTrailingInput   = errors.New("expr: trailing input")
	ErrTooDeep         = errors.New("expr: nesting too deep")
)

// Kind classifies an evaluation failure.
type Kind int

const (
	KindSyntax Kind = iota + 1
	KindInvalidNumber
	KindDivisionByZero
	KindInvalidExponent
	KindOverflow
	KindTrailingInput
	KindTooDeep
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindInvalidNumber:
		return "invalid_number"
	case KindDivisionByZero:
		return "division_by_zero"
	case KindInvalidExponent:
		return "invalid_exponent"
	case KindOverflow:
		return "overflow"
	case KindTrailingInput:
		return "trailing_input"
	case KindTooDeep:
		return "too_deep"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindSyntax:
		return ErrSyntax
	case KindInvalidNumber:
		return ErrInvalidNumber
	case KindDivisionByZero:
		return ErrDivisionByZero
	case KindInvalidExponent:
		return ErrInvalidExponent
	case KindOverflow:
		return ErrOverflow
	case KindTrailingInput:
		return ErrTrailingInput
	case KindTooDeep:
		return ErrTooDeep
	default:
		return nil
	}
}

// Error is the failure half of an evaluation outcome. Pos is the byte offset
// of the first failure; Pos == len(input) means the input ended.
type Error struct {
	Kind   Kind
	Reason string
	Pos    int
	Near   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s near '%s'", e.Reason, e.Near)
}

func (e *Error) Unwrap() error {
	return e.Kind.sentinel()
}

// KindOf returns the Kind label for err, or "" when err is not an *Error.
func KindOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind.String()
	}
	return ""
}

func describeAt(src string, pos int) string {
	if pos >= len(src) {
		return "end"
	}
	c := src[pos]
	if c >= 0x20 && c < 0x7f {
		return string(c)
	}
	return fmt.Sprintf("byte 0x%02X", c)
}
