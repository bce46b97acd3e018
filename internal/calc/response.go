package calc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/exprd/internal/expr"
)

const (
	prefixOK  = "OK "
	prefixErr = "ERR "
)

var ErrMalformedResponse = errors.New("calc: malformed response")

// FormatOK renders a successful outcome using at most 15 significant digits.
func FormatOK(v float64) string {
	return prefixOK + strconv.FormatFloat(v, 'g', 15, 64) + "\n"
}

func FormatErr(reason string) string {
	if strings.TrimSpace(reason) == "" {
		reason = "error"
	}
	return prefixErr + reason + "\n"
}

// Format renders one evaluation outcome as a response line.
func Format(v float64, err error) string {
	if err != nil {
		return FormatErr(err.Error())
	}
	return FormatOK(v)
}

// Response is a parsed response line.
type Response struct {
	OK     bool
	Value  float64
	Reason string
}

// ParseResponse decodes one response payload produced by Format.
func ParseResponse(payload []byte) (Response, error) {
	line := strings.TrimSuffix(string(payload), "\n")
	switch {
	case strings.HasPrefix(line, prefixOK):
		v, err := strconv.ParseFloat(strings.TrimPrefix(line, prefixOK), 64)
		if err != nil {
			return Response{}, fmt.Errorf("%w: %q", ErrMalformedResponse, line)
		}
		return Response{OK: true, Value: v}, nil
	case strings.HasPrefix(line, prefixErr):
		return Response{Reason: strings.TrimPrefix(line, prefixErr)}, nil
	default:
		return Response{}, fmt.Errorf("%w: %q", ErrMalformedResponse, line)
	}
}

// Respond evaluates one request payload and returns the response line along
// with the outcome so callers can record it.
func Respond(payload []byte) (string, Outcome) {
	v, err := expr.Evaluate(string(payload))
	return Format(v, err), Outcome{Value: v, Err: err}
}

// Outcome is the evaluation result behind a response line.
type Outcome struct {
	Value float64
	Err   error
}

// Label returns "ok" or the evaluation error kind.
func (o Outcome) Label() string {
	if o.Err == nil {
		return "ok"
	}
	if k := expr.KindOf(o.Err); k != "" {
		return k
	}
	return "error"
}
