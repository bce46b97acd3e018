package expr

import (
	"strconv"
	"strings"
)

// scanNumber returns the length of the longest numeric literal prefix of s,
// accepting the forms C strtod accepts after its optional sign: decimal with
// optional fraction and exponent, hex with optional binary exponent, and the
// words inf, infinity, and nan. Zero means no literal starts at s.
func scanNumber(s string) int {
	if n := scanWord(s); n > 0 {
		return n
	}
	if n := scanHex(s); n > 0 {
		return n
	}
	return scanDecimal(s)
}

func scanWord(s string) int {
	for _, w := range []string{"infinity", "inf", "nan"} {
		if len(s) >= len(w) && strings.EqualFold(s[:len(w)], w) {
			return len(w)
		}
	}
	return 0
}

func scanDecimal(s string) int {
	i := digitsFrom(s, 0, isDigit)
	mantissa := i
	if i < len(s) && s[i] == '.' {
		j := digitsFrom(s, i+1, isDigit)
		mantissa += j - (i + 1)
		i = j
	}
	if mantissa == 0 {
		return 0
	}
	return i + exponentLen(s[i:], 'e', 'E')
}

func scanHex(s string) int {
	if len(s) < 2 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return 0
	}
	i := digitsFrom(s, 2, isHexDigit)
	mantissa := i - 2
	if i < len(s) && s[i] == '.' {
		j := digitsFrom(s, i+1, isHexDigit)
		mantissa += j - (i + 1)
		i = j
	}
	if mantissa == 0 {
		return 0
	}
	return i + exponentLen(s[i:], 'p', 'P')
}

// exponentLen returns the length of a well-formed exponent suffix, or zero
// when the marker is absent or not followed by digits.
func exponentLen(s string, lower, upper byte) int {
	if len(s) == 0 || (s[0] != lower && s[0] != upper) {
		return 0
	}
	i := 1
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	j := digitsFrom(s, i, isDigit)
	if j == i {
		return 0
	}
	return j
}

func digitsFrom(s string, i int, accept func(byte) bool) int {
	for i < len(s) && accept(s[i]) {
		i++
	}
	return i
}

func parseNumber(lit string) (float64, error) {
	if len(lit) > 1 && (lit[1] == 'x' || lit[1] == 'X') && !strings.ContainsAny(lit, "pP") {
		lit += "p0"
	}
	return strconv.ParseFloat(lit, 64)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
