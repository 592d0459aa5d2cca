package interval

import (
	"math"
	"strconv"
	"strings"
)

// Parse reads the textual form produced by String, plus a few shorthands:
//
//	"[4,6]" "(4,6)" "[4,6)" "(-inf,6]"  bracketed bounds
//	"[3]" or "3"                         singular
//	"4,6"                                [4,6)
func Parse(s string) (Interval, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Interval{}, newError("empty interval")
	}
	lowInclude, highInclude := true, false
	body := s
	switch s[0] {
	case '[':
		body = body[1:]
	case '(':
		lowInclude = false
		body = body[1:]
	}
	if n := len(body); n > 0 {
		switch body[n-1] {
		case ']':
			highInclude = true
			body = body[:n-1]
		case ')':
			body = body[:n-1]
		}
	}
	parts := strings.Split(body, ",")
	switch len(parts) {
	case 1:
		v, err := parseValue(parts[0])
		if err != nil {
			return Interval{}, err
		}
		return New(v, v, true, true)
	case 2:
		low, err := parseValue(parts[0])
		if err != nil {
			return Interval{}, err
		}
		high, err := parseValue(parts[1])
		if err != nil {
			return Interval{}, err
		}
		return New(low, high, lowInclude, highInclude)
	default:
		return Interval{}, newError("malformed interval %q", s)
	}
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "inf", "+inf", "infinity":
		return math.Inf(1), nil
	case "-inf", "-infinity":
		return math.Inf(-1), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, newError("bad bound %q", s)
	}
	return v, nil
}
