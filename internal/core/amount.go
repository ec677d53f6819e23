package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseAmount converts form input into a non-negative amount.
//
// Empty input is a valid zero amount. Thousands separators (comma, space,
// underscore) are ignored, a single dot is the decimal separator. Negative,
// non-numeric and non-finite values return ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("")        -> 0, nil
//	ParseAmount("15000")   -> 15000, nil
//	ParseAmount("15,000")  -> 15000, nil
//	ParseAmount("1234.5")  -> 1234.5, nil
//	ParseAmount("-1")      -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '_', '\u00a0':
			return -1
		}
		return r
	}, s)
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// CoerceAmount reads an amount of unknown shape. Anything that is missing,
// unparsable, non-finite or negative counts as 0. It never fails.
func CoerceAmount(v any) float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := ParseAmount(x)
		if err != nil {
			return 0
		}
		f = parsed
	case *float64:
		if x == nil {
			return 0
		}
		f = *x
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}
