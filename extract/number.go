package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// Characters that can never be part of a price number.
	nonNumberChars = regexp.MustCompile(`[^0-9.,\-]`)

	// The regional "no decimal digits" shorthand: "379,-" or "379,".
	trailingCommaDash = regexp.MustCompile(`,-?$`)

	// First numeric token inside free text, including the ",-" shorthand.
	numberToken = regexp.MustCompile(`(\d(?:[\d.,]*\d)?)(,-)?`)
)

// NormalizeNumber turns a raw numeric-looking string with mixed regional
// separator conventions into a positive decimal value.
//
// "1.299,00", "1,299.00", "1299,00" and "1299.00" all yield 1299.00; the
// shorthand "379,-" yields 379.00. When both separators appear, the one
// occurring last is taken as the decimal separator. A lone comma is decimal
// only when followed by at most two digits; a lone period is always decimal.
//
// The boolean is false when the input holds no finite, strictly positive
// number.
func NormalizeNumber(raw string) (float64, bool) {
	s := nonNumberChars.ReplaceAllString(raw, "")
	if !strings.ContainsAny(s, "0123456789") {
		return 0, false
	}

	s = trailingCommaDash.ReplaceAllString(s, ",00")

	comma := strings.LastIndex(s, ",")
	period := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && period >= 0:
		if comma > period {
			s = strings.ReplaceAll(s, ".", "")
			comma = strings.LastIndex(s, ",")
			s = strings.ReplaceAll(s[:comma], ",", "") + "." + s[comma+1:]
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-comma-1 <= 2 {
			s = s[:comma] + "." + s[comma+1:]
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

// FirstNumber extracts the first numeric token from free element text
// ("€ 49,90", "19,99 € inkl. MwSt") and normalizes it. Without this,
// stray punctuation from surrounding words would bleed into the number.
func FirstNumber(text string) (float64, bool) {
	m := numberToken.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	return NormalizeNumber(m[1] + m[2])
}

// normalizeJSONValue normalizes a decoded JSON scalar: strings go through
// NormalizeNumber, numbers are accepted directly when finite and positive.
func normalizeJSONValue(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case string:
		return NormalizeNumber(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t <= 0 {
			return 0, false
		}
		return t, true
	}
	return 0, false
}
