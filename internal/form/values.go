package form

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Stringify renders a backend value the way it would be assigned to a text
// control. nil becomes the empty string and lists are comma-joined.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = Stringify(e)
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(x, ",")
	case fmt.Stringer:
		return x.String()
	default:
		if b, err := json.Marshal(x); err == nil {
			return string(b)
		}
		return fmt.Sprint(x)
	}
}

// Truthy applies the checkbox coercion: the boolean true, any casing of the
// string "true", or the number 1.
func Truthy(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	if n, ok := number(v); ok && n == 1 {
		return true
	}
	return strings.EqualFold(Stringify(v), "true")
}

// LooseEqual compares an option value with a backend value, tolerating
// numeric and boolean values against their string forms.
func LooseEqual(option string, v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return option == x
	case bool:
		if x {
			return looseNumber(option, 1)
		}
		return looseNumber(option, 0)
	}
	if n, ok := number(v); ok {
		return looseNumber(option, n)
	}
	return option == Stringify(v)
}

func looseNumber(s string, n float64) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return n == 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return false
	}
	return f == n
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

var (
	isoDate   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	slashDate = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	dashDate  = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`)
)

// NormalizeDate converts a date value to the YYYY-MM-DD form date inputs
// accept. Month-first forms (MM/DD/YYYY, MM-DD-YYYY), unpadded ISO dates and
// RFC 3339 timestamps are recognised.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	if m := isoDate.FindStringSubmatch(s); m != nil {
		return checkedDate(m[1], m[2], m[3])
	}
	if m := slashDate.FindStringSubmatch(s); m != nil {
		return checkedDate(m[3], m[1], m[2])
	}
	if m := dashDate.FindStringSubmatch(s); m != nil {
		return checkedDate(m[3], m[1], m[2])
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().Format(time.DateOnly), true
	}
	return "", false
}

func checkedDate(year, month, day string) (string, bool) {
	out := year + "-" + pad2(month) + "-" + pad2(day)
	if _, err := time.Parse(time.DateOnly, out); err != nil {
		return "", false
	}
	return out, true
}

func pad2(s string) string {
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

// validNumber reports whether s is acceptable for a number input.
func validNumber(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
}
