package filter

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ValueType decides how the VALUE of a comparative filter is coerced.
type ValueType int

const (
	TypeString ValueType = iota
	TypeNumber
	TypeInt
	TypeBool
	TypeSize
	TypeRate
	TypeRatio
	TypePercent
	TypeDuration
	TypeTimestamp
	TypeExpression
)

func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeInt:
		return "integer"
	case TypeBool:
		return "boolean"
	case TypeSize:
		return "size"
	case TypeRate:
		return "rate"
	case TypeRatio:
		return "ratio"
	case TypePercent:
		return "percent"
	case TypeDuration:
		return "duration"
	case TypeTimestamp:
		return "timestamp"
	case TypeExpression:
		return "expression"
	default:
		return "unknown"
	}
}

// IsString reports whether the type supports the ~ operator.
func (t ValueType) IsString() bool {
	return t == TypeString
}

var sizePattern = regexp.MustCompile(`^([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)\s*([kKMGTP]i?)?([bB])?$`)

var sizeUnits = map[string]float64{
	"":   1,
	"k":  1e3,
	"K":  1e3,
	"M":  1e6,
	"G":  1e9,
	"T":  1e12,
	"P":  1e15,
	"Ki": 1 << 10,
	"Mi": 1 << 20,
	"Gi": 1 << 30,
	"Ti": 1 << 40,
	"Pi": 1 << 50,
	"ki": 1 << 10,
}

// Coerce converts a raw filter VALUE into the Go value for t.
//
// Sizes and rates become float64 bytes, percents float64 in 0-100, ratios
// float64 (inf allowed), durations time.Duration and timestamps a UTC
// time.Time truncated to the second.
func Coerce(t ValueType, raw string) (any, error) {
	switch t {
	case TypeString, TypeExpression:
		return raw, nil
	case TypeNumber:
		return strconv.ParseFloat(strings.TrimSpace(raw), 64)
	case TypeInt:
		return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	case TypeBool:
		return parseBool(raw)
	case TypeSize:
		return ParseSize(raw)
	case TypeRate:
		return ParseSize(strings.TrimSuffix(strings.TrimSpace(raw), "/s"))
	case TypeRatio:
		s := strings.ToLower(strings.TrimSpace(raw))
		if s == "inf" || s == "∞" {
			return math.Inf(1), nil
		}
		return strconv.ParseFloat(s, 64)
	case TypePercent:
		return strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(raw), "%"), 64)
	case TypeDuration:
		return ParseDuration(raw)
	case TypeTimestamp:
		return ParseTimestamp(raw, time.Now())
	default:
		return nil, fmt.Errorf("unsupported value type %d", t)
	}
}

// FormatValue renders v so that Coerce(t, FormatValue(t, v)) yields v again.
func FormatValue(t ValueType, v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if math.IsInf(val, 1) {
			return "inf"
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case time.Duration:
		return val.String()
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", raw)
}

// ParseSize parses sizes like "1.5G", "700Mi", "10MB" or "8Mb" into bytes.
// A trailing lower case b counts bits.
func ParseSize(raw string) (float64, error) {
	m := sizePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, fmt.Errorf("not a size: %q", raw)
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, err
	}
	mult, ok := sizeUnits[m[2]]
	if !ok {
		return 0, fmt.Errorf("unknown size unit %q", m[2])
	}
	n *= mult
	if m[3] == "b" {
		n /= 8
	}
	return n, nil
}

var durationUnits = map[string]time.Duration{
	"ns":  time.Nanosecond,
	"us":  time.Microsecond,
	"µs":  time.Microsecond,
	"ms":  time.Millisecond,
	"s":   time.Second,
	"sec": time.Second,
	"m":   time.Minute,
	"min": time.Minute,
	"h":   time.Hour,
	"d":   24 * time.Hour,
	"w":   7 * 24 * time.Hour,
	"y":   365 * 24 * time.Hour,
}

var durationPart = regexp.MustCompile(`(\d+\.?\d*|\.\d+)\s*(ns|us|µs|ms|sec|min|s|m|h|d|w|y)`)

// ParseDuration accepts Go durations plus d, w and y units ("1d12h", "2w").
// A bare number counts seconds.
func ParseDuration(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg, s = true, s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("not a duration: %q", raw)
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		d := time.Duration(n * float64(time.Second))
		if neg {
			d = -d
		}
		return d, nil
	}

	var total time.Duration
	rest := s
	for rest != "" {
		loc := durationPart.FindStringSubmatchIndex(rest)
		if loc == nil || loc[0] != 0 {
			return 0, fmt.Errorf("not a duration: %q", raw)
		}
		n, err := strconv.ParseFloat(rest[loc[2]:loc[3]], 64)
		if err != nil {
			return 0, err
		}
		total += time.Duration(n * float64(durationUnits[rest[loc[4]:loc[5]]]))
		rest = strings.TrimLeftFunc(rest[loc[1]:], unicode.IsSpace)
	}
	if neg {
		total = -total
	}
	return total, nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses absolute dates in local time, or relative ones
// like "2d ago" and "in 3h" against now. A bare duration means "ago".
func ParseTimestamp(raw string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return normalizeTime(t), nil
		}
	}

	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "in "):
		d, err := ParseDuration(s[3:])
		if err != nil {
			return time.Time{}, fmt.Errorf("not a timestamp: %q", raw)
		}
		return normalizeTime(now.Add(d)), nil
	case strings.HasSuffix(lower, " ago"):
		s = s[:len(s)-4]
	}
	d, err := ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("not a timestamp: %q", raw)
	}
	return normalizeTime(now.Add(-d)), nil
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// smartCase reports whether a string comparison against value must be
// case sensitive: only when value contains an upper case letter.
func smartCase(value string) bool {
	return strings.IndexFunc(value, unicode.IsUpper) >= 0
}

// compareStrings applies op to have and want with smart case.
func compareStrings(have string, op Operator, want string) bool {
	if !smartCase(want) {
		have = strings.ToLower(have)
	}
	switch op {
	case OpEqual:
		return have == want
	case OpContains:
		return strings.Contains(have, want)
	case OpGreater:
		return have > want
	case OpLess:
		return have < want
	case OpGreaterEqual:
		return have >= want
	case OpLessEqual:
		return have <= want
	}
	return false
}

func compareFloats(have float64, op Operator, want float64) bool {
	switch op {
	case OpEqual:
		return have == want
	case OpGreater:
		return have > want
	case OpLess:
		return have < want
	case OpGreaterEqual:
		return have >= want
	case OpLessEqual:
		return have <= want
	}
	return false
}

// CompareValues applies op between an item value and a coerced filter value.
// Slice values match when any element matches.
func CompareValues(have any, op Operator, want any) bool {
	switch w := want.(type) {
	case string:
		switch h := have.(type) {
		case string:
			return compareStrings(h, op, w)
		case []string:
			for _, e := range h {
				if compareStrings(e, op, w) {
					return true
				}
			}
			return false
		case nil:
			return false
		default:
			return compareStrings(fmt.Sprint(h), op, w)
		}
	case bool:
		h, ok := have.(bool)
		return ok && op == OpEqual && h == w
	case time.Time:
		h, ok := have.(time.Time)
		if !ok || h.IsZero() {
			return false
		}
		return compareFloats(float64(h.Unix()), op, float64(w.Unix()))
	case time.Duration:
		h, ok := toFloat(have)
		return ok && compareFloats(h, op, float64(w))
	default:
		wf, ok := toFloat(want)
		if !ok {
			return false
		}
		hf, ok := toFloat(have)
		return ok && compareFloats(hf, op, wf)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case time.Duration:
		return float64(n), true
	}
	return 0, false
}

// truthy reports whether v is set to something other than its zero value.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case []string:
		return len(val) > 0
	case time.Time:
		return !val.IsZero()
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}
