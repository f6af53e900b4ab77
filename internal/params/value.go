// Package params parses vendor acquisition and processing parameter files
// into typed key/value sets.
//
// Parsers never fail on a single malformed entry: the key is reported to
// the caller's SkipFunc and parsing carries on with the next entry.
package params

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies the dynamic type held by a Scalar.
type Kind uint8

const (
	KindInt Kind = iota
	KindFloat
	KindString
)

// Scalar is a single parameter value: an int, a float or a string.
type Scalar struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

func Int(v int64) Scalar     { return Scalar{kind: KindInt, i: v} }
func Float(v float64) Scalar { return Scalar{kind: KindFloat, f: v} }
func Str(v string) Scalar    { return Scalar{kind: KindString, s: v} }

func (s Scalar) Kind() Kind { return s.kind }

// Float returns the value as float64. Numeric strings are parsed.
func (s Scalar) Float() (float64, bool) {
	switch s.kind {
	case KindInt:
		return float64(s.i), true
	case KindFloat:
		return s.f, true
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s.s), 64)
	return v, err == nil
}

// Int returns the value as int64. Floats must be integral; numeric
// strings are parsed, including float notation such as "16.0".
func (s Scalar) Int() (int64, bool) {
	switch s.kind {
	case KindInt:
		return s.i, true
	case KindFloat:
		if s.f != math.Trunc(s.f) || math.IsInf(s.f, 0) {
			return 0, false
		}
		return int64(s.f), true
	}
	t := strings.TrimSpace(s.s)
	if v, err := strconv.ParseInt(t, 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// String renders the value as text. Floats always carry a decimal point
// or exponent so they stay distinguishable from ints.
func (s Scalar) String() string {
	switch s.kind {
	case KindInt:
		return strconv.FormatInt(s.i, 10)
	case KindFloat:
		return FormatFloat(s.f)
	}
	return s.s
}

// FormatFloat formats v in plain notation for moderate magnitudes and in
// exponent notation otherwise.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	if math.IsInf(v, 0) {
		if v > 0 {
			return "inf"
		}
		return "-inf"
	}
	a := math.Abs(v)
	if a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	out := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}

// Coerce converts raw text to an int, then a float, then falls back to a
// string.
func Coerce(text string) Scalar {
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		return Int(v)
	}
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return Float(v)
	}
	return Str(text)
}

// Value is either a single Scalar or an ordered list of Scalars.
type Value struct {
	items []Scalar
	list  bool
}

// One wraps a single Scalar.
func One(s Scalar) Value { return Value{items: []Scalar{s}} }

// List wraps an ordered list of Scalars.
func List(items ...Scalar) Value { return Value{items: items, list: true} }

func (v Value) IsList() bool { return v.list }

func (v Value) Len() int { return len(v.items) }

// Scalar returns the single value. It fails for lists.
func (v Value) Scalar() (Scalar, bool) {
	if v.list || len(v.items) != 1 {
		return Scalar{}, false
	}
	return v.items[0], true
}

// Items returns the list elements; a single value is a one-element list.
func (v Value) Items() []Scalar { return v.items }

// At returns element i, treating a single value as element 0.
func (v Value) At(i int) (Scalar, bool) {
	if i < 0 || i >= len(v.items) {
		return Scalar{}, false
	}
	return v.items[i], true
}

func (v Value) String() string {
	if !v.list {
		if len(v.items) == 1 {
			return v.items[0].String()
		}
		return ""
	}
	parts := make([]string, len(v.items))
	for i, s := range v.items {
		parts[i] = s.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Set is a parsed parameter file.
type Set map[string]Value

// SkipFunc is told about every entry that failed to parse.
type SkipFunc func(key string, err error)

func (f SkipFunc) report(key string, err error) {
	if f != nil {
		f(key, err)
	}
}

// Scalar returns a non-list value.
func (s Set) Scalar(key string) (Scalar, bool) {
	v, ok := s[key]
	if !ok {
		return Scalar{}, false
	}
	return v.Scalar()
}

// Float returns a non-list numeric value.
func (s Set) Float(key string) (float64, bool) {
	v, ok := s.Scalar(key)
	if !ok {
		return 0, false
	}
	return v.Float()
}

// Int returns a non-list integral value.
func (s Set) Int(key string) (int, bool) {
	v, ok := s.Scalar(key)
	if !ok {
		return 0, false
	}
	n, ok := v.Int()
	return int(n), ok
}

// String returns a non-list value rendered as text.
func (s Set) String(key string) (string, bool) {
	v, ok := s.Scalar(key)
	if !ok {
		return "", false
	}
	return v.String(), true
}

// At returns element i of key, treating a single value as element 0.
func (s Set) At(key string, i int) (Scalar, bool) {
	v, ok := s[key]
	if !ok {
		return Scalar{}, false
	}
	return v.At(i)
}

// First returns the value of key, or its first element when it is a list.
func (s Set) First(key string) (Scalar, bool) { return s.At(key, 0) }

// Floats returns every element of key as float64.
func (s Set) Floats(key string) ([]float64, bool) {
	v, ok := s[key]
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, v.Len())
	for _, it := range v.Items() {
		f, ok := it.Float()
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

// Has reports whether key is present.
func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}
