package indicator

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	floatPrefix = regexp.MustCompile(`^[+-]?(?:Infinity|(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?)`)
	intPrefix   = regexp.MustCompile(`^[+-]?\d+`)
)

// Float is a provider-derived number. NaN marks a missing or unparseable
// field and, like ±Inf, encodes as JSON null.
type Float float64

// NaN returns the not-a-number Float.
func NaN() Float { return Float(math.NaN()) }

func (f Float) IsNaN() bool { return math.IsNaN(float64(f)) }

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func (f *Float) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = NaN()
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Volume is a share count. Valid is false when the provider value did not
// parse; such a volume encodes as JSON null.
type Volume struct {
	Value int64
	Valid bool
}

func (v Volume) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(v.Value, 10)), nil
}

func (v *Volume) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Volume{}
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*v = Volume{Value: n, Valid: true}
	return nil
}

// ParseFloat reads the longest numeric prefix of s after leading
// whitespace: "12.5" and "12.5abc" give 12.5, "" and "abc" give NaN.
// Malformed input is not an error.
func ParseFloat(s string) Float {
	m := floatPrefix.FindString(strings.TrimLeft(s, " \t\n\r\v\f"))
	if m == "" {
		return NaN()
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return NaN()
	}
	return Float(v)
}

// ParseInt reads the leading base-10 integer of s after leading
// whitespace: "1200" and "1200.7" give 1200, "abc" gives ok=false.
func ParseInt(s string) (n int64, ok bool) {
	m := intPrefix.FindString(strings.TrimLeft(s, " \t\n\r\v\f"))
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseVolume parses s with ParseInt; unparseable input gives an invalid
// Volume.
func ParseVolume(s string) Volume {
	n, ok := ParseInt(s)
	return Volume{Value: n, Valid: ok}
}
