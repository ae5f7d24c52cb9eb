package features

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/kartoza/gem-pricer/internal/apperr"
)

// ErrNoInput is the message returned when a request carries no data at all
const ErrNoInput = "No input data provided in the request body."

// Default category values used when a field is absent
const (
	DefaultCut     = "Ideal"
	DefaultColor   = "D"
	DefaultClarity = "IF"
)

// Policy decides what happens to malformed or unknown values
type Policy string

const (
	// DefaultOnMissing substitutes 0.0 for unparseable numbers and passes
	// category codes through unchecked
	DefaultOnMissing Policy = "default_on_missing"
	// RejectOnInvalid fails the request on an unparseable number or an
	// unknown category code. Absent fields still take their defaults.
	RejectOnInvalid Policy = "reject_on_invalid"
)

// ParsePolicy converts a config value to a Policy
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DefaultOnMissing:
		return DefaultOnMissing, nil
	case RejectOnInvalid:
		return RejectOnInvalid, nil
	}
	return "", fmt.Errorf("unknown input policy %q", s)
}

// Source is raw request data, independent of the transport it came from
type Source interface {
	Get(key string) (string, bool)
	Len() int
}

// FormSource adapts form-encoded values
type FormSource url.Values

// Get returns the first value for key
func (f FormSource) Get(key string) (string, bool) {
	vs, ok := f[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// Len returns the number of keys
func (f FormSource) Len() int { return len(f) }

// MapSource adapts a decoded JSON object or dashboard widget state.
// Values may be strings, numbers, booleans or nil; nil counts as absent.
type MapSource map[string]any

// Get returns the value for key rendered as a string
func (m MapSource) Get(key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		if t {
			return "1", true
		}
		return "0", true
	default:
		return fmt.Sprint(t), true
	}
}

// Len returns the number of keys
func (m MapSource) Len() int { return len(m) }

// Input is request data coerced to typed values
type Input struct {
	Carat   float64 `json:"carat"`
	Depth   float64 `json:"depth"`
	Table   float64 `json:"table"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	Cut     string  `json:"cut"`
	Color   string  `json:"color"`
	Clarity string  `json:"clarity"`
}

// DefaultInput is what an input with every field absent normalizes to
func DefaultInput() Input {
	return Input{Cut: DefaultCut, Color: DefaultColor, Clarity: DefaultClarity}
}

// Numeric returns the value of a numeric field by name
func (in Input) Numeric(name string) (float64, bool) {
	switch name {
	case Carat:
		return in.Carat, true
	case Depth:
		return in.Depth, true
	case Table:
		return in.Table, true
	case X:
		return in.X, true
	case Y:
		return in.Y, true
	case Z:
		return in.Z, true
	}
	return 0, false
}

// Category returns the value of a categorical field by name
func (in Input) Category(name string) (string, bool) {
	switch name {
	case Cut:
		return in.Cut, true
	case Color:
		return in.Color, true
	case Clarity:
		return in.Clarity, true
	}
	return "", false
}

// Normalizer turns raw request data into an Input
type Normalizer struct {
	Policy Policy
}

// Normalize implements the pipeline's normalization stage
func (n Normalizer) Normalize(src Source) (Input, error) {
	return Normalize(src, n.Policy)
}

// Normalize coerces raw data into an Input. It fails only when src holds
// no data at all, or, under RejectOnInvalid, when a present value is
// malformed.
func Normalize(src Source, policy Policy) (Input, error) {
	if src == nil || src.Len() == 0 {
		return Input{}, apperr.New(apperr.BadRequest, ErrNoInput)
	}

	in := DefaultInput()
	numbers := []*float64{&in.Carat, &in.Depth, &in.Table, &in.X, &in.Y, &in.Z}
	for i, name := range NumericFields {
		raw, ok := src.Get(name)
		if !ok {
			continue
		}
		v, err := parseFinite(raw)
		if err != nil {
			if policy == RejectOnInvalid {
				return Input{}, apperr.Invalid(name, fmt.Sprintf("could not convert %q to float", raw))
			}
			continue
		}
		*numbers[i] = v
	}

	categories := []*string{&in.Cut, &in.Color, &in.Clarity}
	for i, name := range CategoricalFields {
		raw, ok := src.Get(name)
		if !ok {
			continue
		}
		if policy == RejectOnInvalid && !IsLegal(name, raw) {
			return Input{}, apperr.Invalid(name, fmt.Sprintf("unknown %s %q", name, raw))
		}
		*categories[i] = raw
	}

	return in, nil
}

// parseFinite parses a decimal number. NaN and infinities are rejected.
func parseFinite(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", raw)
	}
	return v, nil
}
