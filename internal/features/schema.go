package features

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Numeric feature names, in the order they are read from a request
const (
	Carat = "carat"
	Depth = "depth"
	Table = "table"
	X     = "x"
	Y     = "y"
	Z     = "z"
)

// Categorical feature names
const (
	Cut     = "cut"
	Color   = "color"
	Clarity = "clarity"
)

// NumericFields lists the numeric inputs
var NumericFields = []string{Carat, Depth, Table, X, Y, Z}

// CategoricalFields lists the categorical inputs
var CategoricalFields = []string{Cut, Color, Clarity}

// Option is a legal category value with the label shown to users
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// CutOptions are the legal cut grades, best first
var CutOptions = []Option{
	{"Ideal", "Ideal"},
	{"Premium", "Premium"},
	{"Very Good", "Very Good"},
	{"Good", "Good"},
	{"Fair", "Fair"},
}

// ColorOptions are the legal color grades, best first
var ColorOptions = []Option{
	{"D", "D - Colorless (Best)"},
	{"E", "E - Colorless (Near Perfect)"},
	{"F", "F - Colorless (Slight Tint)"},
	{"G", "G - Near Colorless"},
	{"H", "H - Near Colorless (Slight Yellow)"},
	{"I", "I - Near Colorless (More Tint)"},
	{"J", "J - Faint Color"},
}

// ClarityOptions are the legal clarity grades, best first
var ClarityOptions = []Option{
	{"IF", "IF - Internally Flawless"},
	{"VVS1", "VVS1 - Very Very Slightly Included (1)"},
	{"VVS2", "VVS2 - Very Very Slightly Included (2)"},
	{"VS1", "VS1 - Very Slightly Included (1)"},
	{"VS2", "VS2 - Very Slightly Included (2)"},
	{"SI1", "SI1 - Slightly Included (1)"},
	{"SI2", "SI2 - Slightly Included (2)"},
	{"I1", "I1 - Included (Lowest Clarity)"},
}

// Options returns the legal options for a categorical field, or nil for
// an unknown field
func Options(field string) []Option {
	switch field {
	case Cut:
		return CutOptions
	case Color:
		return ColorOptions
	case Clarity:
		return ClarityOptions
	}
	return nil
}

// IsLegal reports whether category is one of the legal values for field
func IsLegal(field, category string) bool {
	for _, o := range Options(field) {
		if o.Value == category {
			return true
		}
	}
	return false
}

// Schema is the ordered list of feature names a trained model expects.
// The order comes from the model artifact and is never changed.
// A Schema is immutable and safe for concurrent use.
type Schema struct {
	names []string
	index map[string]int
}

// NewSchema builds a schema from an ordered list of feature names
func NewSchema(names []string) (*Schema, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("feature list is empty")
	}

	s := &Schema{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	copy(s.names, names)

	for i, name := range s.names {
		if name == "" {
			return nil, fmt.Errorf("feature %d has an empty name", i)
		}
		if prev, exists := s.index[name]; exists {
			return nil, fmt.Errorf("duplicate feature %q at positions %d and %d", name, prev, i)
		}
		s.index[name] = i
	}

	return s, nil
}

// LoadSchema reads a JSON array of feature names from path
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read feature file: %w", err)
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("failed to parse feature file %s: %w", path, err)
	}

	s, err := NewSchema(names)
	if err != nil {
		return nil, fmt.Errorf("invalid feature file %s: %w", path, err)
	}
	return s, nil
}

// Names returns a copy of the ordered feature names
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of features
func (s *Schema) Len() int {
	return len(s.names)
}

// Position returns the index of a feature name
func (s *Schema) Position(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Has reports whether name is one of the schema's features
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Missing lists the numeric and one-hot names the schema does not contain.
// Models trained with a dropped reference column legitimately miss one
// name per categorical field.
func (s *Schema) Missing() []string {
	var missing []string
	for _, name := range NumericFields {
		if !s.Has(name) {
			missing = append(missing, name)
		}
	}
	for _, field := range CategoricalFields {
		for _, o := range Options(field) {
			if name := OneHotName(field, o.Value); !s.Has(name) {
				missing = append(missing, name)
			}
		}
	}
	return missing
}

// DefaultFeatureNames is the column order produced by one-hot encoding
// the diamonds dataset with every category kept
func DefaultFeatureNames() []string {
	names := make([]string, 0, len(NumericFields)+len(CutOptions)+len(ColorOptions)+len(ClarityOptions))
	names = append(names, NumericFields...)
	for _, field := range CategoricalFields {
		for _, o := range Options(field) {
			names = append(names, OneHotName(field, o.Value))
		}
	}
	return names
}
