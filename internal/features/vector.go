package features

// Vector is a dense feature vector in schema order
type Vector []float64

// OneHotName composes the column name of a categorical value
func OneHotName(field, category string) string {
	return field + "_" + category
}

// Build maps an Input onto the schema's feature order. Names the schema
// does not know, including one-hot columns for unknown categories, are
// skipped, leaving those positions zero.
func (s *Schema) Build(in Input) Vector {
	v := make(Vector, len(s.names))

	for _, name := range NumericFields {
		if i, ok := s.index[name]; ok {
			v[i], _ = in.Numeric(name)
		}
	}

	for _, field := range CategoricalFields {
		category, _ := in.Category(field)
		if i, ok := s.index[OneHotName(field, category)]; ok {
			v[i] = 1
		}
	}

	return v
}

// Active returns the names of the non-zero positions of v
func (s *Schema) Active(v Vector) []string {
	var names []string
	for i, x := range v {
		if x != 0 && i < len(s.names) {
			names = append(names, s.names[i])
		}
	}
	return names
}
