package features

// NumericInput describes how a numeric field is offered on the dashboard
type NumericInput struct {
	Name    string  `json:"name"`
	Label   string  `json:"label"`
	Help    string  `json:"help,omitempty"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
	Step    float64 `json:"step"`
}

// NumericInputs lists the dashboard controls in display order
var NumericInputs = []NumericInput{
	{Name: Carat, Label: "Carat", Help: "Weight of the stone.", Min: 0.2, Max: 5.0, Default: 1.0, Step: 0.01},
	{Name: Depth, Label: "Depth (%)", Help: "Total depth percentage.", Min: 40.0, Max: 80.0, Default: 60.0, Step: 0.1},
	{Name: Table, Label: "Table (%)", Help: "Width of top facet.", Min: 40.0, Max: 80.0, Default: 55.0, Step: 0.1},
	{Name: X, Label: "Length (x)", Min: 0.0, Max: 12.0, Default: 5.0, Step: 0.1},
	{Name: Y, Label: "Width (y)", Min: 0.0, Max: 12.0, Default: 5.0, Step: 0.1},
	{Name: Z, Label: "Depth (z)", Min: 0.0, Max: 8.0, Default: 3.0, Step: 0.1},
}

// DashboardDefaults is the input the dashboard starts from
func DashboardDefaults() Input {
	in := DefaultInput()
	for _, n := range NumericInputs {
		switch n.Name {
		case Carat:
			in.Carat = n.Default
		case Depth:
			in.Depth = n.Default
		case Table:
			in.Table = n.Default
		case X:
			in.X = n.Default
		case Y:
			in.Y = n.Default
		case Z:
			in.Z = n.Default
		}
	}
	return in
}
