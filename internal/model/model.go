package model

import (
	"fmt"
)

// Model maps a feature vector in schema order to a price
type Model interface {
	Predict(vector []float64) (float64, error)
}

// Func adapts a plain function to the Model interface
type Func func(vector []float64) (float64, error)

// Predict calls f
func (f Func) Predict(vector []float64) (float64, error) {
	return f(vector)
}

// Linear is a linear regression: intercept + coefficients · vector
type Linear struct {
	Intercept    float64
	Coefficients []float64
}

// InputDim returns the number of features the model was trained on
func (m *Linear) InputDim() int {
	return len(m.Coefficients)
}

// Predict runs inference on the model
func (m *Linear) Predict(vector []float64) (float64, error) {
	if err := checkDim(vector, m.InputDim()); err != nil {
		return 0, err
	}
	y := m.Intercept
	for i, c := range m.Coefficients {
		y += c * vector[i]
	}
	return y, nil
}

func (m *Linear) validate() error {
	if len(m.Coefficients) == 0 {
		return fmt.Errorf("linear model has no coefficients")
	}
	return nil
}

// Node is one node of a regression tree. Leaves carry Value; split nodes
// send a sample Left when vector[Feature] <= Threshold, else Right.
type Node struct {
	Leaf      bool
	Value     float64
	Feature   int
	Threshold float64
	Left      int
	Right     int
}

// Tree is a regression tree stored as a flat node list rooted at index 0
type Tree struct {
	Nodes []Node
}

func (t *Tree) predict(vector []float64) float64 {
	i := 0
	// a well-formed tree reaches a leaf in fewer steps than it has nodes
	for steps := 0; steps <= len(t.Nodes); steps++ {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if vector[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	panic("tree traversal did not reach a leaf")
}

// Forest averages the predictions of its trees, like a random forest
// regressor
type Forest struct {
	Dim   int
	Trees []Tree
}

// InputDim returns the number of features the model was trained on
func (m *Forest) InputDim() int {
	return m.Dim
}

// Predict runs inference on the model
func (m *Forest) Predict(vector []float64) (float64, error) {
	if err := checkDim(vector, m.Dim); err != nil {
		return 0, err
	}
	if len(m.Trees) == 0 {
		return 0, fmt.Errorf("forest has no trees")
	}
	var sum float64
	for i := range m.Trees {
		sum += m.Trees[i].predict(vector)
	}
	return sum / float64(len(m.Trees)), nil
}

func (m *Forest) validate() error {
	if m.Dim <= 0 {
		return fmt.Errorf("forest input dimension must be positive, got %d", m.Dim)
	}
	if len(m.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	for ti, t := range m.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}
		for ni, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= m.Dim {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d: child index out of range", ti, ni)
			}
		}
	}
	return nil
}

// InputDim returns the trained input dimension of m, or 0 if unknown
func InputDim(m Model) int {
	if d, ok := m.(interface{ InputDim() int }); ok {
		return d.InputDim()
	}
	return 0
}

// Describe returns a summary of the model for the info endpoint
func Describe(m Model) map[string]interface{} {
	switch t := m.(type) {
	case *Linear:
		return map[string]interface{}{
			"format":    FormatLinear,
			"input_dim": t.InputDim(),
		}
	case *Forest:
		return map[string]interface{}{
			"format":    FormatForest,
			"input_dim": t.InputDim(),
			"trees":     len(t.Trees),
		}
	case nil:
		return map[string]interface{}{"available": false}
	default:
		return map[string]interface{}{"format": fmt.Sprintf("%T", m)}
	}
}

func checkDim(vector []float64, dim int) error {
	if len(vector) != dim {
		return fmt.Errorf("X has %d features, but the model is expecting %d features as input", len(vector), dim)
	}
	return nil
}
