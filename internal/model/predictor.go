package model

import (
	"fmt"
	"math"

	"github.com/kartoza/gem-pricer/internal/apperr"
)

// Predictor invokes a model and classifies any failure as a
// PredictionFailure. It never lets a model panic escape.
type Predictor struct {
	model Model
}

// NewPredictor wraps m
func NewPredictor(m Model) *Predictor {
	return &Predictor{model: m}
}

// Model returns the wrapped model
func (p *Predictor) Model() Model {
	return p.model
}

// Predict returns the model's price for vector
func (p *Predictor) Predict(vector []float64) (price float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			price = 0
			err = apperr.Wrap(apperr.PredictionFailure, "", fmt.Errorf("%v", r))
		}
	}()

	price, err = p.model.Predict(vector)
	if err != nil {
		return 0, apperr.Wrap(apperr.PredictionFailure, "", err)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, apperr.New(apperr.PredictionFailure, fmt.Sprintf("model returned a non-finite price (%v)", price))
	}
	return price, nil
}
