package predict

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/gem-pricer/internal/apperr"
	"github.com/kartoza/gem-pricer/internal/features"
	"github.com/kartoza/gem-pricer/internal/model"
)

var ctx = context.Background()

// sumModel predicts the sum of the vector
var sumModel = model.Func(func(v []float64) (float64, error) {
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum, nil
})

type countingNormalizer struct {
	calls int
	next  Normalizer
}

func (c *countingNormalizer) Normalize(src features.Source) (features.Input, error) {
	c.calls++
	return c.next.Normalize(src)
}

type countingBuilder struct {
	calls int
	next  Builder
}

func (c *countingBuilder) Build(in features.Input) features.Vector {
	c.calls++
	return c.next.Build(in)
}

func newSchema(t *testing.T) *features.Schema {
	t.Helper()
	s, err := features.NewSchema(features.DefaultFeatureNames())
	require.NoError(t, err)
	return s
}

func exampleSource() features.MapSource {
	return features.MapSource{
		"carat": 1.0, "cut": "Ideal", "color": "D", "clarity": "IF",
		"depth": 61.5, "table": 55.0, "x": 5.0, "y": 5.0, "z": 3.0,
	}
}

func TestPredictEndToEnd(t *testing.T) {
	svc := NewService(newSchema(t), sumModel)
	require.True(t, svc.Ready())

	first, err := svc.Predict(ctx, exampleSource())
	require.NoError(t, err)
	second, err := svc.Predict(ctx, exampleSource())
	require.NoError(t, err)

	assert.Equal(t, 133.5, first.Price)
	assert.Equal(t, "$133.50", first.Formatted)
	assert.Equal(t, first, second)
}

func TestPredictGateSkipsPipeline(t *testing.T) {
	schema := newSchema(t)

	cases := map[string]struct {
		schema *features.Schema
		model  model.Model
	}{
		"no model":  {schema, nil},
		"no schema": {nil, sumModel},
		"neither":   {nil, nil},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			n := &countingNormalizer{next: features.Normalizer{}}
			b := &countingBuilder{next: schema}
			svc := NewService(tc.schema, tc.model, WithNormalizer(n), WithBuilder(b))

			for i := 0; i < 3; i++ {
				_, err := svc.Predict(ctx, exampleSource())
				require.Error(t, err)
				assert.True(t, apperr.IsKind(err, apperr.ServiceUnavailable))
				assert.Equal(t, ErrModelNotLoaded, err.Error())
			}
			assert.Zero(t, n.calls)
			assert.Zero(t, b.calls)
		})
	}
}

func TestPredictRunsEachStageOnce(t *testing.T) {
	schema := newSchema(t)
	n := &countingNormalizer{next: features.Normalizer{}}
	b := &countingBuilder{next: schema}
	svc := NewService(schema, sumModel, WithNormalizer(n), WithBuilder(b))

	_, err := svc.Predict(ctx, exampleSource())
	require.NoError(t, err)
	assert.Equal(t, 1, n.calls)
	assert.Equal(t, 1, b.calls)
}

func TestPredictEmptyPayload(t *testing.T) {
	n := &countingNormalizer{next: features.Normalizer{}}
	b := &countingBuilder{next: newSchema(t)}
	svc := NewService(newSchema(t), sumModel, WithNormalizer(n), WithBuilder(b))

	_, err := svc.Predict(ctx, features.MapSource{})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.BadRequest))
	assert.Equal(t, 1, n.calls)
	assert.Zero(t, b.calls)
}

func TestPredictModelFailure(t *testing.T) {
	failing := model.Func(func([]float64) (float64, error) {
		return 0, errors.New("X has 26 features, but the model is expecting 20 features as input")
	})
	svc := NewService(newSchema(t), failing)

	_, err := svc.Predict(ctx, exampleSource())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.PredictionFailure))
	assert.Contains(t, err.Error(), "expecting 20 features")
}

func TestPredictStrictPolicy(t *testing.T) {
	svc := NewService(newSchema(t), sumModel, WithPolicy(features.RejectOnInvalid))
	assert.Equal(t, features.RejectOnInvalid, svc.Policy())

	_, err := svc.Predict(ctx, features.MapSource{"cut": "NotARealCut"})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.BadRequest))

	lenient := NewService(newSchema(t), sumModel)
	res, err := lenient.Predict(ctx, features.MapSource{"cut": "NotARealCut"})
	require.NoError(t, err)
	// only color_D and clarity_IF are set
	assert.Equal(t, 2.0, res.Price)
}

func TestObserverSeesEveryCall(t *testing.T) {
	var observed []Observation
	obs := ObserverFunc(func(o Observation) { observed = append(observed, o) })

	svc := NewService(newSchema(t), sumModel, WithObserver(obs))
	_, _ = svc.Predict(ctx, exampleSource())
	_, _ = svc.Predict(ctx, nil)

	closed := NewService(nil, nil, WithObserver(obs))
	_, _ = closed.Predict(ctx, exampleSource())

	require.Len(t, observed, 3)
	for _, o := range observed {
		assert.NotEmpty(t, o.RequestID)
	}
	assert.NoError(t, observed[0].Err)
	require.NotNil(t, observed[0].Result)
	require.NotNil(t, observed[0].Input)
	assert.True(t, apperr.IsKind(observed[1].Err, apperr.BadRequest))
	assert.Nil(t, observed[1].Input)
	assert.True(t, apperr.IsKind(observed[2].Err, apperr.ServiceUnavailable))
}

func TestFormatPrice(t *testing.T) {
	svc := NewService(nil, nil)

	tests := map[float64]string{
		0:          "$0.00",
		3.14159:    "$3.14",
		1234.5:     "$1,234.50",
		1234567.89: "$1,234,567.89",
	}
	for price, expected := range tests {
		assert.Equal(t, expected, svc.FormatPrice(price))
	}
}

func TestPredictConcurrent(t *testing.T) {
	svc := NewService(newSchema(t), sumModel)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Predict(ctx, exampleSource())
			if err != nil {
				errs <- err
				return
			}
			if res.Price != 133.5 {
				errs <- errors.New("unexpected price")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestRequestIDReachesObservers(t *testing.T) {
	var got string
	svc := NewService(newSchema(t), sumModel, WithObserver(ObserverFunc(func(o Observation) {
		got = o.RequestID
	})))

	_, err := svc.Predict(WithRequestID(ctx, "req-42"), exampleSource())
	require.NoError(t, err)
	assert.Equal(t, "req-42", got)
	assert.Equal(t, "req-42", RequestID(WithRequestID(ctx, "req-42")))
	assert.Empty(t, RequestID(ctx))
}
