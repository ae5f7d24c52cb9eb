package predict

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/kartoza/gem-pricer/internal/apperr"
	"github.com/kartoza/gem-pricer/internal/features"
	"github.com/kartoza/gem-pricer/internal/model"
)

// ErrModelNotLoaded is returned by every prediction while the gate is closed
const ErrModelNotLoaded = "Model not loaded on the server."

// Normalizer is the first pipeline stage
type Normalizer interface {
	Normalize(src features.Source) (features.Input, error)
}

// Builder is the second pipeline stage
type Builder interface {
	Build(in features.Input) features.Vector
}

// Result is a successful prediction
type Result struct {
	Price     float64
	Formatted string
	Input     features.Input
	Vector    features.Vector
}

// Observation describes one call to Service.Predict, successful or not
type Observation struct {
	RequestID string
	Duration  time.Duration
	Input     *features.Input
	Result    *Result
	Err       error
}

// Observer receives one Observation per prediction call
type Observer interface {
	Observe(o Observation)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(o Observation)

// Observe calls f
func (f ObserverFunc) Observe(o Observation) { f(o) }

// Option configures a Service
type Option func(*Service)

// WithPolicy sets the input policy used by the default normalizer
func WithPolicy(p features.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithNormalizer replaces the normalization stage
func WithNormalizer(n Normalizer) Option {
	return func(s *Service) { s.normalizer = n }
}

// WithBuilder replaces the vector building stage
func WithBuilder(b Builder) Option {
	return func(s *Service) { s.builder = b }
}

// WithObserver adds an observer
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observers = append(s.observers, o) }
}

// Service runs normalize, build and predict for one request at a time.
// It holds no mutable state after construction and is safe for
// concurrent use.
type Service struct {
	schema     *features.Schema
	predictor  *model.Predictor
	policy     features.Policy
	normalizer Normalizer
	builder    Builder
	observers  []Observer
	printer    *message.Printer
}

// NewService creates a prediction service. A nil schema or model leaves
// the service unavailable; every prediction then fails fast.
func NewService(schema *features.Schema, m model.Model, opts ...Option) *Service {
	s := &Service{
		schema:  schema,
		policy:  features.DefaultOnMissing,
		printer: message.NewPrinter(language.English),
	}
	if m != nil {
		s.predictor = model.NewPredictor(m)
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.normalizer == nil {
		s.normalizer = features.Normalizer{Policy: s.policy}
	}
	if s.builder == nil && schema != nil {
		s.builder = schema
	}

	return s
}

// Ready reports whether both the schema and the model are loaded
func (s *Service) Ready() bool {
	return s.schema != nil && s.predictor != nil && s.builder != nil
}

// Schema returns the loaded schema, or nil
func (s *Service) Schema() *features.Schema {
	return s.schema
}

// Model returns the loaded model, or nil
func (s *Service) Model() model.Model {
	if s.predictor == nil {
		return nil
	}
	return s.predictor.Model()
}

// Policy returns the input policy
func (s *Service) Policy() features.Policy {
	return s.policy
}

type requestIDKey struct{}

// WithRequestID returns a context carrying the request's ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the ID stored in ctx, or "" if there is none
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Predict runs the full pipeline on src. The request ID in ctx, or a new
// one, identifies the call to observers.
func (s *Service) Predict(ctx context.Context, src features.Source) (res *Result, err error) {
	start := time.Now()
	id := RequestID(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	var in *features.Input
	defer func() {
		s.observe(Observation{RequestID: id, Duration: time.Since(start), Input: in, Result: res, Err: err})
	}()

	if !s.Ready() {
		return nil, apperr.New(apperr.ServiceUnavailable, ErrModelNotLoaded)
	}

	normalized, err := s.normalizer.Normalize(src)
	if err != nil {
		return nil, err
	}
	in = &normalized

	vector := s.builder.Build(normalized)

	price, err := s.predictor.Predict(vector)
	if err != nil {
		return nil, err
	}

	return &Result{
		Price:     price,
		Formatted: s.FormatPrice(price),
		Input:     normalized,
		Vector:    vector,
	}, nil
}

// FormatPrice renders a price as dollars with a thousands separator and
// two decimals, e.g. $1,234.50
func (s *Service) FormatPrice(price float64) string {
	return s.printer.Sprintf("$%.2f", price)
}

func (s *Service) observe(o Observation) {
	for _, obs := range s.observers {
		obs.Observe(o)
	}
}
