// Package service wires validation and scoring into the single pipeline
// entry point used by the adapters.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/okian/factor/internal/domain/model"
	"github.com/okian/factor/internal/domain/scoring"
	"github.com/okian/factor/internal/domain/validation"
	"github.com/okian/factor/pkg/logger"
	"github.com/okian/factor/pkg/metrics"
)

// Service runs raw messages through the validator and the scorer.
// It holds no per-call state and is safe for concurrent use.
type Service struct {
	validator *validation.Validator
	scorer    scoring.Scorer
	logger    logger.Logger

	// used only when validator is not set explicitly
	predicate     validation.Predicate
	scorerOptions []scoring.Option
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets the logger for the service and the default components.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPredicate sets the schema predicate of the default validator.
func WithPredicate(p validation.Predicate) Option {
	return func(s *Service) {
		if p != nil {
			s.predicate = p
		}
	}
}

// WithValidator replaces the default validator.
func WithValidator(v *validation.Validator) Option {
	return func(s *Service) {
		if v != nil {
			s.validator = v
		}
	}
}

// WithScorer replaces the default FactorScorer.
func WithScorer(sc scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithScoringOptions configures the default FactorScorer.
func WithScoringOptions(opts ...scoring.Option) Option {
	return func(s *Service) {
		s.scorerOptions = append(s.scorerOptions, opts...)
	}
}

// New constructs a Service. Without WithPredicate or WithValidator the
// built-in JSON schema is used.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		logger: logger.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.validator == nil {
		if s.predicate == nil {
			schema, err := validation.DefaultSchema()
			if err != nil {
				return nil, err
			}
			s.predicate = schema
		}
		s.validator = validation.New(s.predicate, validation.WithLogger(s.logger.Named("validator")))
	}

	if s.scorer == nil {
		scorerOpts := append([]scoring.Option{scoring.WithLogger(s.logger.Named("scorer"))}, s.scorerOptions...)
		s.scorer = scoring.NewFactorScorer(scorerOpts...)
	}

	return s, nil
}

// Validate runs only the validation step.
func (s *Service) Validate(ctx context.Context, raw model.RawMessage) (validation.ValidatedMessage, error) {
	metrics.RecordMessageReceived()
	msg, err := s.validator.Validate(ctx, raw)
	if err != nil {
		metrics.RecordMessageRejected()
		return validation.ValidatedMessage{}, err
	}
	metrics.RecordMessageValidated()
	return msg, nil
}

// Score runs only the scoring step on an already validated message.
func (s *Service) Score(ctx context.Context, msg validation.ValidatedMessage) (model.EnrichedMessage, error) {
	out, err := s.scorer.Score(ctx, msg)
	if err != nil {
		var me *scoring.MathError
		if errors.As(err, &me) {
			metrics.RecordComputationError(me.Reason())
			s.logger.Warn(ctx, "factor computation failed",
				logger.String("field", me.Field),
				logger.String("reason", me.Reason()),
				logger.Error(err),
			)
		}
		return nil, err
	}

	metrics.RecordMessageEnriched()
	metrics.RecordSignal(out.Signal())
	if score, ok := out.Score(); ok {
		metrics.RecordFactorScore(score)
	}
	return out, nil
}

// Process validates raw and, if it passes, scores it. The result is either
// a fully enriched message or an error; there is no partial output.
func (s *Service) Process(ctx context.Context, raw model.RawMessage) (model.EnrichedMessage, error) {
	start := time.Now()
	defer func() {
		metrics.RecordProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	msg, err := s.Validate(ctx, raw)
	if err != nil {
		return nil, err
	}
	return s.Score(ctx, msg)
}
