// Package validation gates raw payloads behind a pluggable schema predicate.
package validation

import (
	"context"

	"github.com/okian/factor/internal/domain/model"
	"github.com/okian/factor/pkg/logger"
)

// Predicate decides whether a payload conforms to the expected schema.
type Predicate interface {
	Check(payload model.RawMessage) bool
}

// PredicateFunc adapts a plain function to Predicate.
type PredicateFunc func(payload model.RawMessage) bool

// Check calls f(payload).
func (f PredicateFunc) Check(payload model.RawMessage) bool { return f(payload) }

// AcceptAll passes every payload, including nil.
var AcceptAll Predicate = PredicateFunc(func(model.RawMessage) bool { return true })

// ValidatedMessage is a payload that passed a Validator. The zero value is
// not valid; only Validate produces valid instances. The underlying map is
// shared with the caller's RawMessage and must be treated as read-only.
type ValidatedMessage struct {
	payload model.RawMessage
	valid   bool
}

// Valid reports whether m was produced by a Validator.
func (m ValidatedMessage) Valid() bool { return m.valid }

// Payload returns the validated map.
func (m ValidatedMessage) Payload() model.RawMessage { return m.payload }

// Get returns the value under key and whether it is present.
func (m ValidatedMessage) Get(key string) (any, bool) { return m.payload.Get(key) }

// Option applies a configuration option to the Validator.
type Option func(*Validator)

// WithLogger sets the diagnostic sink.
func WithLogger(l logger.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// Validator checks payloads against a Predicate.
type Validator struct {
	predicate Predicate
	logger    logger.Logger
}

// New creates a Validator. A nil predicate accepts everything.
func New(predicate Predicate, opts ...Option) *Validator {
	if predicate == nil {
		predicate = AcceptAll
	}
	v := &Validator{
		predicate: predicate,
		logger:    logger.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate returns payload as a ValidatedMessage, or an *InvalidFormatError
// when the predicate rejects it. The payload is not copied.
func (v *Validator) Validate(ctx context.Context, payload model.RawMessage) (ValidatedMessage, error) {
	v.logger.Debug(ctx, "validating message schema", logger.Int("keys", payload.Keys()))
	if !v.predicate.Check(payload) {
		v.logger.Error(ctx, "invalid message schema", logger.Any("payload", payload))
		return ValidatedMessage{}, &InvalidFormatError{Payload: payload}
	}
	return ValidatedMessage{payload: payload, valid: true}, nil
}
