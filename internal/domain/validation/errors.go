package validation

import (
	"errors"

	"github.com/okian/factor/internal/domain/model"
)

// Sentinel kinds for validation errors.
var (
	ErrInvalidFormat = errors.New("invalid message format")
	ErrNotValidated  = errors.New("message was not produced by a validator")
	ErrSchema        = errors.New("invalid schema")
)

// InvalidFormatError reports a payload rejected by the schema predicate.
// The rejection is payload-wide; Payload is kept for diagnostics.
type InvalidFormatError struct {
	Payload model.RawMessage
}

func (e *InvalidFormatError) Error() string { return ErrInvalidFormat.Error() }

func (e *InvalidFormatError) Unwrap() error { return ErrInvalidFormat }
