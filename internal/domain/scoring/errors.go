package scoring

import (
	"errors"
	"fmt"
)

// Sentinel kinds for scoring errors. Every MathError matches ErrMath and
// exactly one of the cause sentinels.
var (
	ErrMath           = errors.New("factor computation failed")
	ErrDivisionByZero = errors.New("division by zero")
	ErrNotNumeric     = errors.New("value is not numeric")
	ErrNonFinite      = errors.New("value is not finite")
)

// MathError reports a failed conversion or arithmetic step on one field.
type MathError struct {
	Field string
	Value any
	Err   error
}

func (e *MathError) Error() string {
	return fmt.Sprintf("%s: %s=%v: %s", ErrMath, e.Field, e.Value, e.Err)
}

func (e *MathError) Unwrap() []error { return []error{ErrMath, e.Err} }

// Reason is a stable label for the cause, suitable for metrics.
func (e *MathError) Reason() string {
	switch {
	case errors.Is(e.Err, ErrDivisionByZero):
		return "division_by_zero"
	case errors.Is(e.Err, ErrNonFinite):
		return "non_finite"
	case errors.Is(e.Err, ErrNotNumeric):
		return "not_numeric"
	default:
		return "unknown"
	}
}
