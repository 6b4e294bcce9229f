// Package types contains the JSON records written by the stream adapter.
package types

import "github.com/okian/factor/internal/domain/model"

// Rejection kinds.
const (
	KindInvalidFormat = "invalid_format"
	KindMathError     = "math_error"
	KindInternal      = "internal"
)

// Rejection describes one input line that produced no enriched output.
type Rejection struct {
	Line    int              `json:"line"`
	Kind    string           `json:"kind"`
	Error   string           `json:"error"`
	Payload model.RawMessage `json:"payload,omitempty"`
}

// Summary counts the outcome of one stream run.
type Summary struct {
	Read     int `json:"read"`
	Enriched int `json:"enriched"`
	Rejected int `json:"rejected"`
	Failed   int `json:"failed"`
}

// Dropped returns the number of lines that produced no enriched output.
func (s Summary) Dropped() int { return s.Rejected + s.Failed }
