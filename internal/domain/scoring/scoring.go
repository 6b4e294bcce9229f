// Package scoring derives a factor score and a trading signal from a
// validated message.
package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/factor/internal/domain/model"
	"github.com/okian/factor/internal/domain/validation"
	"github.com/okian/factor/pkg/logger"
)

// Default scoring configuration constants.
const (
	DefaultSymbol       = "UNKNOWN"
	DefaultPERatio      = 15.0
	DefaultROE          = 0.12
	DefaultBuyThreshold = 0.2
	DefaultPrecision    = 4

	maxPrecision = 15
)

// Signal is the discrete recommendation derived from a score.
type Signal string

// Signal labels.
const (
	SignalBuy  Signal = "BUY"
	SignalHold Signal = "HOLD"
)

// Option applies a configuration option to the FactorScorer.
type Option func(*FactorScorer)

// WithDefaultSymbol sets the symbol reported when a message has none.
func WithDefaultSymbol(symbol string) Option {
	return func(s *FactorScorer) {
		if symbol != "" {
			s.defaultSymbol = symbol
		}
	}
}

// WithDefaults sets the values substituted for absent pe_ratio and roe.
// A zero or non-finite pe_ratio is ignored.
func WithDefaults(peRatio, roe float64) Option {
	return func(s *FactorScorer) {
		if peRatio != 0 && isFinite(peRatio) {
			s.defaultPERatio = peRatio
		}
		if isFinite(roe) {
			s.defaultROE = roe
		}
	}
}

// WithBuyThreshold sets the score a message must strictly exceed to be a BUY.
func WithBuyThreshold(threshold float64) Option {
	return func(s *FactorScorer) {
		if isFinite(threshold) {
			s.buyThreshold = threshold
		}
	}
}

// WithPrecision sets the number of decimal places kept in factor_score.
func WithPrecision(places int) Option {
	return func(s *FactorScorer) {
		if places >= 0 && places <= maxPrecision {
			s.precision = places
		}
	}
}

// WithLogger sets the diagnostic sink.
func WithLogger(l logger.Logger) Option {
	return func(s *FactorScorer) {
		if l != nil {
			s.logger = l
		}
	}
}

// Input holds the typed values read from a message.
type Input struct {
	Symbol  string
	PERatio float64
	ROE     float64
}

// Result is the outcome of Compute.
type Result struct {
	Symbol string
	// Score is the unrounded value the signal was derived from.
	Score float64
	// Rounded is Score at the configured precision; it becomes factor_score.
	Rounded float64
	Signal  Signal
}

// Fields returns the derived keys merged into the output message.
func (r Result) Fields() map[string]any {
	return map[string]any{
		model.FieldFactorScore:  r.Rounded,
		model.FieldFactorSignal: string(r.Signal),
	}
}

// Scorer enriches a validated message with factor_score and factor_signal.
type Scorer interface {
	Score(ctx context.Context, msg validation.ValidatedMessage) (model.EnrichedMessage, error)
}

// FactorScorer implements Scorer with score = 1/pe_ratio + roe.
// It holds only configuration and is safe for concurrent use.
type FactorScorer struct {
	defaultSymbol  string
	defaultPERatio float64
	defaultROE     float64
	buyThreshold   float64
	precision      int
	logger         logger.Logger
}

// NewFactorScorer creates a scorer with the default rule set.
func NewFactorScorer(opts ...Option) *FactorScorer {
	s := &FactorScorer{
		defaultSymbol:  DefaultSymbol,
		defaultPERatio: DefaultPERatio,
		defaultROE:     DefaultROE,
		buyThreshold:   DefaultBuyThreshold,
		precision:      DefaultPrecision,
		logger:         logger.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Score extracts the inputs, computes the factor and returns a new message
// equal to the payload overlaid with the derived fields. The payload itself
// is not modified.
func (s *FactorScorer) Score(ctx context.Context, msg validation.ValidatedMessage) (model.EnrichedMessage, error) {
	if !msg.Valid() {
		return nil, validation.ErrNotValidated
	}

	in, err := s.Extract(msg.Payload())
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "computing factor score", logger.String("symbol", in.Symbol))

	res, err := s.Compute(in)
	if err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "factor result",
		logger.String("symbol", res.Symbol),
		logger.Float64(model.FieldFactorScore, res.Rounded),
		logger.String(model.FieldFactorSignal, string(res.Signal)),
	)

	return model.Merge(msg.Payload(), res.Fields()), nil
}

// Extract reads symbol, pe_ratio and roe, substituting defaults for absent
// keys. A present key that cannot be converted yields a *MathError.
func (s *FactorScorer) Extract(payload model.RawMessage) (Input, error) {
	in := Input{
		Symbol:  s.defaultSymbol,
		PERatio: s.defaultPERatio,
		ROE:     s.defaultROE,
	}

	if v, ok := payload.Get(model.FieldSymbol); ok && v != nil {
		if str, isStr := v.(string); isStr {
			in.Symbol = str
		} else {
			in.Symbol = fmt.Sprint(v)
		}
	}

	var err error
	if in.PERatio, err = s.field(payload, model.FieldPERatio, in.PERatio); err != nil {
		return Input{}, err
	}
	if in.ROE, err = s.field(payload, model.FieldROE, in.ROE); err != nil {
		return Input{}, err
	}
	return in, nil
}

func (s *FactorScorer) field(payload model.RawMessage, key string, def float64) (float64, error) {
	v, ok := payload.Get(key)
	if !ok {
		return def, nil
	}
	f, err := ToFloat(v)
	if err != nil {
		return 0, &MathError{Field: key, Value: v, Err: err}
	}
	return f, nil
}

// Compute applies the scoring rule. A zero pe_ratio is rejected with
// ErrDivisionByZero; negative ratios are scored as given.
func (s *FactorScorer) Compute(in Input) (Result, error) {
	if in.PERatio == 0 {
		return Result{}, &MathError{Field: model.FieldPERatio, Value: in.PERatio, Err: ErrDivisionByZero}
	}

	score := 1/in.PERatio + in.ROE
	if !isFinite(score) {
		return Result{}, &MathError{Field: model.FieldFactorScore, Value: score, Err: ErrNonFinite}
	}

	signal := SignalHold
	if score > s.buyThreshold {
		signal = SignalBuy
	}

	return Result{
		Symbol:  in.Symbol,
		Score:   score,
		Rounded: Round(score, s.precision),
		Signal:  signal,
	}, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
