// Package samples generates synthetic input messages for smoke runs and tests.
package samples

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"

	"github.com/google/uuid"

	"github.com/okian/factor/internal/domain/model"
	"github.com/okian/factor/internal/domain/types"
	"github.com/okian/factor/pkg/logger"
)

// Ranges for generated ratios.
const (
	peRatioMin   = 2.0
	peRatioRange = 38.0
	roeMin       = -0.1
	roeRange     = 0.5

	// share of valid messages that omit a ratio to exercise defaults
	omitRatioShare = 0.1
	// share of valid messages that carry ratios as strings
	stringRatioShare = 0.15
)

// Malformed message variants.
const (
	malformedMissingSymbol = iota
	malformedBoolRatio
	malformedTextRatio
	malformedZeroPE
	malformedVariants
)

var symbols = []string{"AAPL", "MSFT", "NVDA", "JPM", "XOM", "KO", "TSLA", "BRK.B", "V", "PG"} //nolint:gochecknoglobals // fixed universe

var sectors = []string{"tech", "financials", "energy", "staples", "discretionary"} //nolint:gochecknoglobals // fixed universe

// Config controls generation.
type Config struct {
	// Count is the number of messages to generate.
	Count int
	// MalformedRatio is the share of messages, in [0, 1], that must not be enriched.
	MalformedRatio float64
	// Seed makes the output reproducible, message ids included.
	Seed int64
}

// Sample is one generated payload plus the outcome the pipeline should give it.
type Sample struct {
	Payload model.RawMessage
	// Expect is "enriched", or a rejection kind from package types.
	Expect string
}

// Expected outcome for well-formed samples.
const ExpectEnriched = "enriched"

// Generate builds cfg.Count samples.
func Generate(ctx context.Context, cfg Config) ([]Sample, error) {
	if cfg.Count < 0 {
		return nil, fmt.Errorf("count must not be negative: %d", cfg.Count)
	}
	if cfg.MalformedRatio < 0 || cfg.MalformedRatio > 1 || math.IsNaN(cfg.MalformedRatio) {
		return nil, fmt.Errorf("malformed ratio must be within [0, 1]: %v", cfg.MalformedRatio)
	}

	logger.Default().Debug(ctx, "generating sample messages",
		logger.Int("count", cfg.Count),
		logger.Float64("malformedRatio", cfg.MalformedRatio),
	)

	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // reproducible test data
	out := make([]Sample, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		id, err := uuid.NewRandomFromReader(rng)
		if err != nil {
			return nil, fmt.Errorf("message id: %w", err)
		}
		var s Sample
		if rng.Float64() < cfg.MalformedRatio {
			s = malformed(rng, rng.Intn(malformedVariants))
		} else {
			s = wellFormed(rng)
		}
		s.Payload["message_id"] = id.String()
		out = append(out, s)
	}
	return out, nil
}

func wellFormed(rng *rand.Rand) Sample {
	pe := roundTo(peRatioMin+rng.Float64()*peRatioRange, 2)
	roe := roundTo(roeMin+rng.Float64()*roeRange, 3)

	p := model.RawMessage{
		model.FieldSymbol: symbols[rng.Intn(len(symbols))],
		"sector":          sectors[rng.Intn(len(sectors))],
	}

	switch r := rng.Float64(); {
	case r < omitRatioShare:
		// leave both ratios to their defaults
	case r < omitRatioShare+stringRatioShare:
		p[model.FieldPERatio] = strconv.FormatFloat(pe, 'f', -1, 64)
		p[model.FieldROE] = strconv.FormatFloat(roe, 'f', -1, 64)
	default:
		p[model.FieldPERatio] = pe
		p[model.FieldROE] = roe
	}
	return Sample{Payload: p, Expect: ExpectEnriched}
}

func malformed(rng *rand.Rand, variant int) Sample {
	p := model.RawMessage{
		model.FieldSymbol:  symbols[rng.Intn(len(symbols))],
		model.FieldPERatio: roundTo(peRatioMin+rng.Float64()*peRatioRange, 2),
		model.FieldROE:     roundTo(roeMin+rng.Float64()*roeRange, 3),
	}
	switch variant {
	case malformedMissingSymbol:
		delete(p, model.FieldSymbol)
		return Sample{Payload: p, Expect: types.KindInvalidFormat}
	case malformedBoolRatio:
		p[model.FieldPERatio] = true
		return Sample{Payload: p, Expect: types.KindInvalidFormat}
	case malformedTextRatio:
		p[model.FieldROE] = "n/a"
		return Sample{Payload: p, Expect: types.KindMathError}
	default:
		p[model.FieldPERatio] = 0.0
		return Sample{Payload: p, Expect: types.KindMathError}
	}
}

// WriteJSONL writes one payload per line.
func WriteJSONL(w io.Writer, samples []Sample) error {
	enc := json.NewEncoder(w)
	for i, s := range samples {
		if err := enc.Encode(s.Payload); err != nil {
			return fmt.Errorf("encode sample %d: %w", i, err)
		}
	}
	return nil
}

func roundTo(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
