// Package stream feeds newline-delimited JSON messages through the pipeline.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/okian/factor/internal/domain/model"
	"github.com/okian/factor/internal/domain/scoring"
	"github.com/okian/factor/internal/domain/types"
	"github.com/okian/factor/internal/domain/validation"
	"github.com/okian/factor/pkg/logger"
	"github.com/okian/factor/pkg/metrics"
)

// Default runner configuration constants.
const (
	defaultConcurrency  = 1
	defaultMaxLineBytes = 1 << 20
	initialLineBuffer   = 64 * 1024

	outcomeEnriched = "enriched"
)

// Processor turns one raw message into an enriched one.
type Processor interface {
	Process(ctx context.Context, raw model.RawMessage) (model.EnrichedMessage, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, raw model.RawMessage) (model.EnrichedMessage, error)

// Process calls f(ctx, raw).
func (f ProcessorFunc) Process(ctx context.Context, raw model.RawMessage) (model.EnrichedMessage, error) {
	return f(ctx, raw)
}

// Option applies a configuration option to the Runner.
type Option func(*Runner)

// WithConcurrency sets how many lines are processed at once.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithMaxLineBytes caps the size of a single input line.
func WithMaxLineBytes(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxLineBytes = n
		}
	}
}

// WithLogger sets a custom logger for the runner.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// Runner reads JSON lines, processes each independently and writes the
// results in input order.
type Runner struct {
	proc         Processor
	concurrency  int
	maxLineBytes int
	logger       logger.Logger
}

// NewRunner creates a Runner around proc.
func NewRunner(proc Processor, opts ...Option) *Runner {
	r := &Runner{
		proc:         proc,
		concurrency:  defaultConcurrency,
		maxLineBytes: defaultMaxLineBytes,
		logger:       logger.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type pending struct {
	line int
	data []byte
}

type outcome struct {
	enriched  model.EnrichedMessage
	rejection *types.Rejection
}

// Run consumes in until EOF. Enriched messages go to out, one JSON object per
// line. Lines that produce no output are described on rejects. A bad line
// never stops the run; only read, write and context errors do.
func (r *Runner) Run(ctx context.Context, in io.Reader, out, rejects io.Writer) (types.Summary, error) {
	var summary types.Summary

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, min(initialLineBuffer, r.maxLineBytes)), r.maxLineBytes)

	outEnc := json.NewEncoder(out)
	outEnc.SetEscapeHTML(false)
	rejEnc := json.NewEncoder(rejects)
	rejEnc.SetEscapeHTML(false)

	window := make([]pending, 0, r.concurrency)
	lineNo := 0

	flush := func() error {
		if len(window) == 0 {
			return nil
		}
		results := r.processWindow(ctx, window)
		window = window[:0]
		for _, res := range results {
			if err := r.emit(res, outEnc, rejEnc, &summary); err != nil {
				return err
			}
		}
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Read++
		window = append(window, pending{line: lineNo, data: bytes.Clone(line)})
		if len(window) == r.concurrency {
			if err := flush(); err != nil {
				return summary, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("read line %d: %w", lineNo+1, err)
	}
	if err := flush(); err != nil {
		return summary, err
	}

	r.logger.Info(ctx, "stream finished",
		logger.Int("read", summary.Read),
		logger.Int("enriched", summary.Enriched),
		logger.Int("rejected", summary.Rejected),
		logger.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (r *Runner) processWindow(ctx context.Context, window []pending) []outcome {
	results := make([]outcome, len(window))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, p := range window {
		g.Go(func() error {
			results[i] = r.processLine(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runner) processLine(ctx context.Context, p pending) outcome {
	raw, err := model.Decode(p.data)
	if err != nil {
		return outcome{rejection: &types.Rejection{Line: p.line, Kind: types.KindInvalidFormat, Error: err.Error()}}
	}
	enriched, err := r.proc.Process(ctx, raw)
	if err != nil {
		return outcome{rejection: &types.Rejection{Line: p.line, Kind: classify(err), Error: err.Error(), Payload: raw}}
	}
	return outcome{enriched: enriched}
}

func (r *Runner) emit(res outcome, outEnc, rejEnc *json.Encoder, summary *types.Summary) error {
	if res.rejection == nil {
		if err := outEnc.Encode(res.enriched); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		summary.Enriched++
		metrics.RecordStreamRecord(outcomeEnriched)
		return nil
	}

	if res.rejection.Kind == types.KindInternal {
		summary.Failed++
	} else {
		summary.Rejected++
	}
	metrics.RecordStreamRecord(res.rejection.Kind)
	if err := rejEnc.Encode(res.rejection); err != nil {
		return fmt.Errorf("write rejection: %w", err)
	}
	return nil
}

func classify(err error) string {
	switch {
	case errors.Is(err, validation.ErrInvalidFormat), errors.Is(err, model.ErrNotObject):
		return types.KindInvalidFormat
	case errors.Is(err, scoring.ErrMath):
		return types.KindMathError
	default:
		return types.KindInternal
	}
}
