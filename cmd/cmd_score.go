package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/factor/internal/adapters/stream"
	"github.com/okian/factor/internal/domain/model"
	"github.com/okian/factor/internal/domain/types"
)

// errDropped is returned by --strict runs that rejected at least one line.
var errDropped = errors.New("messages were rejected")

// streamFlags are shared by score and validate.
type streamFlags struct {
	input       string
	output      string
	rejects     string
	concurrency int
}

func (f *streamFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.input, "input", "i", "", "Input JSON lines file (default stdin)")
	fl.StringVarP(&f.output, "output", "o", "", "Output file (default stdout)")
	fl.StringVar(&f.rejects, "rejects", "", "Rejection records file (default stderr)")
	fl.IntVar(&f.concurrency, "concurrency", 0, "Lines processed at once (default from config)")
}

func newScoreCmd(env *runtimeEnv) *cobra.Command {
	var (
		flags  streamFlags
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Validate and score JSON lines",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = withMetrics(env, func(cmd *cobra.Command, _ []string) error {
		svc, err := newService(env)
		if err != nil {
			return err
		}
		summary, err := runStream(cmd, env, &flags, svc)
		if err != nil {
			return err
		}
		if strict && summary.Dropped() > 0 {
			return fmt.Errorf("%w: %d of %d", errDropped, summary.Dropped(), summary.Read)
		}
		return nil
	})
	flags.register(cmd)
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero if any line was rejected")
	return cmd
}

func newValidateCmd(env *runtimeEnv) *cobra.Command {
	var flags streamFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check JSON lines against the schema and print valid ones unchanged",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = withMetrics(env, func(cmd *cobra.Command, _ []string) error {
		svc, err := newService(env)
		if err != nil {
			return err
		}
		validateOnly := stream.ProcessorFunc(func(ctx context.Context, raw model.RawMessage) (model.EnrichedMessage, error) {
			msg, err := svc.Validate(ctx, raw)
			if err != nil {
				return nil, err
			}
			return model.EnrichedMessage(msg.Payload()), nil
		})
		_, err = runStream(cmd, env, &flags, validateOnly)
		return err
	})
	flags.register(cmd)
	return cmd
}

func runStream(cmd *cobra.Command, env *runtimeEnv, flags *streamFlags, proc stream.Processor) (types.Summary, error) {
	in, closeIn, err := openInput(cmd, flags.input)
	if err != nil {
		return types.Summary{}, err
	}
	defer closeIn()

	out, closeOut, err := openOutput(cmd.OutOrStdout(), flags.output)
	if err != nil {
		return types.Summary{}, err
	}
	rejects, closeRejects, err := openOutput(cmd.ErrOrStderr(), flags.rejects)
	if err != nil {
		_ = closeOut()
		return types.Summary{}, err
	}

	concurrency := flags.concurrency
	if concurrency <= 0 {
		concurrency = env.cfg.Concurrency
	}
	runner := stream.NewRunner(proc,
		stream.WithConcurrency(concurrency),
		stream.WithLogger(env.log.Named("stream")),
	)
	summary, runErr := runner.Run(cmd.Context(), in, out, rejects)
	return summary, errors.Join(runErr, closeOut(), closeRejects())
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func openOutput(fallback io.Writer, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return fallback, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, f.Close, nil
}
