package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/okian/factor/internal/samples"
	"github.com/okian/factor/pkg/logger"
)

// Default generation parameters.
const (
	defaultSampleCount = 100
	defaultSampleSeed  = 1
)

func newGenerateCmd(env *runtimeEnv) *cobra.Command {
	var (
		cfg    samples.Config
		output string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Emit reproducible sample messages as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := samples.Generate(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			w, closeOut, err := openOutput(cmd.OutOrStdout(), output)
			if err != nil {
				return err
			}
			writeErr := samples.WriteJSONL(w, out)
			if err := errors.Join(writeErr, closeOut()); err != nil {
				return err
			}
			env.log.Info(cmd.Context(), "samples generated",
				logger.Int("count", len(out)),
				logger.Float64("malformedRatio", cfg.MalformedRatio),
			)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&cfg.Count, "count", "n", defaultSampleCount, "Number of messages")
	f.Float64Var(&cfg.MalformedRatio, "malformed-ratio", 0, "Share of messages in [0, 1] that must be rejected")
	f.Int64Var(&cfg.Seed, "seed", defaultSampleSeed, "Random seed")
	f.StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}
