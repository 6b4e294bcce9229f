// factor enriches newline-delimited JSON stock messages with a factor score
// and a BUY/HOLD signal.
//
// Usage:
//
//	factor score    [--input=<path>] [--output=<path>] [--strict]
//	factor validate [--input=<path>] [--output=<path>]
//	factor generate [--count=N] [--malformed-ratio=R] [--seed=S]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	service "github.com/okian/factor/internal/app"
	"github.com/okian/factor/internal/config"
	"github.com/okian/factor/internal/domain/scoring"
	"github.com/okian/factor/internal/domain/validation"
	"github.com/okian/factor/pkg/logger"
	"github.com/okian/factor/pkg/metrics"
)

// version is set at build time via -ldflags.
var version = "dev"

type rootFlags struct {
	configPath string
	logLevel   string
	schemaPath string
}

// runtimeEnv is what PersistentPreRunE prepares for the subcommands.
type runtimeEnv struct {
	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	var (
		flags rootFlags
		env   runtimeEnv
	)

	root := &cobra.Command{
		Use:           "factor",
		Short:         "Score stock messages with a simple value/quality factor",
		Long:          "factor reads JSON messages, validates them against a schema and adds\nfactor_score = 1/pe_ratio + roe together with a BUY/HOLD signal.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Context(), flags.configPath)
			if err != nil {
				return err
			}
			if flags.logLevel != "" {
				cfg.LogLevel = flags.logLevel
			}
			if flags.schemaPath != "" {
				cfg.SchemaPath = flags.schemaPath
			}

			if err := logger.InitWithWriter(cmd.ErrOrStderr(), cfg.LogFormat); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			if err := logger.SetLevelString(cfg.LogLevel); err != nil {
				return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
			}

			env.cfg = cfg
			env.log = logger.Get()
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML config file (default $"+config.EnvConfig+")")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flags.schemaPath, "schema", "", "JSON or YAML schema file replacing the built-in one")

	root.AddCommand(newScoreCmd(&env))
	root.AddCommand(newValidateCmd(&env))
	root.AddCommand(newGenerateCmd(&env))
	return root
}

// newService builds the pipeline from the loaded configuration.
func newService(env *runtimeEnv) (*service.Service, error) {
	cfg := env.cfg
	opts := []service.Option{
		service.WithLogger(env.log),
		service.WithScoringOptions(
			scoring.WithDefaultSymbol(cfg.DefaultSymbol),
			scoring.WithDefaults(cfg.DefaultPERatio, cfg.DefaultROE),
			scoring.WithBuyThreshold(cfg.BuyThreshold),
			scoring.WithPrecision(cfg.ScorePrecision),
		),
	}
	if cfg.SchemaPath != "" {
		schema, err := validation.LoadSchemaFile(cfg.SchemaPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, service.WithPredicate(schema))
	}
	return service.New(opts...)
}

// withMetrics runs fn and then writes the metrics textfile, whether or not
// fn failed.
func withMetrics(env *runtimeEnv, fn func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		runErr := fn(cmd, args)
		return errors.Join(runErr, flushMetrics(cmd.Context(), env))
	}
}

func flushMetrics(ctx context.Context, env *runtimeEnv) error {
	if env.cfg == nil || env.cfg.MetricsTextfile == "" {
		return nil
	}
	if err := metrics.WriteTextfile(env.cfg.MetricsTextfile); err != nil {
		return err
	}
	env.log.Debug(ctx, "metrics written", logger.String("path", env.cfg.MetricsTextfile))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "factor:", err)
		stop()
		os.Exit(1)
	}
}
