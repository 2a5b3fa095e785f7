package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/snc/internal/cache"
	"github.com/roach88/snc/internal/collab"
	"github.com/roach88/snc/internal/compiler"
	"github.com/roach88/snc/internal/config"
	"github.com/roach88/snc/internal/engine"
	"github.com/roach88/snc/internal/logging"
	"github.com/roach88/snc/internal/metrics"
	"github.com/roach88/snc/internal/store"
)

// stack is the pipeline assembled from configuration for one command.
type stack struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Collector
	store   *store.Store
	engine  *engine.Engine
}

// loadConfig loads the config file named by --config and applies CLI
// overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the configured logger writing to w.
func newLogger(cfg *config.Config, w io.Writer) (*zap.Logger, error) {
	return logging.NewWithWriter(cfg.Log, w)
}

// openStack loads configuration and builds store, cache, collaborators,
// compiler and engine. Logs go to the command's error stream.
func openStack(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*stack, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	m := metrics.NewCollector()
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Database, err)
	}
	logger.Debug("database ready", zap.String("path", cfg.Database))

	ac := cache.New(st, cache.WithLogger(logger), cache.WithMetrics(m))
	if err := ac.Warm(ctx); err != nil {
		st.Close()
		return nil, err
	}

	collabs, err := collaborators(cfg, logger, m)
	if err != nil {
		st.Close()
		return nil, err
	}

	copts := []compiler.Option{
		compiler.WithWorkers(cfg.Workers),
		compiler.WithValidation(cfg.Validate),
		compiler.WithRepairAttempts(cfg.RepairAttempts),
		compiler.WithRetryPolicy(retryPolicy(cfg.Retry)),
		compiler.WithLogger(logger),
		compiler.WithMetrics(m),
	}
	if !cfg.Parallel {
		copts = append(copts, compiler.WithSequential())
	}
	c, err := compiler.New(engine.Persistence(st), ac, collabs, copts...)
	if err != nil {
		st.Close()
		return nil, err
	}

	e, err := engine.New(st, c,
		engine.WithLogger(logger),
		engine.WithMetrics(m),
		engine.WithMetricsFile(cfg.MetricsFile),
	)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &stack{cfg: cfg, logger: logger, metrics: m, store: st, engine: e}, nil
}

func (s *stack) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", zap.Error(err))
	}
	_ = s.logger.Sync()
}

// collaborators wires the configured generator, validator, evaluator and
// fixer. Template mode generates offline and validates only when a
// command is configured; http mode sends every step to the service unless
// a validate command overrides validation.
func collaborators(cfg *config.Config, logger *zap.Logger, m *metrics.Collector) (compiler.Collaborators, error) {
	var c compiler.Collaborators
	cc := cfg.Collaborator

	switch cc.Mode {
	case config.ModeHTTP:
		client, err := collab.NewHTTPClient(cc.Endpoint,
			collab.WithTimeout(cc.Timeout.D()),
			collab.WithBreaker(breakerSettings(cc.Breaker)),
			collab.WithHTTPLogger(logger.Named("collaborator")),
			collab.WithHTTPMetrics(m),
		)
		if err != nil {
			return c, err
		}
		c = compiler.Collaborators{Generator: client, Validator: client, Evaluator: client, Fixer: client}
	default:
		c.Generator = collab.TemplateGenerator{}
	}

	if len(cc.ValidateCommand) > 0 {
		v, err := collab.NewCommandValidator(cc.ValidateCommand, logger.Named("validator"))
		if err != nil {
			return c, err
		}
		c.Validator = v
	}
	return c, nil
}

func retryPolicy(r config.RetryConfig) compiler.RetryPolicy {
	return compiler.RetryPolicy{
		MaxAttempts:     r.MaxAttempts,
		InitialInterval: r.InitialInterval.D(),
		MaxInterval:     r.MaxInterval.D(),
	}
}

func breakerSettings(b config.BreakerConfig) collab.BreakerSettings {
	return collab.BreakerSettings{
		MaxRequests:  b.MaxRequests,
		Interval:     b.Interval.D(),
		Timeout:      b.Timeout.D(),
		FailureRatio: b.FailureRatio,
		MinRequests:  b.MinRequests,
	}
}

// readDocument reads a narrative file. The document name defaults to the
// file's base name without extension.
func readDocument(path, name string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	if name == "" {
		name = documentName(path)
	}
	return name, string(data), nil
}

func documentName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// checkDocumentNames fails when two different files would update the same
// document. Listing one file twice is allowed.
func checkDocumentNames(files []string) error {
	seen := make(map[string]string, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		name := documentName(abs)
		if prev, ok := seen[name]; ok && prev != abs {
			return fmt.Errorf("%s and %s both map to document %q", prev, abs, name)
		}
		seen[name] = abs
	}
	return nil
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
