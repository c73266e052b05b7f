// Package app wires configuration into the concrete store, language model
// and pipeline components shared by the binaries.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"staffops/internal/assistant"
	"staffops/internal/config"
	"staffops/internal/correction"
	"staffops/internal/executor"
	"staffops/internal/intent"
	"staffops/internal/llm"
	"staffops/internal/proposals"
	"staffops/internal/resolver"
	"staffops/internal/store"
)

// OpenStore returns the configured store and a function releasing it.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.Store.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case "file", "":
		fs, err := store.NewFileStore(cfg.Store.DataDir,
			store.WithCompressedBackups(cfg.Store.CompressBackups),
			store.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// Generator returns the Gemini generator, or nil when no API key is set.
func Generator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (llm.Generator, error) {
	if !cfg.LLM.Enabled() {
		logger.Info("no language model configured, using deterministic classifier and parsers only")
		return nil, nil
	}
	g, err := llm.NewGemini(ctx, cfg.LLM.APIKey, cfg.LLM.Model, logger.Named("llm"))
	if err != nil {
		return nil, err
	}
	return g, nil
}

// NewExecutor builds the executor used by both the chat path and the review
// workflow activity.
func NewExecutor(cfg *config.Config, s store.Store, lifecycle executor.Lifecycle, logger *zap.Logger) *executor.Executor {
	return executor.New(s, lifecycle,
		executor.WithRetentionYears(cfg.Records.RetentionYears),
		executor.WithLogger(logger))
}

// Pipeline is the assembled confirmation pipeline.
type Pipeline struct {
	Proposals *proposals.Manager
	Assistant *assistant.Assistant
}

// NewPipeline assembles the assistant. A nil gen leaves only the
// deterministic classifier, scorer and correction parser in place.
func NewPipeline(cfg *config.Config, s store.Store, gen llm.Generator, logger *zap.Logger) *Pipeline {
	timeout := cfg.LLM.CallTimeout()
	m := proposals.NewManager(
		proposals.WithGracePeriod(cfg.Proposals.Grace()),
		proposals.WithLogger(logger.Named("proposals")))

	rules := intent.NewRuleClassifier()
	var (
		classifier intent.Classifier = rules
		parser     correction.Parser = correction.RuleParser{}
		matcher    resolver.Matcher
	)
	if gen != nil {
		classifier = intent.NewChain(logger, intent.NewRemoteClassifier(gen, timeout), rules)
		parser = correction.NewChain(logger, correction.NewRemoteParser(gen, timeout), correction.RuleParser{})
		matcher = llm.NewEntityMatcher(gen)
	}

	a := assistant.New(assistant.Deps{
		Store:       s,
		Proposals:   m,
		Classifier:  classifier,
		Corrections: correction.NewHandler(m, parser, logger.Named("correction")),
		Resolver:    resolver.New(matcher, logger.Named("resolver"), resolver.WithTimeout(timeout)),
		Executor:    NewExecutor(cfg, s, m, logger.Named("executor")),
		Logger:      logger.Named("assistant"),
	})
	return &Pipeline{Proposals: m, Assistant: a}
}
