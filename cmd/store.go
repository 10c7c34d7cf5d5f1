package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/supplyscope/supply-cli/internal/catalog"
	"github.com/supplyscope/supply-cli/internal/pipeline"
	"github.com/supplyscope/supply-cli/internal/progress"
	anthropicpkg "github.com/supplyscope/supply-cli/pkg/anthropic"
	"github.com/supplyscope/supply-cli/pkg/deepresearch"
)

func initStore(ctx context.Context) (catalog.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "supply.db"
		}
		return catalog.NewSQLite(dsn)
	case "postgres":
		return catalog.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initBackend() (deepresearch.Client, error) {
	switch cfg.Research.Backend {
	case "http":
		if cfg.Research.Key == "" {
			return nil, eris.New("research API key is required (SUPPLY_RESEARCH_KEY)")
		}
		return deepresearch.NewClient(cfg.Research.Key,
			deepresearch.WithBaseURL(cfg.Research.BaseURL),
			deepresearch.WithRateLimit(cfg.Research.RateLimitRPS),
		), nil
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("anthropic API key is required (SUPPLY_ANTHROPIC_KEY)")
		}
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		return anthropicpkg.NewBackend(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens), nil
	default:
		return nil, eris.Errorf("unsupported research backend: %s", cfg.Research.Backend)
	}
}

func initSink() progress.Sink {
	sinks := progress.Multi{progress.ZapSink{}}
	if cfg.Notion.Token != "" && cfg.Notion.RunLogDB != "" {
		sinks = append(sinks, progress.NewNotionSink(cfg.Notion.Token, cfg.Notion.RunLogDB))
	}
	return sinks
}

func initPipeline(store catalog.Store) (*pipeline.Pipeline, error) {
	backend, err := initBackend()
	if err != nil {
		return nil, err
	}
	return pipeline.New(store, backend,
		pipeline.WithConfidenceThreshold(cfg.Pipeline.ConfidenceThreshold),
		pipeline.WithSink(initSink()),
	), nil
}
