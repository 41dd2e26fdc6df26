package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/blueline-build/fieldreport-cli/internal/pipeline"
	"github.com/blueline-build/fieldreport-cli/internal/store"
	anthropicpkg "github.com/blueline-build/fieldreport-cli/pkg/anthropic"
	"github.com/blueline-build/fieldreport-cli/pkg/notion"
)

// pipelineEnv holds the initialized store, clients and pipeline needed by the
// process/batch/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Notion   notion.Client // nil when the review queue is not configured
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "fieldreport.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline sets up the store and API clients and builds the Pipeline.
// Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	var notionClient notion.Client
	if cfg.Review.Notion.Token != "" && cfg.Review.Notion.ReviewDB != "" {
		notionClient = notion.NewClient(cfg.Review.Notion.Token)
	}

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(cfg, st, anthropicClient),
		Notion:   notionClient,
	}, nil
}
