package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/foldingvectors/prism/internal/analyzer"
	"github.com/foldingvectors/prism/internal/quota"
	"github.com/foldingvectors/prism/internal/store"
	anthropicpkg "github.com/foldingvectors/prism/pkg/anthropic"
)

// serviceEnv holds the initialized store and analysis engine shared by the
// serve and analyze commands.
type serviceEnv struct {
	Store    store.Store
	Analyzer *analyzer.Analyzer
}

// Close releases resources held by the environment.
func (e *serviceEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "prism.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv sets up the store, quota manager, Anthropic client, and analyzer.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*serviceEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (PRISM_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	client := anthropicpkg.NewClient(cfg.Anthropic.Key, cfg.Anthropic.RequestsPerSec)
	qm := quota.New(st, cfg.Quota.DailyLimit, cfg.Quota.UnlimitedEmails)
	eng := analyzer.New(client, st, qm, analyzer.Options{
		Model:       cfg.Anthropic.Model,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		CallTimeout: time.Duration(cfg.Anthropic.TimeoutSecs) * time.Second,
	})

	return &serviceEnv{Store: st, Analyzer: eng}, nil
}
