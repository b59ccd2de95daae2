package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landscore/internal/overpass"
	"github.com/sells-group/landscore/internal/resilience"
	"github.com/sells-group/landscore/internal/scoring"
	"github.com/sells-group/landscore/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL,
		store.WithPool(store.PoolConfig{MaxConns: cfg.Store.MaxConns, MinConns: cfg.Store.MinConns}),
	)
}

// newFetcher builds the Overpass fetcher. The returned closer releases the
// store when the store cache is in use.
func newFetcher(ctx context.Context, st store.Store) (*overpass.Fetcher, func(), error) {
	client := overpass.NewClient(overpass.ClientOptions{
		Endpoint:      cfg.Overpass.Endpoint,
		Timeout:       time.Duration(cfg.Overpass.TimeoutSecs+30) * time.Second,
		RatePerSecond: cfg.Overpass.RequestsPerSecond,
		Retry:         resilience.FromSettings(cfg.Overpass.RetryAttempts, cfg.Overpass.RetryInitialMs, cfg.Overpass.RetryMaxMs),
	})
	f := &overpass.Fetcher{Querier: client}
	closer := func() {}

	switch cfg.Overpass.Cache {
	case "file":
		f.Cache = &overpass.FileCache{Path: cfg.Overpass.CachePath}
	case "store":
		if st == nil {
			s, err := initStore(ctx)
			if err != nil {
				return nil, nil, err
			}
			st = s
			closer = func() { _ = s.Close() }
		}
		f.Cache = st
	case "none":
	default:
		return nil, nil, eris.Errorf("unsupported overpass cache: %s", cfg.Overpass.Cache)
	}
	return f, closer, nil
}

func loadScheme() (*scoring.Scheme, error) {
	if cfg.Scoring.SchemePath == "" {
		spec := scoring.DefaultSpec()
		if cfg.Scoring.ZoneKey != "" {
			spec.ZoneKey = cfg.Scoring.ZoneKey
		}
		if cfg.Normalize.Prefix != "" {
			spec.NormPrefix = cfg.Normalize.Prefix + "_"
		}
		return scoring.NewScheme(spec)
	}
	return scoring.LoadScheme(cfg.Scoring.SchemePath)
}
