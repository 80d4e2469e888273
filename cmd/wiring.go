package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adsync/internal/resolve"
	"github.com/sells-group/adsync/internal/rollup"
	"github.com/sells-group/adsync/internal/store"
	"github.com/sells-group/adsync/internal/syncer"
	"github.com/sells-group/adsync/pkg/fbads"
	"github.com/sells-group/adsync/pkg/ghl"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "adsync.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens the configured backend and applies migrations.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func initAggregator(st store.Store) *rollup.Aggregator {
	return rollup.New(st, rollup.Config{KeepHistory: cfg.Rollup.History})
}

func initCRMSyncer(st store.Store) *syncer.CRMSyncer {
	client := ghl.NewClient(cfg.CRM.APIKey, ghl.WithRateLimit(cfg.CRM.RateLimitRPS))
	resolver := resolve.NewResolver(st, cfg.CRM.SimilarityThreshold)
	return syncer.NewCRMSyncer(client, st, resolver, initAggregator(st), syncer.CRMConfig{
		LocationID:          cfg.CRM.LocationID,
		PipelineIDs:         cfg.CRM.PipelineIDs,
		PageSize:            cfg.CRM.PageSize,
		DefaultDepositValue: cfg.CRM.DefaultDepositValue,
		DefaultCashValue:    cfg.CRM.DefaultCashValue,
	})
}

func initProviderSyncer(st store.Store) *syncer.ProviderSyncer {
	client := fbads.NewClient(cfg.Ads.AccessToken, cfg.Ads.AccountID,
		fbads.WithRateLimit(cfg.Ads.RateLimitRPS))
	until := time.Now().UTC()
	since := until.AddDate(0, 0, -cfg.Ads.SinceDaysAgo)
	return syncer.NewProviderSyncer(client, st, syncer.ProviderConfig{
		Since:            since,
		Until:            until,
		WarnUsagePercent: cfg.Ads.WarnUsagePercent,
		HaltUsagePercent: cfg.Ads.HaltUsagePercent,
	})
}
