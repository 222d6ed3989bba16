package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/dealdesk/crm-report-cli/internal/resilience"
	"github.com/dealdesk/crm-report-cli/internal/store"
	"github.com/dealdesk/crm-report-cli/pkg/hubspot"
)

// initStore opens the run ledger configured by store.driver. A blank
// driver disables the ledger and returns a nil Store; report commands
// treat that as "don't record runs".
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "":
		return nil, nil
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "crm_report_runs.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func newHubSpotClient() hubspot.Client {
	retry := resilience.DefaultRetryConfig()
	if cfg.HubSpot.MaxRetries < 0 {
		retry.MaxAttempts = resilience.UnlimitedAttempts
	} else {
		retry.MaxAttempts = cfg.HubSpot.MaxRetries + 1
	}

	return hubspot.NewClient(cfg.HubSpot.Token,
		hubspot.WithBaseURL(cfg.HubSpot.BaseURL),
		hubspot.WithRateLimit(cfg.HubSpot.RequestsPerSecond),
		hubspot.WithMaxPages(cfg.HubSpot.MaxPages),
		hubspot.WithRetry(retry),
	)
}
