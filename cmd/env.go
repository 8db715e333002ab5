package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/funding-harvester/internal/alert"
	"github.com/sells-group/funding-harvester/internal/connector"
	"github.com/sells-group/funding-harvester/internal/ingest"
	"github.com/sells-group/funding-harvester/internal/resolve"
	"github.com/sells-group/funding-harvester/internal/store"
)

// appEnv bundles the wired application components the commands share.
type appEnv struct {
	Store    store.Store
	Resolver *resolve.Resolver
	Merger   *resolve.Merger
	Registry *connector.Registry
	Pipeline *ingest.Pipeline
}

// initEnv opens the store, runs migrations, and wires the pipeline per the
// loaded config.
func initEnv(ctx context.Context, opts ingest.Options) (*appEnv, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	client := connector.NewClient(connector.ClientOptions{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:   cfg.Fetch.MaxRetries,
		RateLimiters: connector.DefaultRateLimiters(),
	})

	registry := connector.NewRegistry()
	registry.Register(connector.NewUSASpending(client))
	registry.Register(connector.NewSEC(client))
	registry.Register(connector.NewSBIR(client))

	resolver := resolve.NewResolver(st, cfg.Resolve)
	alerter := alert.NewAlerter(cfg.Alert.WebhookURL)
	pipeline := ingest.New(st, resolver, registry, alerter, opts)

	return &appEnv{
		Store:    st,
		Resolver: resolver,
		Merger:   resolve.NewMerger(st),
		Registry: registry,
		Pipeline: pipeline,
	}, nil
}

// Close releases the environment's resources.
func (e *appEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

// ingestWindow computes the [start, end] fetch window ending today.
func ingestWindow(windowYears int) (time.Time, time.Time) {
	end := time.Now().UTC()
	start := end.AddDate(-windowYears, 0, 0)
	return start, end
}

// selectedSources returns the flag value if set, else the configured default.
func selectedSources(flagSources []string) []string {
	if len(flagSources) > 0 {
		return flagSources
	}
	return cfg.Ingest.Sources
}
