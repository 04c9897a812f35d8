// Package bootstrap assembles the service graph shared by the HTTP server and
// the command-line tool.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"schemagen/internal/adapter/repo"
	"schemagen/internal/domain"
	"schemagen/internal/generation"
	"schemagen/internal/http/handlers"
	"schemagen/internal/http/httpapi"
	"schemagen/internal/infra"
	"schemagen/internal/infra/geoip"
	"schemagen/internal/orchestrator"
	"schemagen/internal/providers/assistant"
)

// Container holds the wired components for one process.
type Container struct {
	Config *infra.Config
	Logger *infra.Logger

	Results    domain.ResultRepository
	Assistant  *assistant.Client
	Jobs       *orchestrator.Orchestrator
	Generation *generation.Service
	Countries  geoip.CountryResolver

	lifetime context.Context
	closers  []func() error
}

// Dependencies lets callers replace the remote collaborators, mostly in tests.
type Dependencies struct {
	HTTPClient *http.Client
	Sleep      orchestrator.Sleeper
	// Lifetime ends in-flight generations started over HTTP. Defaults to a
	// context that is never cancelled.
	Lifetime context.Context
}

func New(ctx context.Context, cfg *infra.Config, logger *infra.Logger, deps Dependencies) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	logger = infra.LoggerOrDiscard(logger)
	c := &Container{Config: cfg, Logger: logger, lifetime: deps.Lifetime}
	if c.lifetime == nil {
		c.lifetime = context.Background()
	}

	results, closeResults, err := OpenResults(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.Results = results
	c.onClose(closeResults)

	client, err := assistant.NewClient(assistant.Options{
		APIKey:       cfg.OpenAIAPIKey,
		AssistantID:  cfg.AssistantID,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
		HTTPClient:   deps.HTTPClient,
		Logger:       logger,
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	if !client.HasCredentials() {
		logger.Warn().Msg("OPENAI_API_KEY or ASSISTANT_ID not set; generation requests will fail with 503")
	}
	c.Assistant = client

	jobs, err := orchestrator.New(orchestrator.Options{
		Assistant: client,
		Poll:      orchestrator.PollConfig{Interval: cfg.PollInterval, MaxAttempts: cfg.PollMaxAttempts},
		Sleep:     deps.Sleep,
		Logger:    logger,
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Jobs = jobs

	svc, err := generation.NewService(generation.Options{Jobs: jobs, Results: results, Logger: logger})
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Generation = svc

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("geoip disabled")
	case resolver != nil:
		c.Countries = resolver
		c.onClose(resolver.Close)
	}

	return c, nil
}

// Router builds the HTTP handler over the container's services.
func (c *Container) Router() http.Handler {
	app := handlers.NewApp(c.lifetime, c.Config, c.Generation, c.Results, c.Logger)
	return httpapi.NewRouter(app, httpapi.Options{
		Logger:          c.Logger,
		Countries:       c.Countries,
		CORSOrigins:     c.Config.CORSOrigins,
		RateLimitPerMin: c.Config.RateLimitPerMin,
	})
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Container) onClose(fn func() error) {
	if fn != nil {
		c.closers = append(c.closers, fn)
	}
}

// OpenResults opens the result store selected by cfg.ResultStore.
func OpenResults(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (domain.ResultRepository, func() error, error) {
	switch cfg.ResultStore {
	case infra.StoreMemory:
		return repo.NewMemoryResultRepository(nil), nil, nil
	case infra.StoreSQLite:
		store, err := repo.OpenSQLiteResultRepository(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("using sqlite result store")
		return store, store.Close, nil
	case infra.StorePostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		store := repo.NewResultRepository(infra.NewSQLRunner(pool, *logger))
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info().Msg("using postgres result store")
		return store, func() error { pool.Close(); return nil }, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown result store %q", cfg.ResultStore)
	}
}
