package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"schemagen/internal/bootstrap"
	"schemagen/internal/infra"
)

func main() {
	// Optional .env for local runs.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	os.Exit(run(cfg))
}

func run(cfg *infra.Config) int {
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Generations outlive their requests; they end only once the shutdown
	// grace period has passed.
	work, abandon := context.WithCancel(context.Background())
	defer abandon()

	container, err := bootstrap.New(ctx, cfg, &logger, bootstrap.Dependencies{Lifetime: work})
	if err != nil {
		logger.Error().Err(err).Msg("failed to wire services")
		return 1
	}
	defer func() {
		if err := container.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to release resources")
		}
	}()

	server := infra.NewHTTPServer(cfg, container.Router())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", server.Addr()).
			Str("profile", cfg.DeploymentProfile).
			Str("store", cfg.ResultStore).
			Dur("poll_interval", cfg.PollInterval).
			Int("poll_max_attempts", cfg.PollMaxAttempts).
			Msg("API listening")
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		// In-flight generations may be mid-poll; give them a full budget.
		grace := cfg.PollInterval*time.Duration(cfg.PollMaxAttempts) + 5*time.Second
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		if err != nil {
			logger.Warn().Err(err).Msg("abandoning in-flight generations")
			abandon()
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return 1
	}
	logger.Info().Msg("server stopped")
	return 0
}
