package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"sitepay/internal/backend"
	"sitepay/internal/cli"
	"sitepay/internal/config"
	"sitepay/internal/core"
	apphttp "sitepay/internal/http"
	"sitepay/internal/identity"
	"sitepay/internal/log"
	"sitepay/internal/metrics"
	"sitepay/internal/services"
	"sitepay/internal/state"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	m := metrics.New()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	result, err := backend.NewFactory(logger).Create(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	provider := identity.NewAnonymous(nil)
	container := state.New(state.Config{
		Store:    result.Store,
		Provider: provider,
		AppID:    cfg.AppID,
		Logger:   logger,
		Metrics:  m,
	})
	container.Start(ctx)
	defer container.Close()

	// Without a session the UI stays in its connecting state and writes are
	// refused; the server keeps running.
	if _, err := provider.EstablishAnonymous(ctx); err != nil {
		var authErr *identity.AuthError
		if errors.As(err, &authErr) {
			logger.Error("Anonymous sign-in failed", log.FieldError, err)
		} else {
			return err
		}
	}

	formatter, err := core.NewCurrencyFormatter(cfg.Locale, cfg.Currency)
	if err != nil {
		return err
	}

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:      cfg.Addr(),
		Domain:    container,
		Dashboard: services.NewDashboardService(container, core.PaidPeriod(cfg.PaidPeriod)),
		Formatter: formatter,
		Metrics:   m,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting sitepay server",
			log.FieldOperation, log.OpStartup, "addr", cfg.Addr(), "backend", cfg.DataBackend, "app_id", cfg.AppID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if result.Background != nil {
		g.Go(func() error { return result.Background(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
