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
	"sitepay/internal/identity"
	"sitepay/internal/log"
	"sitepay/internal/metrics"
	"sitepay/internal/sheets/google"
	"sitepay/internal/state"
	"sitepay/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	if err := cfg.ValidateExporter(); err != nil {
		logger.Error("Exporter configuration invalid", log.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Exporter stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Exporter stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	m := metrics.New()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	// The exporter only reads; seeding is left to the server.
	backendCfg.Seed = false
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

	if _, err := provider.EstablishAnonymous(ctx); err != nil {
		return err
	}

	writer, err := google.New(ctx, google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	exporter := worker.NewLedgerExporter(worker.Config{
		Source:   container,
		Writer:   writer,
		Debounce: cfg.ExportDebounce,
		Logger:   logger,
		Metrics:  m,
	})

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if !container.PaymentsLoaded() {
			http.Error(w, "connecting", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	metricsSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting ledger exporter",
			log.FieldOperation, log.OpStartup, "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName, "debounce", cfg.ExportDebounce)
		return exporter.Run(gctx)
	})
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if result.Background != nil {
		g.Go(func() error { return result.Background(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
