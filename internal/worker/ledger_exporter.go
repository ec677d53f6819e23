// Package worker runs background jobs on top of the state container.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"sitepay/internal/core"
	"sitepay/internal/log"
	"sitepay/internal/metrics"
	"sitepay/internal/sheets"
)

// Source is the part of the state container the exporter reads.
type Source interface {
	PaymentsLoaded() bool
	PaymentsWithVersion() ([]core.Payment, uint64)
	Subscribe(fn func()) (cancel func())
}

type Config struct {
	Source   Source
	Writer   sheets.LedgerWriter
	Debounce time.Duration
	Logger   *log.Logger
	Metrics  *metrics.Metrics
}

// LedgerExporter mirrors the payments collection into a ledger sheet. Bursts
// of changes are collapsed into one write per debounce window, and a failed
// write is retried after the next window.
type LedgerExporter struct {
	source   Source
	writer   sheets.LedgerWriter
	debounce time.Duration
	logger   *log.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	exported uint64
	written  bool
}

func NewLedgerExporter(cfg Config) *LedgerExporter {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 5 * time.Second
	}
	return &LedgerExporter{
		source:   cfg.Source,
		writer:   cfg.Writer,
		debounce: debounce,
		logger:   logger.WithComponent(log.ComponentWorker),
		metrics:  cfg.Metrics,
	}
}

// Run exports until ctx is done. It returns nil on cancellation.
func (e *LedgerExporter) Run(ctx context.Context) error {
	changed := make(chan struct{}, 1)
	cancel := e.source.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()

	e.logger.InfoContext(ctx, "Ledger exporter started", "debounce", e.debounce)

	// The source may already hold payments before the listener was registered.
	select {
	case changed <- struct{}{}:
	default:
	}

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	arm := func() {
		if timer == nil {
			timer = time.NewTimer(e.debounce)
		} else {
			timer.Reset(e.debounce)
		}
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			e.logger.InfoContext(ctx, "Ledger exporter stopped")
			return nil
		case <-changed:
			if timerC == nil {
				arm()
			}
		case <-timerC:
			timerC = nil
			if err := e.ExportIfChanged(ctx); err != nil && ctx.Err() == nil {
				arm()
			}
		}
	}
}

// ExportIfChanged writes the ledger when payments are loaded and changed
// since the last successful write.
func (e *LedgerExporter) ExportIfChanged(ctx context.Context) error {
	if !e.source.PaymentsLoaded() {
		e.logger.DebugContext(ctx, "Payments not loaded, export skipped")
		return nil
	}
	payments, version := e.source.PaymentsWithVersion()

	e.mu.Lock()
	unchanged := e.written && e.exported == version
	e.mu.Unlock()
	if unchanged {
		return nil
	}
	return e.export(ctx, payments, version)
}

// Export writes the ledger unconditionally.
func (e *LedgerExporter) Export(ctx context.Context) error {
	if !e.source.PaymentsLoaded() {
		return errors.New("payments not loaded")
	}
	payments, version := e.source.PaymentsWithVersion()
	return e.export(ctx, payments, version)
}

func (e *LedgerExporter) export(ctx context.Context, payments []core.Payment, version uint64) error {
	rows := Rows(payments)
	ref, err := e.writer.WriteLedger(ctx, rows)
	if err != nil {
		e.metrics.Export(metrics.ResultError)
		e.logger.Fields(ctx, slog.LevelError, "Ledger export failed",
			log.NewFields().WithOperation(log.OpExport).WithError(err))
		return err
	}

	e.mu.Lock()
	e.exported = version
	e.written = true
	e.mu.Unlock()

	e.metrics.Export(metrics.ResultOK)
	e.logger.InfoContext(ctx, "Ledger exported",
		log.FieldOperation, log.OpExport,
		log.FieldSheetsRef, ref,
		log.FieldCount, len(rows))
	return nil
}

// Rows converts payments into ledger rows, keeping their order.
func Rows(payments []core.Payment) []sheets.LedgerRow {
	rows := make([]sheets.LedgerRow, 0, len(payments))
	for _, p := range payments {
		rows = append(rows, sheets.LedgerRow{
			Project:      p.ProjectName,
			Vendor:       p.VendorName,
			Item:         p.Item,
			Amount:       core.CoerceAmount(p.Amount),
			ExpectedDate: p.ExpectedDate,
			Status:       p.Status.Label(),
		})
	}
	return rows
}
