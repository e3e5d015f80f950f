// Package app builds the process-wide state: stores, services, exporters
// and the optional change feed, and tears it down again.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"daybook/internal/amqp"
	"daybook/internal/cache"
	"daybook/internal/config"
	"daybook/internal/core"
	"daybook/internal/log"
	"daybook/internal/notify"
	"daybook/internal/prefs"
	"daybook/internal/report"
	"daybook/internal/services"
	"daybook/internal/storage"
)

type App struct {
	Config       *config.Config
	Changes      *notify.Broadcaster
	Store        *storage.SQLiteRepository
	Prefs        *prefs.Store
	Transactions *services.TransactionService
	Sessions     *services.SessionService
	Formatter    *core.Formatter
	Caches       *cache.Manager
	PDF          *report.PDFExporter

	// Sheets and Feed are nil when not configured.
	Sheets *report.SheetsExporter
	Feed   *amqp.Client

	closers []func() error
}

// New wires everything cfg describes. Optional integrations that fail to
// start are logged and left disabled; the stores failing is fatal.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	if cfg == nil {
		return nil, errors.New("app config is nil")
	}
	logger := slog.Default().With(log.FieldComponent, log.ComponentApp)

	a := &App{Config: cfg, Changes: notify.NewBroadcaster()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Formatter, err = core.NewFormatter(cfg.CurrencyLocale, cfg.CurrencySymbol)
	if err != nil {
		return nil, err
	}

	a.Store, err = storage.NewSQLiteRepository(cfg.DBPath, a.Changes)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	a.closers = append(a.closers, a.Store.Close)

	a.Prefs, err = prefs.Open(cfg.PrefsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open preferences: %w", err)
	}
	a.closers = append(a.closers, a.Prefs.Close)

	var publisher services.ChangePublisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without change feed", log.FieldError, err)
		} else {
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "routing_key", cfg.AMQPRoutingKey)
			a.Feed = client
			publisher = client
			a.closers = append(a.closers, client.Close)
		}
	}

	a.Transactions = services.NewTransactionService(a.Store, a.Changes, publisher, services.ReportOptions{
		WindowDays:    cfg.ReportWindowDays,
		IncludeIncome: cfg.ReportIncludeIncome,
	})
	a.Sessions = services.NewSessionService(a.Store, a.Prefs)

	pdfCache := cache.NewLRUCache[[]byte]("report_pdf", cfg.ReportCacheSize, cfg.ReportCacheTTL)
	a.Caches = cache.NewManager()
	a.Caches.Register(pdfCache)
	a.Caches.Start(ctx, cfg.ReportCacheTTL)
	a.closers = append(a.closers, func() error {
		a.Caches.Stop()
		return nil
	})
	a.PDF = report.NewPDFExporter(cfg.ExportDir, cfg.ReportWindowDays, a.Formatter, pdfCache)

	if cfg.SheetsEnabled() {
		sheets, err := report.NewSheetsExporter(ctx, report.SheetsConfig{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Warn("Failed to initialize Google Sheets export, continuing without it", log.FieldError, err)
		} else {
			a.Sheets = sheets
		}
	}

	logger.Info("Initialized daybook",
		"db_path", cfg.DBPath,
		"amqp_enabled", a.Feed != nil,
		"sheets_enabled", a.Sheets != nil)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
