package viewstate

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"daybook/internal/core"
	"daybook/internal/log"
	"daybook/internal/notify"
)

type SummaryFeed interface {
	WatchLastDaysSummary(ctx context.Context) <-chan notify.Result[[]core.Summary]
}

// Exporter hands a report to an outside collaborator and returns where it
// went: a file path or a sheet range.
type Exporter interface {
	Export(ctx context.Context, rows []core.Summary) (string, error)
}

var ErrExportUnavailable = errors.New("export target not configured")

type ReportSnapshot struct {
	Loaded     bool
	Rows       []core.Summary
	ByDate     []core.SummaryGroup
	ByCategory []core.SummaryGroup
	Chart      []core.ChartPoint
	Total      string
	Message    string
}

type ReportHolder struct {
	*scope
	formatter *core.Formatter

	mu   sync.RWMutex
	snap ReportSnapshot
}

func NewReportHolder(ctx context.Context, feed SummaryFeed, formatter *core.Formatter) *ReportHolder {
	if formatter == nil {
		formatter = core.DefaultFormatter()
	}
	h := &ReportHolder{scope: newScope(ctx), formatter: formatter}
	h.snap.Total = formatter.Format(core.SummaryTotal(nil))
	h.launch(func(ctx context.Context) error {
		return follow(ctx, feed.WatchLastDaysSummary(ctx), h.apply)
	})
	return h
}

func (h *ReportHolder) Snapshot() ReportSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap
}

func (h *ReportHolder) apply(r notify.Result[[]core.Summary]) {
	if r.Err != nil {
		h.mu.Lock()
		h.snap.Loaded = true
		h.snap.Message = MsgTryAgain
		h.mu.Unlock()
		h.changed()
		return
	}
	rows := r.Value
	snap := ReportSnapshot{
		Loaded:     true,
		Rows:       rows,
		ByDate:     core.GroupSummaries(rows, core.GroupByDate),
		ByCategory: core.GroupSummaries(rows, core.GroupByCategory),
		Chart:      core.ChartPoints(rows),
		Total:      h.formatter.Format(core.SummaryTotal(rows)),
	}
	h.mu.Lock()
	h.snap = snap
	h.mu.Unlock()
	h.changed()
}

// Export sends the rows currently shown to e. It runs in the caller's
// goroutine because the caller wants the resulting location.
func (h *ReportHolder) Export(ctx context.Context, e Exporter) (string, error) {
	if e == nil {
		return "", ErrExportUnavailable
	}
	rows := h.Snapshot().Rows
	ref, err := e.Export(ctx, rows)
	if err != nil {
		slog.ErrorContext(ctx, "Report export failed",
			log.FieldComponent, log.ComponentViewState,
			log.FieldOperation, log.OpExport,
			log.FieldError, err)
		return "", err
	}
	return ref, nil
}
