package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"daybook/internal/core"
	"daybook/internal/log"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// SheetsConfig selects the spreadsheet and the service account used to
// write to it. Exactly one of CredentialsJSON and CredentialsFile is needed.
type SheetsConfig struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// SheetsExporter appends summary rows to a Google Sheet.
type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	now           func() time.Time
}

func NewSheetsExporter(ctx context.Context, cfg SheetsConfig) (*SheetsExporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Reports"
	}

	var credentialsJSON []byte
	switch {
	case cfg.CredentialsJSON != "":
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case cfg.CredentialsFile != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets exporter ready",
		log.FieldComponent, log.ComponentSheets,
		"sheet", sheetName)

	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
		now:           time.Now,
	}, nil
}

// Export appends one row per summary bucket and returns the updated range.
func (e *SheetsExporter) Export(ctx context.Context, rows []core.Summary) (string, error) {
	if len(rows) == 0 {
		return "", ErrNoRows
	}
	vr := &gsheet.ValueRange{Values: summaryValues(rows, e.now())}
	rng := fmt.Sprintf("%s!A:D", e.sheetName)

	resp, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", e.sheetName, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	slog.InfoContext(ctx, "Report appended to sheet",
		log.FieldComponent, log.ComponentSheets,
		"range", ref,
		log.FieldCount, len(rows))
	return ref, nil
}

// summaryValues lays rows out as Date, Category, Amount, ExportedAt.
// Amounts go in as plain numbers so the sheet can sum them.
func summaryValues(rows []core.Summary, exportedAt time.Time) [][]any {
	stamp := exportedAt.Format(time.RFC3339)
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{r.Date.String(), r.Category, r.Total.StringFixed(2), stamp})
	}
	return out
}
