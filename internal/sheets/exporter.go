// Package sheets mirrors created expense rows into a Google Sheet. The
// sheet is a convenience export; failures are logged and never block the
// primary write.
package sheets

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/sheets/v4"

	"github.com/tanvirk/ledgerbot/internal/logger"
)

const appendRange = "Expenses!A:D"

// Exporter appends expense rows to a spreadsheet.
type Exporter struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewExporter creates an exporter using application default credentials.
func NewExporter(ctx context.Context, spreadsheetID string) (*Exporter, error) {
	svc, err := sheets.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets.NewExporter: %w", err)
	}
	return &Exporter{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// AppendExpense appends one expense row: date, description, amount,
// category.
func (e *Exporter) AppendExpense(ctx context.Context, date time.Time, description string, amount float64, category string) error {
	values := &sheets.ValueRange{
		Values: [][]any{
			{date.Format("2006-01-02"), description, amount, category},
		},
	}

	_, err := e.svc.Spreadsheets.Values.
		Append(e.spreadsheetID, appendRange, values).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets.AppendExpense: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("spreadsheet_id", e.spreadsheetID).
		Str("description", description).
		Msg("Mirrored expense to sheet")

	return nil
}
