package sink

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/efreitasn/alertbridge/internal/clock"
	"github.com/efreitasn/alertbridge/internal/domain"
)

// DefaultSheetRange targets the first sheet of the spreadsheet.
const DefaultSheetRange = "A1"

// SheetsSink appends one row per order to a Google spreadsheet.
type SheetsSink struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	sheetRange    string
	clock         clock.Clock
}

// NewSheetsService authenticates with a service-account key file and
// returns a Sheets API client. Extra options are appended after the
// credentials so tests can point it at a local server.
func NewSheetsService(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*sheets.Service, error) {
	all := append([]option.ClientOption{
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	}, opts...)
	svc, err := sheets.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	return svc, nil
}

// NewSheetsSink creates a sink appending to spreadsheetID at sheetRange.
// An empty sheetRange means DefaultSheetRange.
func NewSheetsSink(svc *sheets.Service, spreadsheetID, sheetRange string, clk clock.Clock) *SheetsSink {
	if sheetRange == "" {
		sheetRange = DefaultSheetRange
	}
	return &SheetsSink{
		values:        svc.Spreadsheets.Values,
		spreadsheetID: spreadsheetID,
		sheetRange:    sheetRange,
		clock:         clk,
	}
}

func (s *SheetsSink) Name() string { return "sheets" }

func (s *SheetsSink) Record(ctx context.Context, order *domain.OrderResult) error {
	row := Row(s.clock.Now(), order)
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}

	_, err := s.values.Append(s.spreadsheetID, s.sheetRange, &sheets.ValueRange{
		Values: [][]interface{}{cells},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append row to %s: %w", s.spreadsheetID, err)
	}
	return nil
}
