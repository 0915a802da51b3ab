package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledger/internal/log"
	ports "ledger/internal/sheets"
)

var _ ports.ExpenseExporter = (*Client)(nil)

const defaultSheetName = "Expenses"

// Config selects the target spreadsheet and the service account used to
// write to it.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// valuesAppender is the part of the Sheets values API the client uses.
type valuesAppender interface {
	Append(ctx context.Context, spreadsheetID, rng string, vr *gsheet.ValueRange) error
}

// Client appends expenses to one sheet per year, named "<year> <SheetName>".
type Client struct {
	values        valuesAppender
	spreadsheetID string
	sheetBase     string
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetBase := strings.TrimSpace(cfg.SheetName)
	if sheetBase == "" {
		sheetBase = defaultSheetName
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		values:        sheetsValues{svc: svc},
		spreadsheetID: spreadsheetID,
		sheetBase:     sheetBase,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Inline JSON wins over the file; GOOGLE_APPLICATION_CREDENTIALS is the last resort.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsJSON, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	sheetsLog(ctx).DebugContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func loadCredentials(cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

type sheetsValues struct {
	svc *gsheet.Service
}

func (v sheetsValues) Append(ctx context.Context, spreadsheetID, rng string, vr *gsheet.ValueRange) error {
	_, err := v.svc.Spreadsheets.Values.Append(spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// AppendExpenses writes rows as date, category, description, amount. Rows are
// split by the year of their date; each year goes to its own sheet.
func (c *Client) AppendExpenses(ctx context.Context, rows []ports.ExpenseRow) (int, error) {
	if c.values == nil {
		return 0, errors.New("sheets service not initialized")
	}

	byYear := make(map[int][][]any)
	for _, r := range rows {
		y := r.Date.UTC().Year()
		byYear[y] = append(byYear[y], rowValues(r))
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	written := 0
	for _, y := range years {
		sheet := yearPrefixedName(c.sheetBase, y)
		rng := a1Range(sheet, "A:D")
		if err := c.values.Append(ctx, c.spreadsheetID, rng, &gsheet.ValueRange{Values: byYear[y]}); err != nil {
			return written, fmt.Errorf("append to sheet %s: %w", sheet, err)
		}
		written += len(byYear[y])
		sheetsLog(ctx).InfoContext(ctx, "Appended expenses to Google Sheet",
			log.FieldOperation, log.OpExport,
			"sheet", sheet,
			"rows", len(byYear[y]))
	}
	return written, nil
}

func rowValues(r ports.ExpenseRow) []any {
	return []any{
		r.Date.UTC().Format("2006-01-02"),
		r.Category,
		r.Description,
		r.Amount.String(),
	}
}

func a1Range(sheet, cols string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), cols)
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

func sheetsLog(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentSheets)
}
