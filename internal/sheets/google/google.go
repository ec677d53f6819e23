package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"sitepay/internal/log"
	ports "sitepay/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// lastColumn is the column of the final header cell.
const lastColumn = "F"

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	Logger          *log.Logger
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// Ensure interface conformance
var _ ports.LedgerWriter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
// Extra options are appended after the credentials.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	credentialsJSON, err := loadCredentials(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	all := append([]goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, opts...)

	svc, err := gsheet.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger)
}

// NewWithService wraps an existing service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		return nil, errors.New("missing sheet name")
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName, logger: logger}, nil
}

func loadCredentials(ctx context.Context, logger *log.Logger, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)

	switch {
	case inline != "":
		logger.DebugContext(ctx, "Using inline service account credentials", "json_length", len(inline))
		return []byte(inline), nil
	case file != "":
		logger.DebugContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// WriteLedger clears the ledger columns and writes the header followed by
// rows starting at A1.
func (c *Client) WriteLedger(ctx context.Context, rows []ports.LedgerRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := quoteSheet(c.sheetName)
	clearRange := fmt.Sprintf("%s!A:%s", sheet, lastColumn)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("clear %s: %w", clearRange, err)
	}

	values := ports.Values(rows)
	dataRange := fmt.Sprintf("%s!A1:%s%d", sheet, lastColumn, len(values))
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", dataRange, err)
	}

	ref := dataRange
	if resp != nil && resp.UpdatedRange != "" {
		ref = resp.UpdatedRange
	}
	c.logger.DebugContext(ctx, "Ledger written", log.FieldSheetsRef, ref, log.FieldCount, len(rows))
	return ref, nil
}

// quoteSheet renders a sheet name for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
