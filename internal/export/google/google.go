package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"conti/internal/core"
	ports "conti/internal/export"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client appends frozen monthly statements to a Google Sheet, one row
// per snapshot.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	reportsSheet  string
}

// Ensure interface conformance
var _ ports.SnapshotExporter = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: GOOGLE_REPORTS_SHEET_NAME (default "Reports"), plus service
// account credentials via GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	reportsSheet := strings.TrimSpace(os.Getenv("GOOGLE_REPORTS_SHEET_NAME"))
	if reportsSheet == "" {
		reportsSheet = "Reports"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		reportsSheet:  reportsSheet,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

// ExportSnapshot appends one row per statement: period, kind, headline
// figure and the full JSON payload for auditability.
func (c *Client) ExportSnapshot(ctx context.Context, stmt *core.Statement) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	payload, err := json.Marshal(stmt)
	if err != nil {
		return "", fmt.Errorf("marshal statement: %w", err)
	}

	generatedAt := stmt.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}

	vr := &gsheet.ValueRange{Values: [][]any{{
		stmt.PeriodStart,
		stmt.PeriodEnd,
		string(stmt.Kind),
		headlineFigure(stmt),
		generatedAt.Format(time.RFC3339),
		string(payload),
	}}}

	rng := fmt.Sprintf("%s!A:F", c.reportsSheet)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.reportsSheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}

	slog.InfoContext(ctx, "Exported monthly snapshot",
		"kind", string(stmt.Kind),
		"period_start", stmt.PeriodStart,
		"ref", ref)
	return ref, nil
}

// headlineFigure picks the one number worth showing next to the row.
func headlineFigure(stmt *core.Statement) string {
	switch {
	case stmt.BalanceSheet != nil:
		return core.FormatAmount(stmt.BalanceSheet.AssetTotal)
	case stmt.IncomeStatement != nil:
		return core.FormatAmount(stmt.IncomeStatement.NetIncome)
	case stmt.CashflowStatement != nil:
		return core.FormatAmount(stmt.CashflowStatement.TotalNet)
	}
	return ""
}
