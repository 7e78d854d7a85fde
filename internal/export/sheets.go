package export

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"spendsight/internal/log"
	"spendsight/internal/views"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// SheetsConfig selects the spreadsheet and credentials used for the export.
type SheetsConfig struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// SheetsWriter replaces the contents of one sheet with the report rows.
type SheetsWriter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *log.Logger
}

// NewSheetsWriter creates a writer authenticated with a service account.
func NewSheetsWriter(ctx context.Context, cfg SheetsConfig, logger *log.Logger) (*SheetsWriter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewSheetsWriterWithService(svc, cfg, logger), nil
}

// NewSheetsWriterWithService wraps an already configured service.
func NewSheetsWriterWithService(svc *gsheet.Service, cfg SheetsConfig, logger *log.Logger) *SheetsWriter {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Report"
	}
	return &SheetsWriter{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		sheet:         sheet,
		logger:        logger.WithComponent(log.ComponentExport),
	}
}

// newSheetsService initializes a Sheets service from service account
// credentials, inline JSON taking precedence over the file.
func newSheetsService(ctx context.Context, cfg SheetsConfig) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		credentialsJSON = []byte(cfg.ServiceAccountJSON)
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		b, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// WriteReport creates the sheet when missing, clears it, then writes the
// report rows starting at A1.
func (w *SheetsWriter) WriteReport(ctx context.Context, r views.Report) (string, error) {
	if w.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if err := w.ensureSheet(ctx); err != nil {
		return "", err
	}

	if _, err := w.svc.Spreadsheets.Values.Clear(w.spreadsheetID, w.sheet, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear sheet %s: %w", w.sheet, err)
	}

	rows := r.Rows()
	resp, err := w.svc.Spreadsheets.Values.Update(w.spreadsheetID, w.sheet+"!A1", &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update sheet %s: %w", w.sheet, err)
	}

	ref := resp.UpdatedRange
	if ref == "" {
		ref = w.sheet + "!A1"
	}
	w.logger.InfoContext(ctx, "Report exported",
		log.FieldSpreadsheetID, w.spreadsheetID,
		log.FieldRecordCount, len(rows),
		"range", ref)
	return ref, nil
}

func (w *SheetsWriter) ensureSheet(ctx context.Context) error {
	ss, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == w.sheet {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: w.sheet}},
		}},
	}
	if _, err := w.svc.Spreadsheets.BatchUpdate(w.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", w.sheet, err)
	}
	w.logger.InfoContext(ctx, "Created report sheet", log.FieldSpreadsheetID, w.spreadsheetID, "sheet", w.sheet)
	return nil
}
