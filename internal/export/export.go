// Package export writes compliance reports to external destinations.
package export

import (
	"context"
	"fmt"
	"io"

	"spendsight/internal/views"
)

// ReportWriter publishes a report and returns a reference to where it landed.
type ReportWriter interface {
	WriteReport(ctx context.Context, r views.Report) (string, error)
}

// TextWriter renders the plain-text report to an io.Writer.
type TextWriter struct {
	W    io.Writer
	Name string
}

var (
	_ ReportWriter = (*TextWriter)(nil)
	_ ReportWriter = (*SheetsWriter)(nil)
)

func (t *TextWriter) WriteReport(_ context.Context, r views.Report) (string, error) {
	if _, err := io.WriteString(t.W, r.Text()); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	if t.Name == "" {
		return "stdout", nil
	}
	return t.Name, nil
}
