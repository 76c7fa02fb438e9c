package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"mercator-hq/toolgate/pkg/limits/storage"
)

// CSVExporter writes violations as CSV, one row per entry.
type CSVExporter struct {
	// IncludeHeader writes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

var csvHeader = []string{
	"id", "occurred_at", "session_id", "tool_name", "category",
	"ip_address", "dimension", "retry_after_ms", "message",
}

// Export writes violations as CSV. The context is checked between rows.
func (e *CSVExporter) Export(ctx context.Context, violations []*storage.Violation, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(csvHeader); err != nil {
			return &ExportError{Format: FormatCSV, Count: len(violations), Err: err}
		}
	}

	for _, v := range violations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writer.Write(violationRow(v)); err != nil {
			return &ExportError{Format: FormatCSV, Count: len(violations), Err: err}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return &ExportError{Format: FormatCSV, Count: len(violations), Err: err}
	}
	return nil
}

// ContentType returns "text/csv".
func (e *CSVExporter) ContentType() string {
	return "text/csv; charset=utf-8"
}

func violationRow(v *storage.Violation) []string {
	return []string{
		v.ID,
		v.OccurredAt.UTC().Format(time.RFC3339Nano),
		v.SessionID,
		v.ToolName,
		v.Category,
		v.IPAddress,
		v.Dimension,
		strconv.FormatInt(v.RetryAfter.Milliseconds(), 10),
		v.Message,
	}
}
