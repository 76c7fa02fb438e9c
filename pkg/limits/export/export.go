package export

import (
	"context"
	"fmt"
	"io"

	"mercator-hq/toolgate/pkg/limits/storage"
)

// Supported formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Exporter writes violation journal entries in one format.
type Exporter interface {
	Export(ctx context.Context, violations []*storage.Violation, w io.Writer) error

	// ContentType is the MIME type of the output.
	ContentType() string
}

// New returns the exporter for format. JSON output is indented when pretty
// is set; CSV output always carries a header row.
func New(format string, pretty bool) (Exporter, error) {
	switch format {
	case FormatJSON, "":
		return NewJSONExporter(pretty), nil
	case FormatCSV:
		return NewCSVExporter(true), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q: must be 'json' or 'csv'", format)
	}
}

// ExportError reports a failed export.
type ExportError struct {
	Format string
	Count  int
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("failed to export %d violations as %s: %v", e.Count, e.Format, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
