package export

import (
	"context"
	"encoding/json"
	"io"

	"mercator-hq/toolgate/pkg/limits/storage"
)

// JSONExporter writes violations as a JSON array.
type JSONExporter struct {
	// Pretty enables indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes violations as one JSON array, "[]" when there are none.
func (e *JSONExporter) Export(ctx context.Context, violations []*storage.Violation, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if violations == nil {
		violations = []*storage.Violation{}
	}

	enc := json.NewEncoder(w)
	if e.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(violations); err != nil {
		return &ExportError{Format: FormatJSON, Count: len(violations), Err: err}
	}
	return nil
}

// ContentType returns "application/json".
func (e *JSONExporter) ContentType() string {
	return "application/json"
}
