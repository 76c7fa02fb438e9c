// Package export writes violation journal entries as JSON or CSV.
//
//	exporter, err := export.New(export.FormatCSV, false)
//	if err != nil {
//	    return err
//	}
//	violations, err := journal.List(ctx, storage.Filter{Since: since})
//	if err != nil {
//	    return err
//	}
//	return exporter.Export(ctx, violations, w)
//
// JSON output is always an array of storage.Violation objects. CSV output
// flattens each entry to one row with a header; retry_after is given in
// milliseconds and occurred_at in RFC 3339 UTC.
package export
