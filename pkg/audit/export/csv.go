package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"mercator-hq/docguard/pkg/audit"
	"mercator-hq/docguard/pkg/model"
)

// CSVExporter exports audit entries as CSV. Details stay as compact JSON
// in a single column.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

var csvHeader = []string{
	"entry_id", "run_id", "sequence", "timestamp", "action", "actor", "details", "prev_hash", "hash",
}

// Export writes one row per entry.
func (e *CSVExporter) Export(ctx context.Context, entries []*model.AuditEntry, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(csvHeader); err != nil {
			return audit.NewExportError("csv", len(entries), err)
		}
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		row := []string{
			entry.EntryID,
			entry.RunID,
			strconv.FormatInt(entry.Sequence, 10),
			entry.Timestamp.UTC().Format(time.RFC3339Nano),
			string(entry.Action),
			entry.Actor,
			string(entry.Details),
			entry.PrevHash,
			entry.Hash,
		}
		if err := writer.Write(row); err != nil {
			return audit.NewExportError("csv", len(entries), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return audit.NewExportError("csv", len(entries), err)
	}
	return nil
}
