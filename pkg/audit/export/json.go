package export

import (
	"context"
	"encoding/json"
	"io"

	"mercator-hq/docguard/pkg/audit"
	"mercator-hq/docguard/pkg/model"
)

// Exporter writes audit entries to w.
type Exporter interface {
	Export(ctx context.Context, entries []*model.AuditEntry, w io.Writer) error
}

// JSONExporter exports audit entries as a JSON array.
type JSONExporter struct {
	// Pretty enables pretty-printing with indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes entries as a JSON array. An empty set is written as "[]".
func (e *JSONExporter) Export(ctx context.Context, entries []*model.AuditEntry, w io.Writer) error {
	if len(entries) == 0 {
		_, err := w.Write([]byte("[]"))
		return err
	}

	var (
		data []byte
		err  error
	)
	if e.Pretty {
		data, err = json.MarshalIndent(entries, "", "  ")
	} else {
		data, err = json.Marshal(entries)
	}
	if err != nil {
		return audit.NewExportError("json", len(entries), err)
	}

	if _, err := w.Write(data); err != nil {
		return audit.NewExportError("json", len(entries), err)
	}
	return nil
}

// ExportStream writes entries from a channel as a JSON array without
// holding them all in memory.
func (e *JSONExporter) ExportStream(ctx context.Context, entries <-chan *model.AuditEntry, w io.Writer) error {
	if _, err := w.Write([]byte("[")); err != nil {
		return audit.NewExportError("json", 0, err)
	}

	count := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case entry, ok := <-entries:
			if !ok {
				if _, err := w.Write([]byte("]")); err != nil {
					return audit.NewExportError("json", count, err)
				}
				return nil
			}

			if count > 0 {
				sep := ","
				if e.Pretty {
					sep = ",\n"
				}
				if _, err := io.WriteString(w, sep); err != nil {
					return audit.NewExportError("json", count, err)
				}
			}

			var (
				data []byte
				err  error
			)
			if e.Pretty {
				data, err = json.MarshalIndent(entry, "  ", "  ")
			} else {
				data, err = json.Marshal(entry)
			}
			if err != nil {
				return audit.NewExportError("json", count, err)
			}
			if _, err := w.Write(data); err != nil {
				return audit.NewExportError("json", count, err)
			}
			count++
		}
	}
}

// For returns the exporter for a format name ("json", "json-pretty", "csv").
func For(format string) (Exporter, bool) {
	switch format {
	case "json":
		return NewJSONExporter(false), true
	case "json-pretty":
		return NewJSONExporter(true), true
	case "csv":
		return NewCSVExporter(true), true
	default:
		return nil, false
	}
}
