// Package export writes archived dispatch jobs in machine readable formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/printfleet/core/tracker/history"
)

// Formats lists the supported output formats.
var Formats = []string{"json", "csv"}

// Write encodes records in the named format.
func Write(w io.Writer, format string, records []history.Record) error {
	switch format {
	case "json":
		return WriteJSON(w, records)
	case "csv":
		return WriteCSV(w, records)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteJSON writes the records to w as one JSON array.
func WriteJSON(w io.Writer, records []history.Record) error {
	if records == nil {
		records = []history.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// WriteCSV writes the records to w in CSV format with a header row.
func WriteCSV(w io.Writer, records []history.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"finished_at", "job_id", "printer", "source", "status", "message", "session"}); err != nil {
		return err
	}
	for _, r := range records {
		rec := []string{
			r.FinishedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(r.JobID),
			r.PrinterName,
			r.SourceName,
			string(r.Status),
			r.Message,
			r.SessionID,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
