// Package history archives dispatch jobs once they reach a terminal state.
package history

import (
	"context"
	"strings"
	"time"

	"github.com/kilianp07/printfleet/core/model"
)

// Record is one finished dispatch job.
type Record struct {
	SessionID   string          `json:"session_id"`
	JobID       int             `json:"job_id"`
	SourceName  string          `json:"source_name"`
	PrinterName string          `json:"printer_name"`
	Status      model.JobStatus `json:"status"`
	Message     string          `json:"message,omitempty"`
	FinishedAt  time.Time       `json:"finished_at"`
}

// Query filters records. Zero fields match everything.
type Query struct {
	Since       time.Time
	PrinterName string
	Status      model.JobStatus
	Limit       int
}

// Match reports whether r satisfies q.
func (q Query) Match(r Record) bool {
	if !q.Since.IsZero() && r.FinishedAt.Before(q.Since) {
		return false
	}
	if q.PrinterName != "" && !strings.EqualFold(q.PrinterName, r.PrinterName) {
		return false
	}
	if q.Status != "" && q.Status != r.Status {
		return false
	}
	return true
}

// Store persists finished jobs.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore drops every record.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }

// limit keeps the newest n records of a slice ordered oldest first.
func limit(recs []Record, n int) []Record {
	if n <= 0 || len(recs) <= n {
		return recs
	}
	return recs[len(recs)-n:]
}
