// Package dispatch exposes the background dispatch tracker over HTTP.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kilianp07/printfleet/core/model"
	"github.com/kilianp07/printfleet/core/tracker"
	"github.com/kilianp07/printfleet/core/tracker/history"
)

// Tracker is the part of tracker.Tracker used by the handlers.
type Tracker interface {
	Batch() model.DispatchBatch
	CancellingIDs() []int
	Cancel(ctx context.Context, jobID int) error
	History(ctx context.Context, q history.Query) ([]history.Record, error)
}

// Server serves the dispatch endpoints.
type Server struct {
	tracker Tracker
}

func NewServer(t Tracker) *Server {
	return &Server{tracker: t}
}

// BatchResponse is the body of GET /dispatch/batch.
type BatchResponse struct {
	model.DispatchBatch
	Cancelling  []int `json:"cancelling"`
	ActiveWork  bool  `json:"has_active_work"`
	AllFinished bool  `json:"all_done"`
}

// RegisterRoutes mounts the routes under /dispatch.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/dispatch", func(r chi.Router) {
		r.Get("/batch", s.handleBatch)
		r.Post("/jobs/{id}/cancel", s.handleCancel)
		r.Get("/history", s.handleHistory)
	})
}

func (s *Server) handleBatch(w http.ResponseWriter, _ *http.Request) {
	b := s.tracker.Batch()
	sendJSON(w, http.StatusOK, BatchResponse{
		DispatchBatch: b,
		Cancelling:    s.tracker.CancellingIDs(),
		ActiveWork:    b.HasActiveWork(),
		AllFinished:   b.AllDone(),
	})
}

// handleCancel handles POST /dispatch/jobs/{id}/cancel. The request is
// accepted immediately; the outcome shows up in later batches.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	switch err := s.tracker.Cancel(r.Context(), id); {
	case err == nil:
		sendJSON(w, http.StatusAccepted, map[string]any{"job_id": id, "status": "cancelling"})
	case errors.Is(err, tracker.ErrUnknownJob):
		sendError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tracker.ErrCancelInFlight):
		sendError(w, http.StatusConflict, err.Error())
	default:
		sendError(w, http.StatusServiceUnavailable, err.Error())
	}
}

// handleHistory handles GET /dispatch/history?printer=&status=&since=&limit=.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := history.Query{PrinterName: r.URL.Query().Get("printer")}
	if st := r.URL.Query().Get("status"); st != "" {
		status, ok := model.ParseJobStatus(st)
		if !ok {
			sendError(w, http.StatusBadRequest, "invalid status")
			return
		}
		q.Status = status
	}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			sendError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		q.Since = t
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			sendError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = n
	}
	recs, err := s.tracker.History(r.Context(), q)
	if err != nil {
		sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []history.Record{}
	}
	sendJSON(w, http.StatusOK, recs)
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, status int, message string) {
	sendJSON(w, status, map[string]string{"error": message})
}
