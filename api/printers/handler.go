// Package printers exposes per-printer filament mapping and the fleet
// assignment plan of the open job configuration session.
package printers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kilianp07/printfleet/core/fleet"
	"github.com/kilianp07/printfleet/core/mapping"
	"github.com/kilianp07/printfleet/core/model"
	"github.com/kilianp07/printfleet/core/planner"
)

// Lister lists the fleet. Optional.
type Lister interface {
	Printers(ctx context.Context) ([]model.Printer, error)
}

// Server serves the printer and plan endpoints.
type Server struct {
	session   *planner.Session
	submitter fleet.JobSubmitter
	lister    Lister
}

func NewServer(session *planner.Session, submitter fleet.JobSubmitter, lister Lister) *Server {
	return &Server{session: session, submitter: submitter, lister: lister}
}

// RegisterRoutes mounts /printers and /plan.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/printers", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Get("/{id}/match", s.withPrinter(s.handleMatch))
		r.Put("/{id}/mappings/{slot}", s.withPrinter(s.handlePin))
		r.Delete("/{id}/mappings/{slot}", s.withPrinter(s.handleUnpin))
		r.Post("/{id}/auto-configure", s.withPrinter(s.handleAutoConfigure))
		r.Post("/{id}/reset", s.withPrinter(s.handleReset))
		r.Post("/{id}/refresh", s.withPrinter(s.handleRefresh))
	})
	r.Route("/plan", func(r chi.Router) {
		r.Post("/", s.handleOpen)
		r.Delete("/", s.handleClose)
		r.Get("/models", s.withPlanner(s.handleModels))
		r.Get("/readiness", s.withPlanner(s.handleReadiness))
		r.Put("/mode", s.withPlanner(s.handleMode))
		r.Put("/printers", s.withPlanner(s.handleSelectPrinters))
		r.Put("/model", s.withPlanner(s.handleSelectModel))
		r.Post("/dispatch", s.withPlanner(s.handleDispatch))
	})
}

type plannerHandler func(w http.ResponseWriter, r *http.Request, p *planner.Planner)
type printerHandler func(w http.ResponseWriter, r *http.Request, p *planner.Planner, printerID int)

func (s *Server) withPlanner(h plannerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.session.Current()
		if err != nil {
			sendError(w, http.StatusConflict, err.Error())
			return
		}
		h(w, r, p)
	}
}

func (s *Server) withPrinter(h printerHandler) http.HandlerFunc {
	return s.withPlanner(func(w http.ResponseWriter, r *http.Request, p *planner.Planner) {
		id, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil || id < 0 {
			sendError(w, http.StatusBadRequest, "invalid printer id")
			return
		}
		h(w, r, p, id)
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if s.lister == nil {
		sendError(w, http.StatusNotImplemented, "printer listing unavailable")
		return
	}
	list, err := s.lister.Printers(r.Context())
	if err != nil {
		sendError(w, http.StatusBadGateway, err.Error())
		return
	}
	sendJSON(w, http.StatusOK, list)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request, p *planner.Planner, id int) {
	sendJSON(w, http.StatusOK, p.Evaluate(r.Context(), id))
}

// PinRequest is the body of PUT /printers/{id}/mappings/{slot}.
type PinRequest struct {
	TrayID *int `json:"tray_id"`
}

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request, p *planner.Planner, id int) {
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid slot id")
		return
	}
	var req PinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrayID == nil {
		sendError(w, http.StatusBadRequest, "tray_id is required")
		return
	}
	if err := p.Store().SetManual(id, slot, *req.TrayID); err != nil {
		if errors.Is(err, mapping.ErrInvalidSlot) {
			sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sendJSON(w, http.StatusOK, p.Evaluate(r.Context(), id))
}

func (s *Server) handleUnpin(w http.ResponseWriter, r *http.Request, p *planner.Planner, id int) {
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid slot id")
		return
	}
	p.Store().ClearManual(id, slot)
	sendJSON(w, http.StatusOK, p.Evaluate(r.Context(), id))
}

func (s *Server) handleAutoConfigure(w http.ResponseWriter, r *http.Request, p *planner.Planner, id int) {
	sendJSON(w, http.StatusOK, p.AutoConfigure(r.Context(), id))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, p *planner.Planner, id int) {
	p.Store().UseDefault(id)
	sendJSON(w, http.StatusOK, p.Evaluate(r.Context(), id))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request, p *planner.Planner, id int) {
	if err := p.Refresh(r.Context(), id); err != nil {
		sendError(w, http.StatusBadGateway, err.Error())
		return
	}
	sendJSON(w, http.StatusOK, p.Evaluate(r.Context(), id))
}

// OpenRequest is the body of POST /plan.
type OpenRequest struct {
	FileID int `json:"file_id"`
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileID <= 0 {
		sendError(w, http.StatusBadRequest, "file_id is required")
		return
	}
	p, err := s.session.Open(r.Context(), req.FileID)
	if err != nil {
		sendError(w, http.StatusBadGateway, err.Error())
		return
	}
	sendJSON(w, http.StatusCreated, p.Job())
}

func (s *Server) handleClose(w http.ResponseWriter, _ *http.Request) {
	s.session.Close()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request, p *planner.Planner) {
	models, err := p.Models(r.Context())
	if err != nil {
		sendError(w, http.StatusBadGateway, err.Error())
		return
	}
	sendJSON(w, http.StatusOK, models)
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request, p *planner.Planner) {
	res, err := p.Readiness(r.Context())
	if err != nil {
		sendError(w, http.StatusBadGateway, err.Error())
		return
	}
	sendJSON(w, http.StatusOK, res)
}

// ModeRequest is the body of PUT /plan/mode.
type ModeRequest struct {
	Mode model.AssignmentMode `json:"mode"`
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request, p *planner.Planner) {
	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Mode != model.ModeSpecificPrinters && req.Mode != model.ModeModel {
		sendError(w, http.StatusBadRequest, "mode must be printers or model")
		return
	}
	if err := p.SetMode(r.Context(), req.Mode); err != nil {
		sendError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.handleReadiness(w, r, p)
}

// PrintersRequest is the body of PUT /plan/printers.
type PrintersRequest struct {
	PrinterIDs []int `json:"printer_ids"`
}

func (s *Server) handleSelectPrinters(w http.ResponseWriter, r *http.Request, p *planner.Planner) {
	var req PrintersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := p.SelectPrinters(req.PrinterIDs); err != nil {
		sendPlanError(w, err)
		return
	}
	s.handleReadiness(w, r, p)
}

// ModelRequest is the body of PUT /plan/model.
type ModelRequest struct {
	Model string `json:"model"`
}

func (s *Server) handleSelectModel(w http.ResponseWriter, r *http.Request, p *planner.Planner) {
	var req ModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := p.SelectModel(r.Context(), req.Model); err != nil {
		sendPlanError(w, err)
		return
	}
	s.handleReadiness(w, r, p)
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request, p *planner.Planner) {
	if s.submitter == nil {
		sendError(w, http.StatusNotImplemented, "dispatch submission unavailable")
		return
	}
	req, err := p.Submit(r.Context(), s.submitter)
	if err != nil {
		sendPlanError(w, err)
		return
	}
	sendJSON(w, http.StatusAccepted, req)
}

func sendPlanError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, planner.ErrWrongMode):
		sendError(w, http.StatusConflict, err.Error())
	case errors.Is(err, planner.ErrNoPrinterSelected),
		errors.Is(err, planner.ErrNoModelSelected),
		errors.Is(err, planner.ErrNoModels),
		errors.Is(err, planner.ErrUnknownModel):
		sendError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		sendError(w, http.StatusBadGateway, err.Error())
	}
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, status int, message string) {
	sendJSON(w, status, map[string]string{"error": message})
}
