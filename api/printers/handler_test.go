package printers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/printfleet/core/matcher"
	"github.com/kilianp07/printfleet/core/model"
	"github.com/kilianp07/printfleet/core/planner"
)

type fakeBackend struct {
	loaded     map[int][]model.LoadedFilament
	refreshErr error
	submitted  []model.DispatchRequest
}

func (f *fakeBackend) LoadedFilaments(_ context.Context, id int) ([]model.LoadedFilament, error) {
	return f.loaded[id], nil
}

func (f *fakeBackend) RefreshPrinterStatus(context.Context, int) error { return f.refreshErr }

func (f *fakeBackend) PrinterModels(context.Context) ([]string, error) {
	return []string{"P1S", "X1C"}, nil
}

func (f *fakeBackend) SubmitDispatch(_ context.Context, req model.DispatchRequest) error {
	f.submitted = append(f.submitted, req)
	return nil
}

func (f *fakeBackend) Printers(context.Context) ([]model.Printer, error) {
	return []model.Printer{{ID: 1, Name: "X1C-1", Model: "X1C"}}, nil
}

func newRouter(t *testing.T) (*chi.Mux, *fakeBackend) {
	t.Helper()
	b := &fakeBackend{loaded: map[int][]model.LoadedFilament{
		1: {
			{GlobalTrayID: 0, MaterialType: "PLA", Color: "#00FF00"},
			{GlobalTrayID: 1, MaterialType: "PLA", Color: "#FF0000"},
		},
		2: {{GlobalTrayID: 4, MaterialType: "PETG", Color: "#FF0000"}},
	}}
	session := planner.NewSession(func(_ context.Context, fileID int) (*planner.Planner, error) {
		if fileID == 404 {
			return nil, errors.New("file not found")
		}
		job := model.PrintJob{FileID: fileID, SlicerModel: "X1C", Requirements: []model.FilamentRequirement{
			{SlotID: 1, MaterialType: "PLA", Color: "#FF0000"},
		}}
		p, err := planner.New(job, matcher.New(0), planner.Deps{Inventory: b, Refresher: b, Catalog: b})
		if err != nil {
			return nil, err
		}
		p.SetSettleDelay(0)
		return p, nil
	})
	r := chi.NewRouter()
	NewServer(session, b, b).RegisterRoutes(r)
	return r, b
}

func call(t *testing.T, r http.Handler, method, path, body string, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if out != nil && w.Code < 300 {
		require.NoError(t, json.NewDecoder(w.Body).Decode(out))
	}
	return w.Code
}

func TestRequiresOpenSession(t *testing.T) {
	r, _ := newRouter(t)
	assert.Equal(t, http.StatusConflict, call(t, r, http.MethodGet, "/printers/1/match", "", nil))
	assert.Equal(t, http.StatusConflict, call(t, r, http.MethodGet, "/plan/readiness", "", nil))
	assert.Equal(t, http.StatusBadRequest, call(t, r, http.MethodPost, "/plan", `{}`, nil))
	assert.Equal(t, http.StatusBadGateway, call(t, r, http.MethodPost, "/plan", `{"file_id":404}`, nil))
}

func TestMatchPinAndReset(t *testing.T) {
	r, _ := newRouter(t)
	var job model.PrintJob
	require.Equal(t, http.StatusCreated, call(t, r, http.MethodPost, "/plan", `{"file_id":7}`, &job))
	assert.Equal(t, 7, job.FileID)

	var res model.PrinterMatchResult
	require.Equal(t, http.StatusOK, call(t, r, http.MethodGet, "/printers/1/match", "", &res))
	assert.Equal(t, model.MatchFull, res.MatchStatus)
	require.Len(t, res.Slots, 1)
	assert.Equal(t, 1, res.Slots[0].Loaded.GlobalTrayID)

	require.Equal(t, http.StatusOK, call(t, r, http.MethodPut, "/printers/1/mappings/1", `{"tray_id":0}`, &res))
	assert.True(t, res.Slots[0].IsManual)
	assert.Equal(t, model.SlotTypeOnly, res.Slots[0].Status)
	assert.Equal(t, model.MatchPartial, res.MatchStatus)

	assert.Equal(t, http.StatusBadRequest, call(t, r, http.MethodPut, "/printers/1/mappings/0", `{"tray_id":0}`, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, r, http.MethodPut, "/printers/1/mappings/1", `{}`, nil))

	require.Equal(t, http.StatusOK, call(t, r, http.MethodPost, "/printers/1/reset", "", &res))
	assert.True(t, res.Config.UseDefault)
	assert.Equal(t, model.MatchFull, res.MatchStatus)

	require.Equal(t, http.StatusOK, call(t, r, http.MethodPost, "/printers/1/auto-configure", "", &res))
	assert.True(t, res.Config.AutoConfigured)
	assert.Equal(t, 1, res.Config.ManualMappings[1])

	require.Equal(t, http.StatusOK, call(t, r, http.MethodDelete, "/printers/1/mappings/1", "", &res))
	assert.True(t, res.Config.UseDefault)
}

func TestRefreshFailure(t *testing.T) {
	r, b := newRouter(t)
	require.Equal(t, http.StatusCreated, call(t, r, http.MethodPost, "/plan", `{"file_id":7}`, nil))
	assert.Equal(t, http.StatusOK, call(t, r, http.MethodPost, "/printers/2/refresh", "", nil))
	b.refreshErr = errors.New("printer offline")
	assert.Equal(t, http.StatusBadGateway, call(t, r, http.MethodPost, "/printers/2/refresh", "", nil))
}

func TestPlanFlowSpecificPrinters(t *testing.T) {
	r, b := newRouter(t)
	require.Equal(t, http.StatusCreated, call(t, r, http.MethodPost, "/plan", `{"file_id":7}`, nil))

	var rd planner.Readiness
	require.Equal(t, http.StatusOK, call(t, r, http.MethodGet, "/plan/readiness", "", &rd))
	assert.False(t, rd.CanDispatch)
	assert.Equal(t, http.StatusUnprocessableEntity, call(t, r, http.MethodPost, "/plan/dispatch", "", nil))

	require.Equal(t, http.StatusOK, call(t, r, http.MethodPut, "/plan/printers", `{"printer_ids":[1,2]}`, &rd))
	assert.True(t, rd.CanDispatch)
	assert.True(t, rd.MultiPrinter)
	assert.Equal(t, model.MatchNone, rd.Status, "printer 2 has no PLA loaded")

	var req model.DispatchRequest
	require.Equal(t, http.StatusAccepted, call(t, r, http.MethodPost, "/plan/dispatch", "", &req))
	require.Len(t, b.submitted, 1)
	assert.Equal(t, []model.DispatchTarget{
		{PrinterID: 1, AMSMapping: []int{1}},
		{PrinterID: 2, AMSMapping: []int{-1}},
	}, b.submitted[0].Targets)
}

func TestPlanFlowModelMode(t *testing.T) {
	r, b := newRouter(t)
	require.Equal(t, http.StatusCreated, call(t, r, http.MethodPost, "/plan", `{"file_id":7}`, nil))

	assert.Equal(t, http.StatusBadRequest, call(t, r, http.MethodPut, "/plan/mode", `{"mode":"queue"}`, nil))
	var rd planner.Readiness
	require.Equal(t, http.StatusOK, call(t, r, http.MethodPut, "/plan/mode", `{"mode":"model"}`, &rd))
	assert.Equal(t, "X1C", rd.TargetModel, "slicer model preselected")
	assert.Equal(t, http.StatusConflict, call(t, r, http.MethodPut, "/plan/printers", `{"printer_ids":[1]}`, nil))

	assert.Equal(t, http.StatusUnprocessableEntity, call(t, r, http.MethodPut, "/plan/model", `{"model":"A1"}`, nil))
	require.Equal(t, http.StatusOK, call(t, r, http.MethodPut, "/plan/model", `{"model":"p1s"}`, &rd))
	assert.Equal(t, "P1S", rd.TargetModel)

	var models []string
	require.Equal(t, http.StatusOK, call(t, r, http.MethodGet, "/plan/models", "", &models))
	assert.Equal(t, []string{"P1S", "X1C"}, models)

	require.Equal(t, http.StatusAccepted, call(t, r, http.MethodPost, "/plan/dispatch", "", nil))
	assert.Equal(t, model.DispatchRequest{FileID: 7, Mode: model.ModeModel, TargetModel: "P1S"}, b.submitted[0])

	assert.Equal(t, http.StatusNoContent, call(t, r, http.MethodDelete, "/plan", "", nil))
	assert.Equal(t, http.StatusConflict, call(t, r, http.MethodGet, "/plan/readiness", "", nil))
}

func TestListPrinters(t *testing.T) {
	r, _ := newRouter(t)
	var list []model.Printer
	require.Equal(t, http.StatusOK, call(t, r, http.MethodGet, "/printers", "", &list))
	assert.Equal(t, "X1C-1", list[0].Name)
}
