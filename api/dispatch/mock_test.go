package dispatch

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/kilianp07/printfleet/core/model"
	"github.com/kilianp07/printfleet/core/tracker"
	"github.com/kilianp07/printfleet/core/tracker/history"
)

type mockTracker struct {
	mock.Mock
}

func (m *mockTracker) Batch() model.DispatchBatch {
	return m.Called().Get(0).(model.DispatchBatch)
}

func (m *mockTracker) CancellingIDs() []int {
	return m.Called().Get(0).([]int)
}

func (m *mockTracker) Cancel(ctx context.Context, jobID int) error {
	return m.Called(ctx, jobID).Error(0)
}

func (m *mockTracker) History(ctx context.Context, q history.Query) ([]history.Record, error) {
	args := m.Called(ctx, q)
	recs, _ := args.Get(0).([]history.Record)
	return recs, args.Error(1)
}

func TestCancelWithoutCanceller(t *testing.T) {
	tr := &mockTracker{}
	tr.On("Cancel", mock.Anything, 4).Return(tracker.ErrNoCanceller)
	r := chi.NewRouter()
	NewServer(tr).RegisterRoutes(r)

	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodPost, "/dispatch/jobs/4/cancel").Code)
	tr.AssertExpectations(t)
}

func TestHistoryQueryForwarded(t *testing.T) {
	tr := &mockTracker{}
	tr.On("History", mock.Anything, history.Query{PrinterName: "X1C-1", Status: model.JobFailed, Limit: 5}).
		Return(nil, errors.New("disk full"))
	r := chi.NewRouter()
	NewServer(tr).RegisterRoutes(r)

	w := do(r, http.MethodGet, "/dispatch/history?printer=X1C-1&status=failed&limit=5")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "disk full")
	tr.AssertExpectations(t)
}
