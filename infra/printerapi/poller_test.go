package printerapi

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/printfleet/core/model"
)

type scriptedFetcher struct {
	mu    sync.Mutex
	calls int
	errAt map[int]bool
}

func (f *scriptedFetcher) DispatchStatus(context.Context) (model.DispatchEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.errAt[f.calls] {
		return model.DispatchEvent{}, errors.New("timeout")
	}
	return model.DispatchEvent{Total: f.calls}, nil
}

func TestPollerForwardsSnapshotsAndSkipsFailures(t *testing.T) {
	f := &scriptedFetcher{errAt: map[int]bool{2: true}}
	p := NewPoller(f, 5*time.Millisecond, nil)
	out := make(chan model.DispatchEvent, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, out) }()

	first := <-out
	second := <-out
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 1, first.Total)
	assert.Equal(t, 3, second.Total, "failed poll skipped")
}

func TestPollerStopsWhileBlockedOnSend(t *testing.T) {
	p := NewPoller(&scriptedFetcher{}, time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, make(chan model.DispatchEvent)) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestNewPollerDefaultInterval(t *testing.T) {
	assert.Equal(t, defaultPollInterval, NewPoller(&scriptedFetcher{}, 0, nil).interval)
}
