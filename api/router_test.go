package api

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Req", middleware.GetReqID(r.Context()))
		_, _ = w.Write([]byte("pong"))
	})
	r.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
}

func serve(h http.Handler, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRoutesMountedUnderAPI(t *testing.T) {
	h := NewServer(Config{}, nil, pingRoutes{}).Handler()

	w := serve(h, "/api/ping", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Req"))

	assert.Equal(t, http.StatusNotFound, serve(h, "/ping", "").Code)
	assert.Equal(t, http.StatusOK, serve(h, "/health", "").Code)
}

func TestBearerTokenRequired(t *testing.T) {
	h := NewServer(Config{APIToken: "secret"}, nil, pingRoutes{}).Handler()

	assert.Equal(t, http.StatusUnauthorized, serve(h, "/api/ping", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "/api/ping", "Bearer nope").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "/api/ping", "secret").Code)
	assert.Equal(t, http.StatusOK, serve(h, "/api/ping", "Bearer secret").Code)
	assert.Equal(t, http.StatusOK, serve(h, "/health", "").Code, "health is public")
}

func TestPanicRecovered(t *testing.T) {
	h := NewServer(Config{}, nil, pingRoutes{}).Handler()
	assert.Equal(t, http.StatusInternalServerError, serve(h, "/api/boom", "").Code)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s := NewServer(Config{Address: addr}, nil, pingRoutes{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestDefaultAddress(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, ":8080", c.Address)
}
