package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iskolarlink/iskolarlink-backend/pkg/config"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

func TestHealthLive(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	rec := httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "dev", rec.Header().Get("X-IskolarLink-Env"))
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}

	rec := httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"db": stubPinger{}, "redis": stubPinger{}}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"redis":"ok"`)

	rec = httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"db": stubPinger{}, "redis": stubPinger{err: errors.New("dial tcp")}}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "DEPENDENCY_ERROR")
}
