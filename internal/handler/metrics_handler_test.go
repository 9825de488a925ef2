package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/defense-jury-api/internal/service"
)

type stubPinger struct {
	err error
}

func (p stubPinger) PingContext(context.Context) error {
	return p.err
}

type readyBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), stubPinger{}, stubPinger{})
	c, w := newGinContext(http.MethodGet, "/ready", nil)

	h.Ready(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body readyBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, map[string]string{"database": "ok", "cache": "ok"}, body.Checks)
}

func TestMetricsHandlerReadyReportsFailingDependency(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), stubPinger{}, stubPinger{err: errors.New("connection refused")})
	c, w := newGinContext(http.MethodGet, "/ready", nil)

	h.Ready(c)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body readyBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "connection refused", body.Checks["cache"])
	assert.Equal(t, "ok", body.Checks["database"])
}

func TestMetricsHandlerReadyWithoutDependencies(t *testing.T) {
	h := NewMetricsHandler(nil, nil, nil)
	c, w := newGinContext(http.MethodGet, "/ready", nil)

	h.Ready(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsHandlerSnapshot(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordConfirmedSittings(2)
	h := NewMetricsHandler(metrics, nil, nil)
	c, w := newGinContext(http.MethodGet, "/metrics/summary", nil)

	h.Snapshot(c)

	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Data struct {
			SittingsConfirmed uint64 `json:"sittings_confirmed"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, uint64(2), env.Data.SittingsConfirmed)
}
