package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/freezewatch/internal/metrics"
	"github.com/roach88/freezewatch/internal/rules"
)

const adminRules = `
freeze:
  rules:
    - domain: ACE
      eventId: UI_BLOCK_6S
      links:
        - {domain: ACE, eventId: UI_BLOCK_6S, window: 0, result: {code: 0, scope: app}}
        - {domain: ACE, eventId: UI_BLOCK_3S, window: -6000, result: {code: 0, scope: app, samePackage: true}}
`

func newTestHandler(t *testing.T, checks map[string]Check) (http.Handler, *metrics.Metrics) {
	t.Helper()
	table, err := rules.Parse("rules.yaml", []byte(adminRules))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	return NewHandler(table, reg, checks).Router(), m
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	t.Run("no checks", func(t *testing.T) {
		h, _ := newTestHandler(t, nil)
		rec := get(t, h, "/healthz")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("failing check", func(t *testing.T) {
		h, _ := newTestHandler(t, map[string]Check{
			"store": func(context.Context) error { return nil },
			"nats":  func(context.Context) error { return errors.New("nats: connection closed") },
		})
		rec := get(t, h, "/healthz")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"status":"degraded","checks":{"store":"ok","nats":"nats: connection closed"}}`, rec.Body.String())
	})
}

func TestRules(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	rec := get(t, h, "/rules")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp rulesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Edges)
	require.Len(t, resp.Rules, 1)
	assert.Equal(t, "UI_BLOCK_6S", resp.Rules[0].EventID)
	require.Len(t, resp.Rules[0].Links, 2)
	assert.Equal(t, int64(-6000), resp.Rules[0].Links[1].Window)
	assert.True(t, resp.Rules[0].Links[1].SamePackage)
}

func TestMetrics(t *testing.T) {
	h, m := newTestHandler(t, nil)
	m.IncResolution("COMPLETE")

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `state="COMPLETE"`)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	srv := NewServer("127.0.0.1:0", http.NotFoundHandler())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, srv) }()

	cancel()
	assert.NoError(t, <-done)
}
