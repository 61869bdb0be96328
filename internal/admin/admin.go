// Package admin serves health, metrics and the loaded rule table over HTTP.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/freezewatch/internal/rules"
)

// RuleTable is the read-only view of the rules the admin API exposes.
type RuleTable interface {
	Rules() []rules.Rule
	Len() int
	EdgeCount() int
}

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

// Handler holds the admin endpoints.
type Handler struct {
	table    RuleTable
	gatherer prometheus.Gatherer
	checks   map[string]Check
}

// NewHandler creates a Handler. checks may be nil.
func NewHandler(table RuleTable, gatherer prometheus.Gatherer, checks map[string]Check) *Handler {
	return &Handler{table: table, gatherer: gatherer, checks: checks}
}

// Router builds the admin routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Get("/rules", h.handleRules)
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	status := http.StatusOK
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

type edgeResponse struct {
	Domain      string `json:"domain"`
	EventID     string `json:"eventId"`
	Window      int64  `json:"window"`
	Code        uint64 `json:"code"`
	Scope       string `json:"scope"`
	SamePackage bool   `json:"samePackage"`
	Action      string `json:"action"`
}

type ruleResponse struct {
	Domain  string         `json:"domain"`
	EventID string         `json:"eventId"`
	Links   []edgeResponse `json:"links"`
}

type rulesResponse struct {
	Rules []ruleResponse `json:"rules"`
	Edges int            `json:"edges"`
}

func (h *Handler) handleRules(w http.ResponseWriter, _ *http.Request) {
	resp := rulesResponse{Rules: []ruleResponse{}, Edges: h.table.EdgeCount()}
	for _, rule := range h.table.Rules() {
		rr := ruleResponse{Domain: rule.Key.Domain, EventID: rule.Key.EventID, Links: []edgeResponse{}}
		for _, e := range rule.Edges {
			rr.Links = append(rr.Links, edgeResponse{
				Domain:      e.ToDomain,
				EventID:     e.ToEventID,
				Window:      e.Window,
				Code:        e.ResultID,
				Scope:       e.Scope,
				SamePackage: e.SamePackage,
				Action:      e.Action,
			})
		}
		resp.Rules = append(resp.Rules, rr)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

// NewServer builds an HTTP server for handler.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Serve runs srv until ctx is cancelled, then shuts it down.
func Serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("admin server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
