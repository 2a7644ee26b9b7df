// Package httpapi exposes the manual import trigger, the status view,
// health and metrics over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eduadmin-sync/internal/domain"
	"eduadmin-sync/internal/logging"
	"eduadmin-sync/internal/metrics"
	"eduadmin-sync/internal/status"
)

type Importer interface {
	Run(ctx context.Context) (domain.RunStats, error)
}

type StatusSource interface {
	MarkManual(ctx context.Context) error
	Snapshot(ctx context.Context) (status.Snapshot, error)
	RenderHTML(snap status.Snapshot) (string, error)
}

type Config struct {
	JWTSecret     string
	RequiredScope string
	// TriggerRate is the number of manual imports allowed per client IP per
	// minute. Zero disables the limit.
	TriggerRate int
}

type Server struct {
	cfg      Config
	importer Importer
	status   StatusSource
}

func New(cfg Config, importer Importer, st StatusSource) *Server {
	if cfg.RequiredScope == "" {
		cfg.RequiredScope = "manage_options"
	}
	return &Server{cfg: cfg, importer: importer, status: st}
}

// Envelope is the response body of the API endpoints. Data holds the payload
// on success and the error message otherwise.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type importResult struct {
	HTML  string          `json:"html"`
	Stats domain.RunStats `json:"stats"`
}

type statusResult struct {
	HTML     string          `json:"html"`
	Snapshot status.Snapshot `json:"snapshot"`
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Group(func(r chi.Router) {
			if s.cfg.TriggerRate > 0 {
				r.Use(httprate.LimitByIP(s.cfg.TriggerRate, time.Minute))
			}
			r.Use(RequireScope(s.cfg.JWTSecret, s.cfg.RequiredScope))
			r.Post("/import", s.handleImport)
		})
	})
	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.status.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	html, err := s.status.RenderHTML(snap)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: statusResult{HTML: html, Snapshot: snap}})
}

// handleImport runs a full import synchronously. The run is detached from the
// request context so a disconnecting client does not abort it halfway.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	subject := ""
	if c, ok := ClaimsFrom(ctx); ok {
		subject = c.Subject
	}
	logging.Info().Str("subject", subject).Msg("manual import requested")

	stats, runErr := s.importer.Run(ctx)
	if err := s.status.MarkManual(ctx); err != nil {
		logging.Warn().Err(err).Msg("failed to store last manual import time")
	}
	if runErr != nil {
		metrics.ManualTriggers.WithLabelValues("error").Inc()
		writeError(w, http.StatusBadGateway, runErr)
		return
	}
	metrics.ManualTriggers.WithLabelValues("success").Inc()

	snap, err := s.status.Snapshot(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	html, err := s.status.RenderHTML(snap)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: importResult{HTML: html, Stats: stats}})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, Envelope{Success: false, Data: err.Error()})
}

func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}
