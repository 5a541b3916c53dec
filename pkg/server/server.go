// Package server exposes stored reports and narratives over HTTP and lets
// clients trigger a pipeline run.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/elonfeng/narradar/internal/pipeline"
	"github.com/elonfeng/narradar/internal/store"
)

// Runner runs one pipeline pass.
type Runner interface {
	Run(ctx context.Context, start, end time.Time) (*pipeline.Result, error)
	DefaultPeriod(days int) (start, end time.Time)
}

// Server provides the HTTP API.
type Server struct {
	store      store.Store
	runner     Runner
	periodDays int
	port       int
	logger     *slog.Logger
}

// New creates a new HTTP server. runner may be nil, which disables POST /api/v1/run.
func New(s store.Store, runner Runner, periodDays, port int, logger *slog.Logger) *Server {
	if port == 0 {
		port = 8080
	}
	if periodDays <= 0 {
		periodDays = 14
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:      s,
		runner:     runner,
		periodDays: periodDays,
		port:       port,
		logger:     logger,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/reports", s.handleReports)
	mux.HandleFunc("GET /api/v1/reports/latest", s.handleLatestReport)
	mux.HandleFunc("GET /api/v1/reports/{id}", s.handleReport)
	mux.HandleFunc("GET /api/v1/narratives/{id}", s.handleNarrative)
	mux.HandleFunc("POST /api/v1/run", s.handleRun)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("narradar server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	opts := store.ReportListOpts{
		Status: r.URL.Query().Get("status"),
		Limit:  50,
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}

	reports, err := s.store.ListReports(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  reports,
		"count": len(reports),
	})
}

func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.store.LatestReport(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeReport(w, r, report)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.store.GetReport(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeReport(w, r, report)
}

// reportDetail is a report with everything it produced.
type reportDetail struct {
	*store.Report
	Narratives []store.Narrative `json:"narratives"`
	Candidates []store.Candidate `json:"candidates"`
}

func (s *Server) writeReport(w http.ResponseWriter, r *http.Request, report *store.Report) {
	narratives, err := s.store.ListNarratives(r.Context(), store.NarrativeListOpts{ReportID: report.ID, Limit: 1000})
	if err != nil {
		writeError(w, err)
		return
	}
	candidates, err := s.store.ListCandidates(r.Context(), report.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": reportDetail{Report: report, Narratives: narratives, Candidates: candidates},
	})
}

func (s *Server) handleNarrative(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.GetNarrative(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": n})
}

// handleRun runs the pipeline synchronously. Optional start and end query
// parameters (YYYY-MM-DD) override the default period.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "pipeline not configured"})
		return
	}

	start, end := s.runner.DefaultPeriod(s.periodDays)
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start date: " + v})
			return
		}
		start = t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end date: " + v})
			return
		}
		end = t
	}
	if end.Before(start) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end is before start"})
		return
	}

	// A dropped client does not abort the run.
	res, err := s.runner.Run(context.WithoutCancel(r.Context()), start, end)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Error("run via api failed", "error", err)
		resp := map[string]any{"error": err.Error()}
		if res != nil && res.Report != nil {
			resp["report_id"] = res.Report.ID
		}
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"report_id":  res.Report.ID,
			"status":     res.Report.Status,
			"narratives": len(res.Narratives),
			"signals":    res.Signals,
			"skipped":    len(res.Skipped),
		},
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, store.ErrNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
