package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samijaber1/vigil-ml/internal/scheduler"
	"github.com/samijaber1/vigil-ml/internal/storage"
	"github.com/samijaber1/vigil-ml/internal/suite"
)

// Server is the HTTP API server
type Server struct {
	scheduler *scheduler.Scheduler
	server    *http.Server
}

// NewServer creates a new API server. A non-nil metricsHandler is mounted at
// /metrics.
func NewServer(sched *scheduler.Scheduler, addr string, metricsHandler http.Handler) *Server {
	s := &Server{
		scheduler: sched,
	}

	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	// Suite endpoints
	mux.HandleFunc("/v1/suite", s.handleSuiteList)
	mux.HandleFunc("/v1/suite/", s.handleSuiteGet)

	// Report endpoint
	mux.HandleFunc("/v1/report/", s.handleReport)

	// Forced evaluation endpoint
	mux.HandleFunc("/v1/evaluate", s.handleEvaluate)

	// Audit endpoints
	mux.HandleFunc("/v1/runs", s.handleRuns)
	mux.HandleFunc("/v1/alerts", s.handleAlerts)

	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      loggingMiddleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the server's root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting API server on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	return s.server.Shutdown(ctx)
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady handles GET /readyz
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	suites := s.scheduler.GetSuites()
	cacheSize := s.scheduler.GetCache().Size()

	ready := len(suites) > 0
	reasons := []string{}

	if len(suites) == 0 {
		reasons = append(reasons, "no suites loaded")
	}

	if cacheSize == 0 {
		reasons = append(reasons, "no runs cached yet")
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, ReadyResponse{
		Ready:        ready,
		SuitesLoaded: len(suites),
		Reasons:      reasons,
	})
}

// handleSuiteList handles GET /v1/suite
func (s *Server) handleSuiteList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	suites := s.scheduler.GetSuites()

	summaries := make([]SuiteSummary, 0, len(suites))
	for _, sw := range suites {
		evaluators := make([]string, 0, len(sw.Suite.Spec.Evaluators))
		for _, ec := range sw.Suite.Spec.Evaluators {
			evaluators = append(evaluators, ec.Type)
		}
		summaries = append(summaries, SuiteSummary{
			ID:                 sw.Suite.Metadata.ID,
			Service:            sw.Suite.Metadata.Service,
			Environment:        sw.Suite.Spec.Environment,
			EvaluationInterval: sw.Suite.Spec.EvaluationInterval,
			Evaluators:         evaluators,
		})
	}

	respondJSON(w, http.StatusOK, SuiteListResponse{Suites: summaries})
}

// handleSuiteGet handles GET /v1/suite/{id}
func (s *Server) handleSuiteGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/suite/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "suite ID required")
		return
	}

	for _, sw := range s.scheduler.GetSuites() {
		if sw.Suite.Metadata.ID == id {
			respondJSON(w, http.StatusOK, sw.Suite)
			return
		}
	}

	respondError(w, http.StatusNotFound, fmt.Sprintf("suite not found: %s", id))
}

// handleReport handles GET /v1/report/{suiteID}
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/report/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "suite ID required")
		return
	}

	if state, ok := s.scheduler.GetCache().Get(id); ok {
		respondJSON(w, http.StatusOK, ReportResponse{
			Report:    state.Report,
			UpdatedAt: state.UpdatedAt,
			TTL:       suite.FormatDuration(state.TTL),
			IsStale:   state.IsStale(time.Now()),
		})
		return
	}

	// Cold cache: fall back to persisted latest report
	if audit := s.scheduler.GetAuditStorage(); audit != nil {
		report, err := audit.LatestReport(id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load report: %v", err))
			return
		}
		if report != nil {
			respondJSON(w, http.StatusOK, ReportResponse{
				Report:    report,
				UpdatedAt: report.FinishedAt,
				IsStale:   true,
			})
			return
		}
	}

	respondError(w, http.StatusNotFound, fmt.Sprintf("no report for suite: %s", id))
}

// handleEvaluate handles POST /v1/evaluate
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	if req.SuiteID == "" {
		respondError(w, http.StatusBadRequest, "suiteID required")
		return
	}

	report, err := s.scheduler.EvaluateNow(r.Context(), req.SuiteID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("evaluation failed: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// handleRuns handles GET /v1/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	audit := s.scheduler.GetAuditStorage()
	if audit == nil {
		respondError(w, http.StatusServiceUnavailable, "audit storage not configured")
		return
	}

	query := r.URL.Query()
	filter := storage.RunFilter{
		SuiteID:     query.Get("suiteID"),
		Service:     query.Get("service"),
		Environment: query.Get("environment"),
		Status:      query.Get("status"),
	}
	applyRangeParams(query.Get("limit"), query.Get("offset"), &filter.Limit, &filter.Offset)
	filter.StartTime = parseTimeParam(query.Get("startTime"))
	filter.EndTime = parseTimeParam(query.Get("endTime"))

	records, err := audit.QueryRuns(filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query runs: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, RunsResponse{Records: records, Total: len(records)})
}

// handleAlerts handles GET /v1/alerts
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	audit := s.scheduler.GetAuditStorage()
	if audit == nil {
		respondError(w, http.StatusServiceUnavailable, "audit storage not configured")
		return
	}

	query := r.URL.Query()
	filter := storage.AlertFilter{
		SuiteID:       query.Get("suiteID"),
		Severity:      query.Get("severity"),
		Metric:        query.Get("metric"),
		EvaluatorType: query.Get("evaluator"),
	}
	applyRangeParams(query.Get("limit"), query.Get("offset"), &filter.Limit, &filter.Offset)
	filter.StartTime = parseTimeParam(query.Get("startTime"))
	filter.EndTime = parseTimeParam(query.Get("endTime"))

	records, err := audit.QueryAlerts(filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query alerts: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, AlertsResponse{Records: records, Total: len(records)})
}

// Helper functions

func applyRangeParams(limitStr, offsetStr string, limit, offset *int) {
	if limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil {
			*limit = v
		}
	}
	if offsetStr != "" {
		if v, err := strconv.Atoi(offsetStr); err == nil {
			*offset = v
		}
	}
}

func parseTimeParam(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
