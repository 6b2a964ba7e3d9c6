package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"stockbt/internal/domain"
	"stockbt/internal/metrics"
	"stockbt/internal/store"
	"stockbt/internal/strategy"
)

// maxBodyBytes bounds a POST /api/backtest body.
const maxBodyBytes = 1 << 20

// Server serves the backtest HTTP API.
type Server struct {
	backtester *strategy.Backtester
	runs       store.RunStore
	strategies []string
	log        *slog.Logger
}

// NewServer creates a new HTTP API server. runs may be nil, in which case
// the run history endpoints answer 503.
func NewServer(bt *strategy.Backtester, runs store.RunStore, strategies []string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		backtester: bt,
		runs:       runs,
		strategies: strategies,
		log:        log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/backtest", requireIdentity(s.handleBacktest))
	mux.HandleFunc("GET /api/tickers", s.handleTickers)
	mux.HandleFunc("GET /api/backtest-runs", requireIdentity(s.handleListRuns))
	mux.HandleFunc("GET /api/backtest-runs/{id}", requireIdentity(s.handleGetRun))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
}

// Handler returns an http.Handler with CORS and identity middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(identityMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+HeaderUserID+", "+HeaderUserRole)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v before writing anything, so an unencodable value
// becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeErrorBody(w, status, ErrorResponse{Error: msg})
}

func writeErrorBody(w http.ResponseWriter, status int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeBacktestError maps a Backtester error onto a status code.
func (s *Server) writeBacktestError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeErrorBody(w, http.StatusBadRequest, ErrorResponse{Error: "invalid parameters", Errors: verr.Problems})
	case errors.Is(err, domain.ErrNoData):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientData):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.log.Error("backtest failed", "error", err)
		writeError(w, http.StatusInternalServerError, "backtest failed")
	}
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req domain.BacktestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	id, _ := IdentityFromContext(r.Context())
	res, err := s.backtester.RunAndSave(r.Context(), id.UserID, req)
	if err != nil {
		s.writeBacktestError(w, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := s.backtester.Tickers(r.Context())
	if err != nil {
		s.log.Error("listing tickers", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tickers")
		return
	}
	if tickers == nil {
		tickers = []string{}
	}
	writeJSON(w, tickers)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history not configured")
		return
	}
	skip, err := queryInt(r, "skip", 0)
	if err != nil || skip < 0 {
		writeError(w, http.StatusBadRequest, "skip must be a non-negative integer")
		return
	}
	limit, err := queryInt(r, "limit", store.DefaultListLimit)
	if err != nil || limit < 1 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	id, _ := IdentityFromContext(r.Context())
	owner := id.UserID
	if id.IsAdmin() {
		owner = ""
	}
	runs, err := s.runs.ListRuns(r.Context(), owner, skip, limit)
	if err != nil {
		s.log.Error("listing runs", "user", id.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch backtest runs")
		return
	}
	if runs == nil {
		runs = []domain.BacktestRun{}
	}
	writeJSON(w, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history not configured")
		return
	}
	runID := r.PathValue("id")
	if _, err := uuid.Parse(runID); err != nil {
		writeError(w, http.StatusNotFound, "backtest run not found")
		return
	}
	run, err := s.runs.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "backtest run not found")
		return
	}
	if err != nil {
		s.log.Error("fetching run", "id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch backtest run")
		return
	}

	id, _ := IdentityFromContext(r.Context())
	if !id.CanRead(run.UserID) {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}
	writeJSON(w, run)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok", Strategies: s.strategies})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
