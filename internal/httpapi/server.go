package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/camwatch/camwatch/internal/httpapi/middleware"
	"github.com/camwatch/camwatch/internal/repo"
)

const defaultHistoryLimit = 100

// Server is the read-only view over the result sink that dashboards and
// bridges poll. It never mutates anything; all writes come from the
// scheduler's workers.
type Server struct {
	Logger  *zap.Logger
	Results repo.ResultStore

	// per-client throttle for the status routes; rate <= 0 disables it
	RatePerMin int
	RateBurst  int
}

func NewServer(l *zap.Logger, rs repo.ResultStore, ratePerMin, rateBurst int) *Server {
	return &Server{Logger: l, Results: rs, RatePerMin: ratePerMin, RateBurst: rateBurst}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)
	r.Use(middleware.RateLimit(s.RatePerMin, s.RateBurst))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/api/status", s.handleSnapshot)
	r.Get("/api/status/{name}", s.handleLatest)
	r.Get("/api/status/{name}/history", s.handleHistory)

	return r
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Results.Snapshot(r.Context())
	if err != nil {
		s.Logger.Warn("status_snapshot_error", zap.Error(err))
		http.Error(w, "snapshot error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	res, err := s.Results.Latest(r.Context(), name)
	if err != nil {
		s.Logger.Warn("status_latest_error", zap.String("endpoint", name), zap.Error(err))
		http.Error(w, "lookup error", http.StatusInternalServerError)
		return
	}
	if res == nil {
		http.Error(w, "unknown endpoint", http.StatusNotFound)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	hist, err := s.Results.History(r.Context(), name, limit)
	if err != nil {
		s.Logger.Warn("status_history_error", zap.String("endpoint", name), zap.Error(err))
		http.Error(w, "lookup error", http.StatusInternalServerError)
		return
	}
	if len(hist) == 0 {
		http.Error(w, "unknown endpoint", http.StatusNotFound)
		return
	}
	writeJSON(w, hist)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
