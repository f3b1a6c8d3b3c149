package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/token-pulse/pkg/analyzer"
	"github.com/token-pulse/pkg/audit"
	"github.com/token-pulse/pkg/config"
	"github.com/token-pulse/pkg/db"
	"github.com/token-pulse/pkg/helius"
)

// Server exposes analysis over HTTP: on-demand runs, stored history, and
// token audits.
type Server struct {
	an      *analyzer.Analyzer
	auditor *audit.Auditor
	store   *db.Store
	cfg     *config.Config
}

func New(an *analyzer.Analyzer, auditor *audit.Auditor, store *db.Store, cfg *config.Config) *Server {
	return &Server{an: an, auditor: auditor, store: store, cfg: cfg}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/analysis/{token}", s.handleAnalysis)
	r.Get("/api/analysis/{token}/history", s.handleHistory)
	r.Get("/api/audit/{token}", s.handleAudit)
	return r
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.APIPort),
		Handler: s.router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", srv.Addr).Msg("api server started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]interface{}{"status": "ok", "stats": stats})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	minutes := s.cfg.WindowMinutes
	if v := r.URL.Query().Get("minutes"); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m > 0 {
			minutes = m
		}
	}

	result, err := s.an.Analyze(r.Context(), token, time.Duration(minutes)*time.Minute)
	if errors.Is(err, analyzer.ErrNoData) {
		writeJSON(w, map[string]interface{}{"token_address": token, "window_minutes": minutes, "no_data": true})
		return
	}
	if errors.Is(err, helius.ErrInvalidAddress) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		// Anything else is an upstream or internal failure, not the caller's.
		writeError(w, http.StatusBadGateway, err)
		return
	}

	if _, err := s.store.InsertAnalysis(result); err != nil {
		log.Warn().Err(err).Msg("failed to store analysis snapshot")
	}
	writeJSON(w, result)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditor == nil || !s.auditor.Enabled() {
		writeError(w, http.StatusNotImplemented, fmt.Errorf("token audits require a birdeye API key"))
		return
	}

	token := chi.URLParam(r, "token")
	report, err := s.auditor.Audit(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, report)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rows, err := s.store.History(token, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, fmt.Errorf("no stored analyses for %s", token))
		return
	}
	writeJSON(w, rows)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
