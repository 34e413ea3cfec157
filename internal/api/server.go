// Package api exposes the sync triggers, scheduler status, health and metrics over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"holdersync/internal/metrics"
	"holdersync/internal/poolsync"
	"holdersync/internal/scheduler"
	"holdersync/internal/storage"
)

// PoolSyncer syncs one pool by id.
type PoolSyncer interface {
	SyncPool(ctx context.Context, poolID int64) (poolsync.SyncResult, error)
}

// BulkRunner starts background bulk runs and reports their state.
type BulkRunner interface {
	Trigger(ctx context.Context) (string, error)
	Status() scheduler.Status
}

type Config struct {
	Addr        string
	SyncTimeout time.Duration
}

type Server struct {
	cfg        Config
	baseCtx    context.Context
	syncer     PoolSyncer
	runner     BulkRunner
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds the server. Background runs started over HTTP inherit ctx.
func NewServer(ctx context.Context, cfg Config, syncer PoolSyncer, runner BulkRunner, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = 5 * time.Minute
	}
	s := &Server{
		cfg:     cfg,
		baseCtx: ctx,
		syncer:  syncer,
		runner:  runner,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /sync/pools/{id}", s.handleSyncPool)
	mux.HandleFunc("POST /sync/all", s.handleSyncAll)
	mux.HandleFunc("GET /sync/status", s.handleStatus)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.SyncTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSyncPool(w http.ResponseWriter, r *http.Request) {
	poolID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || poolID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid pool id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.SyncTimeout)
	defer cancel()

	result, err := s.syncer.SyncPool(ctx, poolID)
	if err != nil {
		status := syncErrorStatus(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("manual pool sync failed", zap.Int64("pool_id", poolID), zap.Error(err))
		}
		writeJSON(w, status, map[string]any{"error": err.Error(), "result": result})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSyncAll(w http.ResponseWriter, _ *http.Request) {
	runID, err := s.runner.Trigger(s.baseCtx)
	if errors.Is(err, scheduler.ErrBulkRunSkipped) {
		writeJSON(w, http.StatusConflict, map[string]any{"skipped": true, "status": s.runner.Status()})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Status())
}

func syncErrorStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, poolsync.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, poolsync.ErrNoHoldersFound), errors.Is(err, poolsync.ErrProviderUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
