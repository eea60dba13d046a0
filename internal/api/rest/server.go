package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"livevision/internal/domain/entity"
)

const shutdownTimeout = 5 * time.Second

// Controller операции детектора, доступные по HTTP
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
	SetThreshold(v float32) error
	Threshold() float32
	Status() entity.Snapshot
	Stats() entity.LoopStats
	AnnotatedFrame() ([]byte, entity.Snapshot, error)
}

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusResponse срез состояния вместе с текущим порогом
type StatusResponse struct {
	entity.Snapshot
	Threshold float32 `json:"threshold"`
}

// MetricsResponse счётчики планировщика
type MetricsResponse struct {
	entity.LoopStats
	FPS        int    `json:"fps"`
	FrameCount uint64 `json:"frame_count"`
}

type thresholdRequest struct {
	Threshold *float32 `json:"threshold"`
}

// Server HTTP-интерфейс управления детектором
type Server struct {
	control Controller
	logger  *zap.Logger
	router  *mux.Router
	http    *http.Server
}

func NewServer(addr string, control Controller, logger *zap.Logger) *Server {
	s := &Server{
		control: control,
		logger:  logger,
		router:  mux.NewRouter(),
	}
	s.routes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.Use(s.logRequests)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/start", s.handleStart).Methods(http.MethodPost)
	s.router.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)
	s.router.HandleFunc("/threshold", s.handleThreshold).Methods(http.MethodPut)
	s.router.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	s.router.HandleFunc("/snapshot.jpg", s.handleSnapshot).Methods(http.MethodGet)
}

// Handler возвращает маршрутизатор, удобно для httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run обслуживает запросы до отмены контекста
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.status(), http.StatusOK)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.control.Start(r.Context()); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, s.status(), http.StatusOK)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.control.Stop(); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, s.status(), http.StatusOK)
}

func (s *Server) handleThreshold(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, ErrorResponse{Code: "bad_request", Message: "invalid JSON body"}, http.StatusBadRequest)
		return
	}
	if req.Threshold == nil {
		respondJSON(w, ErrorResponse{Code: "bad_request", Message: "threshold is required"}, http.StatusBadRequest)
		return
	}
	if err := s.control.SetThreshold(*req.Threshold); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, s.status(), http.StatusOK)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := s.control.Status()
	respondJSON(w, MetricsResponse{
		LoopStats:  s.control.Stats(),
		FPS:        snap.FPS,
		FrameCount: snap.FrameCount,
	}, http.StatusOK)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	data, _, err := s.control.AnnotatedFrame()
	if err != nil {
		s.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) status() StatusResponse {
	return StatusResponse{Snapshot: s.control.Status(), Threshold: s.control.Threshold()}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(started)))
	})
}

// respondError переводит доменную ошибку в HTTP-статус
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	respondJSON(w, ErrorResponse{Code: code, Message: err.Error()}, status)
}

func classify(err error) (int, string) {
	var acqErr *entity.AcquisitionError
	switch {
	case errors.Is(err, entity.ErrInvalidThreshold):
		return http.StatusBadRequest, "invalid_threshold"
	case errors.Is(err, entity.ErrNotLoaded):
		return http.StatusConflict, "not_loaded"
	case errors.Is(err, entity.ErrLoading):
		return http.StatusConflict, "loading"
	case errors.Is(err, entity.ErrAlreadyDetecting):
		return http.StatusConflict, "already_detecting"
	case errors.Is(err, entity.ErrNotDetecting):
		return http.StatusConflict, "not_detecting"
	case errors.Is(err, entity.ErrNoFrame):
		return http.StatusNotFound, "no_frame"
	case errors.As(err, &acqErr):
		return http.StatusServiceUnavailable, "camera_unavailable"
	case errors.Is(err, entity.ErrClosed):
		return http.StatusServiceUnavailable, "closed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
