package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/vbonduro/showroom/internal/blobstore"
	"github.com/vbonduro/showroom/internal/companion"
	"github.com/vbonduro/showroom/internal/service"
)

type Server struct {
	showroom  *service.ShowroomService
	companion *companion.Service
	blobs     blobstore.BlobStore
	metrics   http.Handler
	mux       *http.ServeMux
	logger    *slog.Logger
}

// NewServer wires the JSON API. metricsHandler may be nil, in which case
// /metrics is not served.
func NewServer(
	showroom *service.ShowroomService,
	uploads *companion.Service,
	blobs blobstore.BlobStore,
	metricsHandler http.Handler,
	logger *slog.Logger,
) *Server {
	s := &Server{
		showroom:  showroom,
		companion: uploads,
		blobs:     blobs,
		metrics:   metricsHandler,
		mux:       http.NewServeMux(),
		logger:    logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/showroom", s.handleShowroom)
	s.mux.HandleFunc("GET /api/vehicles", s.handleListVehicles)
	s.mux.HandleFunc("GET /api/vehicles/{id}", s.handleGetVehicle)
	s.mux.HandleFunc("DELETE /api/vehicles/{id}", s.handleDeleteVehicle)
	s.mux.HandleFunc("POST /api/inventory/refresh", s.handleRefresh)

	s.mux.HandleFunc("GET /api/media", s.handleListMedia)
	s.mux.HandleFunc("GET /api/media/unattached", s.handleUnattachedMedia)
	s.mux.HandleFunc("POST /api/media", s.handleCreateMedia)
	s.mux.HandleFunc("PATCH /api/media/reorder", s.handleReorderMedia)
	s.mux.HandleFunc("PATCH /api/media/{id}/attach", s.handleAttachMedia)
	s.mux.HandleFunc("DELETE /api/media/{id}", s.handleDeleteMedia)
	s.mux.HandleFunc("GET /blobs/{key...}", s.handleGetBlob)

	s.mux.HandleFunc("POST /api/web-companion/uploads", s.handleRegisterUpload)
	s.mux.HandleFunc("GET /api/web-companion/uploads", s.handleListUploads)
	s.mux.HandleFunc("GET /api/web-companion/uploads/{id}", s.handleGetUpload)
	s.mux.HandleFunc("POST /api/web-companion/complete", s.handleCompleteUpload)

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; img-src 'self'; media-src 'self'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
