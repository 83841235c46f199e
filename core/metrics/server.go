package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"

	"github.com/m3rciful/kinobot/core/buildinfo"
	"github.com/m3rciful/kinobot/core/logger"
)

const shutdownTimeout = 5 * time.Second

// HealthCheck reports whether a dependency is usable. nil means healthy.
type HealthCheck func(ctx context.Context) error

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// Router mounts /metrics and /healthz.
func Router(rec *Recorder, check HealthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", healthHandler(check))
	r.Method(http.MethodGet, "/metrics", rec.Handler())
	return r
}

func healthHandler(check HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:    "ok",
			Version:   buildinfo.Version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		code := http.StatusOK
		if check != nil {
			if err := check(r.Context()); err != nil {
				resp.Status = "fail"
				resp.Error = err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Server is the auxiliary HTTP listener.
type Server struct {
	srv *http.Server
}

// NewServer returns nil when port is 0, meaning the listener is disabled.
func NewServer(listen string, port int, handler http.Handler) *Server {
	if port == 0 {
		return nil
	}
	return &Server{srv: &http.Server{
		Addr:              net.JoinHostPort(listen, strconv.Itoa(port)),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}}
}

// Start listens in the background until ctx is cancelled. Bind errors are
// returned synchronously.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	logger.Info(ctx, "http", "listen", slog.String("addr", ln.Addr().String()))

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http", "serve", slog.String("status", "fail"), slog.String("err", err.Error()))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "http", "shutdown", slog.String("err", err.Error()))
		}
	}()
	return nil
}
