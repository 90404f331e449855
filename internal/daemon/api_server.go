package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dropwatch/internal/api"
	"dropwatch/internal/config"
	"dropwatch/internal/logging"
	"dropwatch/internal/metrics"
	"dropwatch/internal/tree"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	router *mux.Router

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   cfg.Paths.APIBind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	r := mux.NewRouter()
	r.Use(srv.instrument)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		srv.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		srv.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/healthz", srv.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", srv.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(authMiddleware(cfg.API.Token))
	apiRouter.HandleFunc("/status", srv.handleStatus).Methods(http.MethodGet)
	apiRouter.HandleFunc("/existing", srv.handleExisting).Methods(http.MethodGet)
	apiRouter.HandleFunc("/known/{name}", srv.handleKnown).Methods(http.MethodGet)
	apiRouter.HandleFunc("/processed/{name}", srv.handleProcessed).Methods(http.MethodPost)

	srv.router = r
	srv.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

// handleReady reports ready once the cold scan of the running session is
// complete.
func (s *apiServer) handleReady(w http.ResponseWriter, _ *http.Request) {
	status := s.daemon.Status()
	if !status.Tracker.Running || !status.Tracker.ColdScanComplete {
		s.writeJSON(w, http.StatusServiceUnavailable, api.HealthResponse{Status: "cold scan pending"})
		return
	}
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ready"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := s.daemon.Status()
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		LockFilePath: status.LockFilePath,
		StorePath:    status.StorePath,
		StoreBackend: status.StoreBackend,
		Tracker:      api.FromTrackerStatus(status.Tracker),
	})
}

func (s *apiServer) handleExisting(w http.ResponseWriter, _ *http.Request) {
	records := api.FromRecords(s.daemon.Existing())
	s.writeJSON(w, http.StatusOK, api.ExistingResponse{Files: records, Count: len(records)})
}

func (s *apiServer) handleKnown(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	known, err := s.daemon.IsKnown(r.Context(), name)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.KnownResponse{FileName: name, Known: known})
}

func (s *apiServer) handleProcessed(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.daemon.MarkProcessed(r.Context(), name); err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.logger.Info("file marked processed", logging.String(logging.FieldFileName, name))
	s.writeJSON(w, http.StatusOK, api.KnownResponse{FileName: name, Known: true})
}

func statusFor(err error) int {
	if errors.Is(err, tree.ErrInvalidName) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// instrument counts requests by route template so path parameters do not
// inflate label cardinality.
func (s *apiServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := "unmatched"
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
