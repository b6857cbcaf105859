package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/globomap/acs-driver/internal/logger"
)

// Server serves /metrics and /healthz
type Server struct {
	server *http.Server
	logger logger.Logger
}

// NewServer builds the HTTP server for m on addr
func NewServer(addr string, m *Metrics, log logger.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(m),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: log.WithField("listen", addr),
	}
}

// NewRouter routes the metrics and health endpoints
func NewRouter(m *Metrics) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)
	return router
}

// Start serves in the background until Shutdown
func (s *Server) Start() {
	go func() {
		s.logger.Info("Metrics server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server stopped", err)
		}
	}()
}

// Shutdown stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
