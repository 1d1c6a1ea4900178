// Package service exposes a finished workspace over HTTP: the report directory as static
// files, prometheus metrics and a health check.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/ifcopenshell/bimtester/metrics"
)

const (
	DefaultAddr = ":8080"
	MetricsPath = "/metrics"
	ReportPath  = "/report/"
)

var _ cliapp.Lifecycle = (*Service)(nil)

// Config holds the server settings.
type Config struct {
	Addr      string
	ReportDir string // served below ReportPath
	Log       log.Logger
}

type Service struct {
	addr      string
	reportDir string
	log       log.Logger

	server   *http.Server
	listener net.Listener
	running  atomic.Bool
}

func New(cfg Config) (*Service, error) {
	if cfg.ReportDir == "" {
		return nil, errors.New("report directory is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	return &Service{
		addr:      cfg.Addr,
		reportDir: cfg.ReportDir,
		log:       cfg.Log,
	}, nil
}

// Handler routes the report files, metrics and health check, allowing any origin so
// report viewers on other hosts can fetch report.json.
func (s *Service) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle(HealthzPath, &HealthzHandler{log: s.log}).Methods(http.MethodGet)
	r.Handle(MetricsPath, promhttp.Handler()).Methods(http.MethodGet)
	r.PathPrefix(ReportPath).
		Handler(http.StripPrefix(ReportPath, http.FileServer(http.Dir(s.reportDir)))).
		Methods(http.MethodGet, http.MethodHead)
	r.Handle("/", http.RedirectHandler(ReportPath, http.StatusFound)).Methods(http.MethodGet, http.MethodHead)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return c.Handler(r)
}

// Start listens on the configured address and serves in the background.
func (s *Service) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.running.Store(true)

	s.log.Info("Starting report server", "addr", listener.Addr().String(), "report_dir", s.reportDir)
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Error serving reports", "err", err)
			metrics.RecordErrorDetails("error starting report server", err)
		}
	}()
	return nil
}

// Addr is the bound listen address, or the configured one before Start.
func (s *Service) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Service) Stop(ctx context.Context) error {
	if !s.running.Swap(false) {
		return nil
	}
	s.log.Info("Stopping report server")
	return s.server.Shutdown(ctx)
}

func (s *Service) Stopped() bool {
	return !s.running.Load()
}
