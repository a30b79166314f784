// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package server serves the HTTP handlers of a flight VM.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

const (
	baseURL     = "/ext"
	metricsPath = "/metrics"
)

var ErrRouteExists = errors.New("route already registered")

type HTTPConfig struct {
	ReadTimeout       time.Duration `json:"readTimeout"`
	ReadHeaderTimeout time.Duration `json:"readHeaderTimeout"`
	WriteTimeout      time.Duration `json:"writeTimeout"`
	IdleTimeout       time.Duration `json:"idleTimeout"`
}

// Server routes /ext/<base><endpoint> to VM handlers and /metrics to the
// gatherer.
type Server struct {
	log             log.Logger
	shutdownTimeout time.Duration
	metrics         *serverMetrics
	router          *mux.Router
	routes          map[string]struct{}
	srv             *http.Server
	listener        net.Listener
}

// New returns a server over listener. Cross origin requests are accepted from
// allowedOrigins.
func New(
	logger log.Logger,
	listener net.Listener,
	allowedOrigins []string,
	shutdownTimeout time.Duration,
	registerer prometheus.Registerer,
	gatherer prometheus.Gatherer,
	httpConfig HTTPConfig,
) (*Server, error) {
	m, err := newMetrics(registerer)
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	router.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	handler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
	}).Handler(router)

	logger.Info("API created with allowed origins: " + strings.Join(allowedOrigins, ","))
	return &Server{
		log:             logger,
		shutdownTimeout: shutdownTimeout,
		metrics:         m,
		router:          router,
		routes:          make(map[string]struct{}),
		srv: &http.Server{
			Handler:           handler,
			ReadTimeout:       httpConfig.ReadTimeout,
			ReadHeaderTimeout: httpConfig.ReadHeaderTimeout,
			WriteTimeout:      httpConfig.WriteTimeout,
			IdleTimeout:       httpConfig.IdleTimeout,
		},
		listener: listener,
	}, nil
}

// AddRoute serves handler at /ext/<base><endpoint>.
func (s *Server) AddRoute(handler http.Handler, base, endpoint string) error {
	url := fmt.Sprintf("%s/%s%s", baseURL, base, endpoint)
	if _, ok := s.routes[url]; ok {
		return fmt.Errorf("%w: %s", ErrRouteExists, url)
	}
	s.routes[url] = struct{}{}
	s.log.Info("adding route",
		log.String("url", url),
	)
	s.router.Handle(url, s.metrics.wrapHandler(base, handler))
	return nil
}

// Addr returns the listening address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Dispatch serves until Shutdown. A shutdown is not an error.
func (s *Server) Dispatch() error {
	err := s.srv.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	err := s.srv.Shutdown(ctx)
	cancel()

	// If shutdown times out, make sure the server is still shutdown.
	_ = s.srv.Close()
	return err
}
