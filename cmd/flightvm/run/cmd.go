// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/flightvm"
	"github.com/luxfi/flightvm/api/health"
	"github.com/luxfi/flightvm/api/server"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "run",
		Short: "Runs a flight VM behind its JSON-RPC API",
		RunE:  runFunc,
	}
	AddFlags(c.Flags())
	return c
}

func runFunc(c *cobra.Command, args []string) error {
	config, err := ParseFlags(c.Flags(), args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return Run(ctx, log.NewLogger(flightvm.Name), config)
}

// Run serves a VM built from config until ctx is cancelled.
func Run(ctx context.Context, logger log.Logger, config *Config) error {
	db, err := openDB(config.DBDir)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	vm := flightvm.New(logger)
	err = vm.Initialize(ctx, &flightvm.Config{
		ChainID:    ids.Empty,
		DB:         db,
		Genesis:    config.Genesis,
		Config:     config.VMConfig,
		JWTSecret:  config.JWTSecret,
		Registerer: registry,
	})
	if err != nil {
		_ = db.Close()
		return err
	}
	defer func() {
		if err := vm.Shutdown(context.Background()); err != nil {
			logger.Warn("failed to shut down vm", log.Err(err))
		}
	}()

	handlers, err := vm.CreateHandlers(ctx)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", config.HTTPHost, config.HTTPPort))
	if err != nil {
		return err
	}
	srv, err := server.New(
		logger,
		listener,
		config.AllowedOrigins,
		config.ShutdownTimeout,
		registry,
		registry,
		server.HTTPConfig{
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
	)
	if err != nil {
		_ = listener.Close()
		return err
	}
	for endpoint, handler := range handlers {
		if err := srv.AddRoute(handler, flightvm.Name, endpoint); err != nil {
			_ = listener.Close()
			return err
		}
	}

	healthHandler, err := health.NewHandler(vm, registry)
	if err != nil {
		_ = listener.Close()
		return err
	}
	if err := srv.AddRoute(healthHandler, "health", ""); err != nil {
		_ = listener.Close()
		return err
	}

	if err := vm.SetState(ctx, flightvm.NormalOp); err != nil {
		_ = listener.Close()
		return err
	}
	logger.Info("serving flight vm",
		log.Stringer("address", srv.Addr()),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Dispatch)
	g.Go(func() error {
		<-ctx.Done()
		return srv.Shutdown()
	})
	return g.Wait()
}

func openDB(dir string) (database.Database, error) {
	if dir == "" {
		return memdb.New(), nil
	}
	return badgerdb.New(dir, nil, "", nil)
}
