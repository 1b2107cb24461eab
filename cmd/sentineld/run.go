package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/giantswarm/sentinel"
	"github.com/giantswarm/sentinel/admin"
	"github.com/giantswarm/sentinel/instrumentation"
)

func run(c *cli.Context) error {
	logger, err := newLogger(os.Stderr, c.String("log-level"), c.String("log-format"))
	if err != nil {
		return err
	}

	cfg := sentinel.DefaultConfig()
	if path := c.String("config"); path != "" {
		if cfg, err = sentinel.LoadConfig(path); err != nil {
			return err
		}
		logger.Info("Loaded configuration", "path", path)
	}
	if v := cfg.Instrumentation.ServiceVersion; v == "" || v == instrumentation.DefaultServiceVersion {
		cfg.Instrumentation.ServiceVersion = version
	}

	tel, err := newTelemetry(cfg.Instrumentation, c.Bool("metrics"))
	if err != nil {
		return err
	}

	s, err := sentinel.New(cfg, logger)
	if err != nil {
		return err
	}
	s.SetInstrumentation(tel.inst)
	s.Start()

	adminRouter := chi.NewRouter()
	if c.Bool("metrics") {
		adminRouter.Handle("/metrics", promhttp.Handler())
	}
	adminRouter.Mount("/", admin.NewRouter(admin.NewHandler(s, logger)))

	servers := []*http.Server{
		newServer(c.String("listen"), newAPIRouter(s, logger)),
		newServer(c.String("admin-listen"), adminRouter),
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		logger.Info("Listening", "addr", srv.Addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("listener %s: %w", srv.Addr, err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case runErr = <-errCh:
		logger.Error("Listener failed", "error", runErr)
	}

	return errors.Join(runErr, shutdown(logger, c.Duration("shutdown-timeout"), servers, s, tel))
}

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func shutdown(logger *slog.Logger, timeout time.Duration, servers []*http.Server, s *sentinel.Sentinel, tel *telemetry) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down %s: %w", srv.Addr, err))
		}
	}
	if err := s.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := tel.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down telemetry: %w", err))
	}

	if len(errs) == 0 {
		logger.Info("Shutdown complete")
	}
	return errors.Join(errs...)
}
