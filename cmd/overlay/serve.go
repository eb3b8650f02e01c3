package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/lightning-overlay-service/internal/adapter/http"
)

type serveCmd struct{}

func (serveCmd) Run(a *app) error {
	svc, err := a.build()
	if err != nil {
		return err
	}
	defer svc.close(a.logger)

	opts := httpadapter.Options{
		Addr:      a.cfg.HTTPAddr,
		StaticDir: a.cfg.StaticDir,
		Generator: svc.orchestrator,
		Countries: svc.regions,
		Ready:     svc.readiness(),
	}
	if svc.journal != nil {
		opts.Runs = svc.journal
	}
	srv := httpadapter.NewServer(opts, a.logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}
