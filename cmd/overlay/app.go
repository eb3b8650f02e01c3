package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/lightning-overlay-service/internal/adapter/boundary"
	"github.com/couchcryptid/lightning-overlay-service/internal/adapter/eumetsat"
	"github.com/couchcryptid/lightning-overlay-service/internal/adapter/ftpmirror"
	kafkaadapter "github.com/couchcryptid/lightning-overlay-service/internal/adapter/kafka"
	"github.com/couchcryptid/lightning-overlay-service/internal/adapter/netcdf"
	"github.com/couchcryptid/lightning-overlay-service/internal/adapter/objectstore"
	"github.com/couchcryptid/lightning-overlay-service/internal/artifact"
	"github.com/couchcryptid/lightning-overlay-service/internal/config"
	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
	"github.com/couchcryptid/lightning-overlay-service/internal/observability"
	"github.com/couchcryptid/lightning-overlay-service/internal/pipeline"
	"github.com/couchcryptid/lightning-overlay-service/internal/render"
	"github.com/couchcryptid/lightning-overlay-service/internal/store"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// app carries process-wide dependencies into kong commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// service is the fully wired pipeline plus the resources it owns.
type service struct {
	orchestrator *pipeline.Orchestrator
	regions      *boundary.Registry
	cache        *artifact.Cache
	journal      *store.Store
	closers      []io.Closer
}

func (a *app) newCatalog() domain.Catalog {
	if a.cfg.CatalogSource == config.SourceFTP {
		a.logger.Info("using ftp mirror catalog", "addr", a.cfg.FTPAddr, "dir", a.cfg.FTPDir)
		return ftpmirror.NewClient(ftpmirror.Options{
			Addr:     a.cfg.FTPAddr,
			User:     a.cfg.FTPUser,
			Password: a.cfg.FTPPassword,
			Dir:      a.cfg.FTPDir,
		}, a.logger)
	}
	a.logger.Info("using data store catalog", "url", a.cfg.CatalogURL, "collection", a.cfg.CatalogCollection)
	return eumetsat.NewClient(eumetsat.Options{
		BaseURL:      a.cfg.CatalogURL,
		Collection:   a.cfg.CatalogCollection,
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		Timeout:      a.cfg.CatalogTimeout,
	}, a.logger)
}

// build wires the pipeline and whichever run sinks are configured.
func (a *app) build() (*service, error) {
	svc := &service{
		regions: boundary.NewRegistry(a.cfg.BoundaryFile, a.logger),
		cache:   artifact.NewCache(a.cfg.StaticDir),
	}

	var sinks []pipeline.Sink
	if a.cfg.RunJournalPath != "" {
		journal, err := store.Open(a.cfg.RunJournalPath, a.logger)
		if err != nil {
			return nil, fmt.Errorf("open run journal: %w", err)
		}
		svc.journal = journal
		svc.closers = append(svc.closers, journal)
		sinks = append(sinks, journal)
	}
	if a.cfg.KafkaEnabled() {
		publisher := kafkaadapter.NewPublisher(a.cfg.KafkaBrokers, a.cfg.KafkaTopic, a.logger)
		svc.closers = append(svc.closers, publisher)
		sinks = append(sinks, publisher)
		a.logger.Info("overlay notifications enabled", "topic", a.cfg.KafkaTopic)
	}
	if a.cfg.ObjectStoreEnabled() {
		mirror, err := objectstore.NewMirror(objectstore.Options{
			Endpoint:  a.cfg.ObjectStoreEndpoint,
			AccessKey: a.cfg.ObjectStoreAccessKey,
			SecretKey: a.cfg.ObjectStoreSecretKey,
			Bucket:    a.cfg.ObjectStoreBucket,
			Secure:    a.cfg.ObjectStoreSecure,
		}, svc.cache, a.logger)
		if err != nil {
			svc.close(a.logger)
			return nil, err
		}
		sinks = append(sinks, mirror)
		a.logger.Info("overlay mirror enabled", "bucket", a.cfg.ObjectStoreBucket)
	}

	fetcher := pipeline.NewFetcher(a.newCatalog(), netcdf.NewDecoder(), a.cfg.ScratchDir, a.logger, a.metrics)
	svc.orchestrator = pipeline.NewOrchestrator(svc.cache, svc.regions, fetcher, render.NewRenderer(), a.logger, a.metrics, sinks...)
	return svc, nil
}

func (s *service) close(logger *slog.Logger) {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			logger.Error("close error", "error", err)
		}
	}
}

// readiness requires every check to pass.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *service) readiness() readiness {
	checks := readiness{s.regions}
	if s.journal != nil {
		checks = append(checks, s.journal)
	}
	return checks
}
