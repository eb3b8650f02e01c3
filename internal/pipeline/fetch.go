package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
	"github.com/couchcryptid/lightning-overlay-service/internal/observability"
	"github.com/dustin/go-humanize"
)

const maxDownloadRetries = 3

// Fetcher downloads every catalog product in a time window and decodes the
// flashes they contain. Products are processed one at a time.
type Fetcher struct {
	catalog    domain.Catalog
	decoder    domain.Decoder
	scratchDir string
	logger     *slog.Logger
	metrics    *observability.Metrics

	// newBackOff builds the retry policy for one download.
	newBackOff func() backoff.BackOff
}

// NewFetcher creates a Fetcher that stages downloads under scratchDir.
func NewFetcher(catalog domain.Catalog, decoder domain.Decoder, scratchDir string, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	return &Fetcher{
		catalog:    catalog,
		decoder:    decoder,
		scratchDir: scratchDir,
		logger:     logger,
		metrics:    metrics,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 500 * time.Millisecond
			bo.MaxElapsedTime = 30 * time.Second
			return backoff.WithMaxRetries(bo, maxDownloadRetries)
		},
	}
}

// Fetch returns every flash observed in [start, end). Per-product failures are
// logged and skipped. A window with no products, or whose products yield no
// flashes, is reported as *domain.EmptyResultError.
func (f *Fetcher) Fetch(ctx context.Context, start, end time.Time, emit Emit) (domain.ObservationSet, error) {
	began := time.Now()
	defer func() {
		f.metrics.StageDuration.WithLabelValues("fetch").Observe(time.Since(began).Seconds())
	}()

	if err := emit.progress("Connecting to satellite catalog...", 2); err != nil {
		return nil, err
	}
	if err := f.catalog.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect catalog: %w", err)
	}

	if err := emit.progress("Searching for products...", 5); err != nil {
		return nil, err
	}
	products, err := f.catalog.ListProducts(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if len(products) == 0 {
		return nil, &domain.EmptyResultError{Reason: domain.NoProducts}
	}
	f.logger.Info("products found", "count", len(products), "start", start, "end", end)

	if err := emit.progress(fmt.Sprintf("found %d products. processing...", len(products)), 15); err != nil {
		return nil, err
	}

	n := len(products)
	batches := make([]domain.ObservationSet, 0, n)
	for i, p := range products {
		status := fmt.Sprintf("processing product %d/%d...", i+1, n)
		if err := emit.progress(status, 15+(i+1)*70/n); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		set, err := f.processProduct(ctx, p)
		f.metrics.ProductsProcessed.Inc()
		if err != nil {
			var cfgErr *domain.ConfigError
			if errors.As(err, &cfgErr) || ctx.Err() != nil {
				return nil, err
			}
			var pe *domain.ProductError
			if errors.As(err, &pe) {
				f.metrics.ProductFailures.WithLabelValues(pe.Stage).Inc()
			}
			f.logger.Warn("product skipped", "product", p.Name(), "error", err)
			continue
		}
		f.metrics.FlashesExtracted.Add(float64(set.Len()))
		if set.Len() > 0 {
			batches = append(batches, set)
		}
	}

	if err := emit.progress("Consolidating data...", 90); err != nil {
		return nil, err
	}
	all := domain.Concat(batches...)
	if all.Len() == 0 {
		return nil, &domain.EmptyResultError{Reason: domain.NoObservations}
	}

	if err := emit.progress(fmt.Sprintf("Finished. Found %s flashes.", humanize.Comma(int64(all.Len()))), 95); err != nil {
		return nil, err
	}
	return all, nil
}

// processProduct stages one product in its own scratch directory, which is
// removed on every return path.
func (f *Fetcher) processProduct(ctx context.Context, p domain.Product) (domain.ObservationSet, error) {
	name := p.Name()
	if err := os.MkdirAll(f.scratchDir, 0o755); err != nil {
		return nil, &domain.ProductError{Product: name, Stage: "download", Err: err}
	}
	dir, err := os.MkdirTemp(f.scratchDir, "product-*")
	if err != nil {
		return nil, &domain.ProductError{Product: name, Stage: "download", Err: err}
	}
	defer os.RemoveAll(dir)

	archive := filepath.Join(dir, "product.zip")
	if err := f.download(ctx, p, archive); err != nil {
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, &domain.ProductError{Product: name, Stage: "download", Err: err}
	}

	payload, err := extractLargestMember(archive, dir)
	if err != nil {
		return nil, &domain.ProductError{Product: name, Stage: "extract", Err: err}
	}

	set, err := f.decoder.Decode(payload)
	if err != nil {
		return nil, &domain.ProductError{Product: name, Stage: "decode", Err: err}
	}
	f.logger.Debug("product decoded", "product", name, "flashes", set.Len())
	return set, nil
}

// download streams the product into dst, retrying transient failures.
// Configuration errors and cancellation are not retried.
func (f *Fetcher) download(ctx context.Context, p domain.Product, dst string) error {
	operation := func() error {
		rc, err := p.Open(ctx)
		if err != nil {
			var cfgErr *domain.ConfigError
			if errors.As(err, &cfgErr) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer rc.Close()

		out, err := os.Create(dst)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create archive file: %w", err))
		}
		if _, err := io.Copy(out, rc); err != nil {
			_ = out.Close()
			return fmt.Errorf("copy product stream: %w", err)
		}
		return out.Close()
	}

	return backoff.Retry(operation, backoff.WithContext(f.newBackOff(), ctx))
}
