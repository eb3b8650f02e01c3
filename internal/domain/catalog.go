package domain

import (
	"context"
	"io"
	"time"
)

// Catalog lists lightning products from an external archive.
type Catalog interface {
	// Connect establishes or validates a session. Missing credentials are
	// reported as *ConfigError.
	Connect(ctx context.Context) error

	// ListProducts returns products whose sensing time overlaps [start, end).
	ListProducts(ctx context.Context, start, end time.Time) ([]Product, error)
}

// Product is one downloadable archive.
type Product interface {
	Name() string
	// Open streams the archive bytes. The caller closes the reader.
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Decoder parses an extracted payload file into flash observations.
type Decoder interface {
	Decode(path string) (ObservationSet, error)
}
