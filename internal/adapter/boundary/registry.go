// Package boundary resolves ISO country codes to boundary geometry loaded from
// a GeoJSON FeatureCollection.
package boundary

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// CodeProperty is the feature property holding the two-letter country code.
const CodeProperty = "ISO3166-1-Alpha-2"

// Registry loads the boundary dataset on first use. Regions are built once at
// load time and shared by every lookup.
type Registry struct {
	path   string
	logger *slog.Logger

	once    sync.Once
	loadErr error
	regions map[string]domain.GeoRegion
}

// NewRegistry creates a registry backed by the GeoJSON file at path. Nothing is
// read until the first lookup.
func NewRegistry(path string, logger *slog.Logger) *Registry {
	return &Registry{path: path, logger: logger}
}

// RegionFor returns the region for code. Unknown codes yield *domain.NotFoundError.
func (r *Registry) RegionFor(ctx context.Context, code string) (domain.GeoRegion, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := ctx.Err(); err != nil {
		return domain.GeoRegion{}, err
	}
	if err := r.load(); err != nil {
		return domain.GeoRegion{}, err
	}

	region, ok := r.regions[code]
	if !ok {
		return domain.GeoRegion{}, &domain.NotFoundError{Code: code}
	}
	return region, nil
}

// Codes lists every country code in the dataset, sorted.
func (r *Registry) Codes() ([]string, error) {
	if err := r.load(); err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(r.regions))
	for c := range r.regions {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes, nil
}

// CheckReadiness loads the dataset if needed and reports any load failure.
func (r *Registry) CheckReadiness(_ context.Context) error {
	return r.load()
}

func (r *Registry) load() error {
	r.once.Do(func() {
		data, err := os.ReadFile(r.path)
		if err != nil {
			r.loadErr = fmt.Errorf("read boundary dataset: %w", err)
			return
		}
		shapes, err := parseBoundaries(data)
		if err != nil {
			r.loadErr = err
			return
		}
		r.regions = make(map[string]domain.GeoRegion, len(shapes))
		for code, shape := range shapes {
			r.regions[code] = domain.NewGeoRegion(code, shape)
		}
		r.logger.Info("boundary dataset loaded", "path", r.path, "countries", len(shapes))
	})
	return r.loadErr
}

// parseBoundaries indexes the collection by country code. Features sharing a
// code are merged; features without a code or with non-areal geometry are skipped.
func parseBoundaries(data []byte) (map[string]orb.MultiPolygon, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse boundary dataset: %w", err)
	}

	shapes := make(map[string]orb.MultiPolygon)
	for _, f := range fc.Features {
		code := strings.ToUpper(f.Properties.MustString(CodeProperty, ""))
		if len(code) != 2 {
			continue
		}
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			shapes[code] = append(shapes[code], g)
		case orb.MultiPolygon:
			shapes[code] = append(shapes[code], g...)
		}
	}
	return shapes, nil
}
