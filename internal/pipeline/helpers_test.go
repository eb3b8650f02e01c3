package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
	"github.com/couchcryptid/lightning-overlay-service/internal/observability"
	"github.com/klauspost/compress/zip"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeProduct struct {
	name    string
	data    []byte
	failN   int // first failN opens fail with a transient error
	openErr error

	mu    sync.Mutex
	opens int
}

func (p *fakeProduct) Name() string { return p.name }

func (p *fakeProduct) Open(_ context.Context) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens++
	if p.openErr != nil {
		return nil, p.openErr
	}
	if p.opens <= p.failN {
		return nil, errors.New("connection reset by peer")
	}
	return io.NopCloser(bytes.NewReader(p.data)), nil
}

func (p *fakeProduct) openCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens
}

type fakeCatalog struct {
	connectErr error
	listErr    error
	products   []domain.Product

	connects  int
	lists     int
	gotStart  time.Time
	gotEnd    time.Time
	panicList bool
}

func (c *fakeCatalog) Connect(_ context.Context) error {
	c.connects++
	return c.connectErr
}

func (c *fakeCatalog) ListProducts(_ context.Context, start, end time.Time) ([]domain.Product, error) {
	c.lists++
	if c.panicList {
		panic("catalog exploded")
	}
	c.gotStart, c.gotEnd = start, end
	return c.products, c.listErr
}

// textDecoder reads one "lat lon" pair per line, standing in for NetCDF.
type textDecoder struct{}

func (textDecoder) Decode(path string) (domain.ObservationSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var set domain.ObservationSet
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			return nil, fmt.Errorf("bad record %q", sc.Text())
		}
		lat, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, err
		}
		lon, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, err
		}
		set = append(set, domain.Observation{Lat: lat, Lon: lon})
	}
	return set, sc.Err()
}

type fakeRegions map[string]domain.GeoRegion

func (r fakeRegions) RegionFor(_ context.Context, code string) (domain.GeoRegion, error) {
	region, ok := r[code]
	if !ok {
		return domain.GeoRegion{}, &domain.NotFoundError{Code: code}
	}
	return region, nil
}

type recordingSink struct {
	runs []domain.RunRecord
	err  error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) RunCompleted(_ context.Context, run domain.RunRecord) error {
	s.runs = append(s.runs, run)
	return s.err
}

// --- builders ---

// belgiumish is a rectangle roughly covering Belgium with a notch cut out of
// the south-east corner, so the bbox and exact tests disagree there.
func belgiumish() domain.GeoRegion {
	ring := orb.Ring{{2.5, 49.5}, {5.5, 49.5}, {5.5, 50.5}, {6.4, 50.5}, {6.4, 51.5}, {2.5, 51.5}, {2.5, 49.5}}
	return domain.NewGeoRegion("BE", orb.MultiPolygon{{ring}})
}

func zipArchive(t *testing.T, members map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// flashArchive builds a product archive with a BODY payload holding obs and a
// smaller TRAIL member.
func flashArchive(t *testing.T, obs ...domain.Observation) []byte {
	t.Helper()
	var body strings.Builder
	for _, o := range obs {
		fmt.Fprintf(&body, "%g %g\n", o.Lat, o.Lon)
	}
	return zipArchive(t, map[string]string{
		"W_XX-EUMETSAT-Darmstadt_LI-2-LFL_BODY_0001.nc": body.String(),
		"W_XX-EUMETSAT-Darmstadt_LI-2-LFL_TRAIL_0001.nc": "",
		"manifest.xml": strings.Repeat("x", 4096),
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFetcher(t *testing.T, cat domain.Catalog, scratch string) *Fetcher {
	t.Helper()
	f := NewFetcher(cat, textDecoder{}, scratch, discardLogger(), observability.NewMetricsForTesting())
	f.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, maxDownloadRetries)
	}
	return f
}

// recorder collects emitted events; stopAfter > 0 makes it refuse events
// after that many have been accepted.
type recorder struct {
	events    []domain.Event
	stopAfter int
}

func (r *recorder) emit(ev domain.Event) bool {
	if r.stopAfter > 0 && len(r.events) >= r.stopAfter {
		return false
	}
	r.events = append(r.events, ev)
	return true
}

func (r *recorder) statuses() []string {
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Message()
	}
	return out
}

func collect(seq iter.Seq[domain.Event]) []domain.Event {
	var out []domain.Event
	for ev := range seq {
		out = append(out, ev)
	}
	return out
}

func assertScratchEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	require.NoError(t, err)
	require.Empty(t, entries, "scratch directory should be empty")
}
