//go:build integration

package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/lightning-overlay-service/internal/adapter/boundary"
	"github.com/couchcryptid/lightning-overlay-service/internal/adapter/kafka"
	"github.com/couchcryptid/lightning-overlay-service/internal/artifact"
	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
	"github.com/couchcryptid/lightning-overlay-service/internal/observability"
	"github.com/couchcryptid/lightning-overlay-service/internal/pipeline"
	"github.com/couchcryptid/lightning-overlay-service/internal/render"
	"github.com/couchcryptid/lightning-overlay-service/internal/store"
	"github.com/klauspost/compress/zip"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testTopic = "test-overlays"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	kc, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("lightning-overlay-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = kc.Terminate(context.Background()) })

	brokers, err := kc.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cconn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cconn.Close()

	require.NoError(t, cconn.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

// jsonDecoder reads payloads holding a JSON array of [lat, lon] pairs.
type jsonDecoder struct{}

func (jsonDecoder) Decode(path string) (domain.ObservationSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pairs [][2]float64
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, err
	}
	lats := make([]float64, len(pairs))
	lons := make([]float64, len(pairs))
	for i, p := range pairs {
		lats[i], lons[i] = p[0], p[1]
	}
	return domain.FromCoordinates(lats, lons), nil
}

type memProduct struct {
	name string
	data []byte
}

func (p memProduct) Name() string { return p.name }

func (p memProduct) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(p.data)), nil
}

type memCatalog []domain.Product

func (memCatalog) Connect(context.Context) error { return nil }

func (c memCatalog) ListProducts(context.Context, time.Time, time.Time) ([]domain.Product, error) {
	return c, nil
}

func productArchive(t *testing.T, pairs [][2]float64) []byte {
	t.Helper()
	body, err := json.Marshal(pairs)
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("W_XX-EUMETSAT-Darmstadt_LI-2-LFL_BODY.nc")
	require.NoError(t, err)
	_, err = w.Write(body)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const boundaries = `{"type":"FeatureCollection","features":[{"type":"Feature",
"properties":{"ISO3166-1-Alpha-2":"BE"},
"geometry":{"type":"Polygon","coordinates":[[[2.5,49.5],[6.4,49.5],[6.4,51.5],[2.5,51.5],[2.5,49.5]]]}}]}`

// TestOverlayPublishedEndToEnd runs a full pipeline against in-memory products
// and checks that the generated overlay is journaled and announced on Kafka.
func TestOverlayPublishedEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	dir := t.TempDir()
	boundaryFile := filepath.Join(dir, "countries.geojson")
	require.NoError(t, os.WriteFile(boundaryFile, []byte(boundaries), 0o644))

	journal, err := store.Open(filepath.Join(dir, "runs.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	publisher := kafka.NewPublisher([]string{broker}, testTopic, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	catalog := memCatalog{
		memProduct{name: "p1", data: productArchive(t, [][2]float64{{50.8, 4.4}, {50.9, 4.5}, {48.0, 2.0}})},
		memProduct{name: "p2", data: productArchive(t, [][2]float64{{51.0, 5.0}})},
	}
	metrics := observability.NewMetricsForTesting()
	cache := artifact.NewCache(filepath.Join(dir, "static"))
	fetcher := pipeline.NewFetcher(catalog, jsonDecoder{}, filepath.Join(dir, "scratch"), discardLogger(), metrics)
	orch := pipeline.NewOrchestrator(cache, boundary.NewRegistry(boundaryFile, discardLogger()),
		fetcher, render.NewRenderer(), discardLogger(), metrics, journal, publisher)

	req, err := domain.ParseRequest("daily_lowres_density", "BE", 2024, 6, 1)
	require.NoError(t, err)

	var last domain.Event
	for ev := range orch.Run(ctx, req) {
		last = ev
	}
	done, ok := last.(domain.Succeeded)
	require.True(t, ok, "terminal event %#v", last)
	assert.FileExists(t, cache.Path(done.ResultRef))

	runs, err := journal.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.OutcomeSuccess, runs[0].Outcome)
	assert.Equal(t, 4, runs[0].Flashes)
	assert.Equal(t, 3, runs[0].FlashesInCountry)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read notification")

	assert.Equal(t, done.ResultRef, string(msg.Key))
	var announced domain.RunRecord
	require.NoError(t, json.Unmarshal(msg.Value, &announced))
	assert.Equal(t, runs[0].ID, announced.ID)
	assert.Equal(t, "BE", announced.Country)

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "daily_lowres_density", headers["product"])
	_, err = time.Parse(time.RFC3339, headers["finished_at"])
	assert.NoError(t, err, "finished_at should be valid RFC3339")
}

// TestCachedRunIsNotAnnounced checks that a cache hit is journaled but not
// published again.
func TestCachedRunIsNotAnnounced(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	dir := t.TempDir()
	journal, err := store.Open(filepath.Join(dir, "runs.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })
	publisher := kafka.NewPublisher([]string{broker}, testTopic, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	cache := artifact.NewCache(filepath.Join(dir, "static"))
	req, err := domain.ParseRequest("daily_hires_density", "BE", 2024, 6, 1)
	require.NoError(t, err)
	ref := cache.Ref(req)
	require.NoError(t, cache.Commit(ref, func(w io.Writer) error {
		_, err := w.Write([]byte("png"))
		return err
	}))

	metrics := observability.NewMetricsForTesting()
	fetcher := pipeline.NewFetcher(memCatalog{}, jsonDecoder{}, filepath.Join(dir, "scratch"), discardLogger(), metrics)
	orch := pipeline.NewOrchestrator(cache, boundary.NewRegistry(filepath.Join(dir, "missing.geojson"), discardLogger()),
		fetcher, render.NewRenderer(), discardLogger(), metrics, journal, publisher)

	var events []domain.Event
	for ev := range orch.Run(ctx, req) {
		events = append(events, ev)
	}
	require.Len(t, events, 1)
	assert.Equal(t, "found cached map.", events[0].Message())

	counts, err := journal.OutcomeCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{domain.OutcomeCached: 1}, counts)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	defer readCancel()
	_, err = consumer.ReadMessage(readCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "no notification expected")
}
