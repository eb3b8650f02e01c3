// Package pipeline turns an overlay request into a stream of progress events:
// fetch, filter and render, short-circuited by the output cache.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
	"github.com/couchcryptid/lightning-overlay-service/internal/observability"
	"github.com/google/uuid"
)

const (
	msgCached    = "found cached map."
	msgRendering = "generating map overlay..."
	msgGenerated = "map generated!"
	// MsgUnexpected is the client-facing status for faults that are logged
	// but not described.
	MsgUnexpected = "an unexpected server error occurred."

	sinkTimeout = 30 * time.Second
)

// RegionResolver maps a country code to its boundary.
type RegionResolver interface {
	RegionFor(ctx context.Context, code string) (domain.GeoRegion, error)
}

// ObservationFetcher produces every flash in a time window.
type ObservationFetcher interface {
	Fetch(ctx context.Context, start, end time.Time, emit Emit) (domain.ObservationSet, error)
}

// OverlayRenderer writes an overlay image for a set of observations.
type OverlayRenderer interface {
	Render(set domain.ObservationSet, extent domain.BoundingBox, resolutionKm float64, w io.Writer) error
}

// OutputCache stores rendered overlays under deterministic references.
type OutputCache interface {
	Ref(req domain.Request) string
	Exists(ref string) bool
	Commit(ref string, write func(io.Writer) error) error
}

// Sink receives a record of every finished run. Sink failures are logged and
// never affect the event stream.
type Sink interface {
	Name() string
	RunCompleted(ctx context.Context, run domain.RunRecord) error
}

// Orchestrator sequences the pipeline stages for one request at a time.
type Orchestrator struct {
	cache    OutputCache
	regions  RegionResolver
	fetcher  ObservationFetcher
	renderer OverlayRenderer
	sinks    []Sink
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(cache OutputCache, regions RegionResolver, fetcher ObservationFetcher, renderer OverlayRenderer, logger *slog.Logger, metrics *observability.Metrics, sinks ...Sink) *Orchestrator {
	return &Orchestrator{
		cache:    cache,
		regions:  regions,
		fetcher:  fetcher,
		renderer: renderer,
		sinks:    sinks,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run returns the lazy event stream for req. Nothing happens until the
// sequence is iterated, and breaking out of the loop stops all work. A fully
// consumed stream always ends with exactly one terminal event.
func (o *Orchestrator) Run(ctx context.Context, req domain.Request) iter.Seq[domain.Event] {
	return func(yield func(domain.Event) bool) {
		o.metrics.RunsInFlight.Inc()
		defer o.metrics.RunsInFlight.Dec()

		run := &domain.RunRecord{
			ID:        uuid.NewString(),
			Product:   req.Product.ID,
			Country:   req.Country,
			Date:      req.DateString(),
			StartedAt: domain.Now(),
		}
		logger := o.logger.With("run_id", run.ID, "product", run.Product, "country", run.Country, "date", run.Date)

		out := &stream{yield: yield}
		terminal := o.execute(ctx, req, run, out, logger)
		run.FinishedAt = domain.Now()

		switch {
		case terminal == nil || out.stopped:
			run.Outcome = domain.OutcomeAbandoned
			run.Status = "consumer stopped"
		default:
			run.Status = terminal.Message()
			if s, ok := terminal.(domain.Succeeded); ok {
				run.ResultRef = s.ResultRef
			}
			out.emit(terminal)
		}

		o.metrics.RunsTotal.WithLabelValues(run.Product, run.Outcome).Inc()
		logger.Info("run finished", "outcome", run.Outcome, "status", run.Status,
			"flashes", run.Flashes, "duration", run.FinishedAt.Sub(run.StartedAt))
		o.notify(ctx, *run, logger)
	}
}

// stream forwards events to the consumer and remembers when it stops.
type stream struct {
	yield    func(domain.Event) bool
	stopped  bool
	yielding bool
}

func (s *stream) emit(ev domain.Event) bool {
	if s.stopped {
		return false
	}
	s.yielding = true
	ok := s.yield(ev)
	s.yielding = false
	if !ok {
		s.stopped = true
	}
	return ok
}

// execute runs the stages and returns the terminal event, or nil when the
// consumer stopped. Stage panics become a generic failure; panics raised by
// the consumer's loop body are passed through.
func (o *Orchestrator) execute(ctx context.Context, req domain.Request, run *domain.RunRecord, out *stream, logger *slog.Logger) (terminal domain.Event) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if out.yielding {
			panic(r)
		}
		err := fmt.Errorf("panic: %v", r)
		logger.Error("pipeline panic", "panic", r, "stack", string(debug.Stack()))
		run.Outcome = domain.Outcome(err)
		terminal = domain.Failed{Status: MsgUnexpected, Progress: 100, Err: err}
	}()
	emit := Emit(out.emit)

	ref := o.cache.Ref(req)
	if o.cache.Exists(ref) {
		o.metrics.CacheLookups.WithLabelValues("hit").Inc()
		run.Outcome = domain.OutcomeCached
		return domain.Succeed(msgCached, ref)
	}
	o.metrics.CacheLookups.WithLabelValues("miss").Inc()

	region, err := o.regions.RegionFor(ctx, req.Country)
	if err != nil {
		return o.fail(err, run, logger)
	}

	start, end := req.Window()
	set, err := o.fetcher.Fetch(ctx, start, end, emit)
	if err != nil {
		return o.fail(err, run, logger)
	}
	run.Flashes = set.Len()

	var filtered domain.ObservationSet
	err = o.timeStage("filter", func() error {
		var ferr error
		filtered, ferr = Filter(ctx, set, region, emit)
		return ferr
	})
	if err != nil {
		return o.fail(err, run, logger)
	}
	run.FlashesInCountry = filtered.Len()

	if !emit(domain.Progress(msgRendering, 98)) {
		return nil
	}
	err = o.timeStage("render", func() error {
		return o.cache.Commit(ref, func(w io.Writer) error {
			return o.renderer.Render(filtered, region.Bounds, req.Product.GridResolutionKm, w)
		})
	})
	if err != nil {
		return o.fail(fmt.Errorf("render overlay: %w", err), run, logger)
	}

	run.Outcome = domain.OutcomeSuccess
	return domain.Succeed(msgGenerated, ref)
}

// fail converts a stage error into a terminal event. Domain outcomes keep
// their own message; everything else is reported generically.
func (o *Orchestrator) fail(err error, run *domain.RunRecord, logger *slog.Logger) domain.Event {
	if errors.Is(err, ErrStopped) {
		return nil
	}
	run.Outcome = domain.Outcome(err)

	var (
		nfErr    *domain.NotFoundError
		emptyErr *domain.EmptyResultError
		cfgErr   *domain.ConfigError
	)
	switch {
	case errors.As(err, &nfErr):
		return domain.Fail(nfErr)
	case errors.As(err, &emptyErr):
		return domain.Fail(emptyErr)
	case errors.As(err, &cfgErr):
		logger.Error("service misconfigured", "error", err)
	case isCancellation(err):
		logger.Warn("run cancelled", "error", err)
	default:
		logger.Error("run failed", "error", err)
	}
	return domain.Failed{Status: MsgUnexpected, Progress: 100, Err: err}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// timeStage records how long fn took under the given stage label.
func (o *Orchestrator) timeStage(stage string, fn func() error) error {
	began := time.Now()
	err := fn()
	o.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(began).Seconds())
	return err
}

// notify hands the run record to every sink. Sinks get their own deadline so
// a disconnected client does not cancel journaling.
func (o *Orchestrator) notify(parent context.Context, run domain.RunRecord, logger *slog.Logger) {
	if len(o.sinks) == 0 {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(parent), sinkTimeout)
	defer cancel()

	for _, s := range o.sinks {
		if err := s.RunCompleted(sctx, run); err != nil {
			o.metrics.SinkWrites.WithLabelValues(s.Name(), "error").Inc()
			logger.Warn("sink failed", "sink", s.Name(), "error", err)
			continue
		}
		o.metrics.SinkWrites.WithLabelValues(s.Name(), "success").Inc()
	}
}
