package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/r3e-network/xrail/internal/corekit"
	"github.com/r3e-network/xrail/internal/domain/edge"
	"github.com/r3e-network/xrail/internal/platform/cache"
	"github.com/r3e-network/xrail/internal/platform/clock"
	"github.com/r3e-network/xrail/internal/platform/credentials"
	"github.com/r3e-network/xrail/internal/platform/durable"
	"github.com/r3e-network/xrail/internal/platform/transport"
	"github.com/r3e-network/xrail/pkg/logger"
	"github.com/r3e-network/xrail/pkg/metrics"
)

// CadenceClass groups adapters by refresh period (§4.2's table).
type CadenceClass string

const (
	ClassFast     CadenceClass = "fast"
	ClassSlow     CadenceClass = "slow"
	ClassSnapshot CadenceClass = "snapshot"
)

// Periods is the per-class refresh cadence, in seconds, per §4.2/§6's
// refresh_periods configuration knob.
type Periods struct {
	FastSeconds     int
	SlowSeconds     int
	SnapshotSeconds int
}

func (p Periods) fast() time.Duration {
	if p.FastSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(p.FastSeconds) * time.Second
}

func (p Periods) slow() time.Duration {
	if p.SlowSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(p.SlowSeconds) * time.Second
}

func (p Periods) snapshotSpec() string {
	n := p.SnapshotSeconds
	if n <= 0 {
		n = 60
	}
	return fmt.Sprintf("@every %ds", n)
}

// Scheduler is the aggregator of §4.2: it owns the refresh cadence per
// segment class, fans adapter ticks out concurrently, and persists results
// to the hot cache (every tick) and the durable edge_snapshots stream
// (snapshot-class ticks only). It is grounded on
// packages/com.r3e.services.pricefeed/refresher.go's
// Start/Stop/Ready-over-a-WaitGroup-tracked-ticker-goroutine shape, with a
// robfig/cron entry standing in for the snapshot-class cadence alongside
// the fast/slow tickers.
type Scheduler struct {
	corekit.ServiceBase

	adapters []Adapter
	health   map[string]*Health

	deps      Deps
	cache     cache.Cache
	store     durable.Store
	clk       clock.Clock
	edgeStore *EdgeStore

	log    *logger.Logger
	tracer corekit.Tracer
	hooks  corekit.ObservationHooks

	periods Periods
	cron    *cron.Cron

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	ticking map[CadenceClass]bool

	onTickSkipped func(class CadenceClass)
}

// Config bundles everything NewScheduler needs beyond the adapter list.
type Config struct {
	Transport   transport.Transport
	Credentials credentials.Store
	Clock       clock.Clock
	Cache       cache.Cache
	Store       durable.Store
	Log         *logger.Logger
	Periods     Periods
}

// NewScheduler builds a Scheduler over a fixed adapter set.
func NewScheduler(adapters []Adapter, cfg Config) *Scheduler {
	if cfg.Log == nil {
		cfg.Log = logger.NewDefault("ingest-scheduler")
	}
	health := make(map[string]*Health, len(adapters))
	for _, a := range adapters {
		health[a.ProviderID()] = NewHealth()
	}
	s := &Scheduler{
		adapters: adapters,
		health:   health,
		deps: Deps{
			Transport:   cfg.Transport,
			Credentials: cfg.Credentials,
			Clock:       cfg.Clock,
		},
		cache:     cfg.Cache,
		store:     cfg.Store,
		clk:       cfg.Clock,
		edgeStore: NewEdgeStore(),
		log:       cfg.Log,
		tracer:    corekit.NoopTracer,
		hooks:     corekit.NoopObservationHooks,
		periods:   cfg.Periods,
		ticking:   make(map[CadenceClass]bool),
	}
	s.SetName("ingest-scheduler")
	return s
}

// WithTracer configures span emission for adapter ticks.
func (s *Scheduler) WithTracer(t corekit.Tracer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t == nil {
		t = corekit.NoopTracer
	}
	s.tracer = t
}

// WithObservationHooks configures optional callbacks around adapter ticks.
func (s *Scheduler) WithObservationHooks(h corekit.ObservationHooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = h
}

// WithTickSkippedHook installs a callback fired whenever backpressure skips
// a class's tick, for metrics wiring.
func (s *Scheduler) WithTickSkippedHook(fn func(class CadenceClass)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTickSkipped = fn
}

// Store exposes the in-memory edge view for routing reads and GetEdges.
func (s *Scheduler) Store() *EdgeStore { return s.edgeStore }

// Describe advertises the scheduler's layer and capabilities for consistent
// startup logging and metric labels.
func (s *Scheduler) Describe() corekit.Descriptor {
	return corekit.Descriptor{
		Name:  s.Name(),
		Layer: corekit.LayerIngestion,
	}.WithCapabilities("fetch", "normalize", "snapshot")
}

// Start launches the fast and slow ticker goroutines and the snapshot cron
// entry.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	fastAdapters := adaptersInClass(s.adapters, func(c edge.SegmentClass) bool { return c.FastClass() })
	slowAdapters := adaptersInClass(s.adapters, func(c edge.SegmentClass) bool { return !c.FastClass() })

	s.runTickerLoop(runCtx, ClassFast, s.periods.fast(), fastAdapters)
	s.runTickerLoop(runCtx, ClassSlow, s.periods.slow(), slowAdapters)

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.periods.snapshotSpec(), func() {
		s.tickSnapshot(runCtx)
	}); err != nil {
		cancel()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("schedule snapshot cadence: %w", err)
	}
	s.cron.Start()

	s.log.Info("ingest scheduler started")
	s.MarkReady(true)
	return nil
}

// Stop cancels every ticker goroutine and the cron scheduler, waiting for
// in-flight ticks to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	runningCron := s.cron
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if runningCron != nil {
		<-runningCron.Stop().Done()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.MarkStopped()
	s.log.Info("ingest scheduler stopped")
	return nil
}

func (s *Scheduler) runTickerLoop(ctx context.Context, class CadenceClass, period time.Duration, adapters []Adapter) {
	if len(adapters) == 0 {
		return
	}
	ticker := s.clk.NewTicker(period)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				s.tick(ctx, class, adapters)
			}
		}
	}()
}

// tick implements the per-tick algorithm of §4.2 for one cadence class:
// backpressure check, concurrent fan-out under a per-class deadline,
// collection, and cache upsert honoring the observed_at ordering guarantee.
func (s *Scheduler) tick(ctx context.Context, class CadenceClass, adapters []Adapter) {
	s.mu.Lock()
	if s.ticking[class] {
		s.mu.Unlock()
		s.log.WithField("class", class).Warn("previous tick still running, skipping")
		if s.onTickSkipped != nil {
			s.onTickSkipped(class)
		}
		return
	}
	s.ticking[class] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.ticking[class] = false
		s.mu.Unlock()
	}()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var collected []edge.RouteSegment

	now := s.clk.Now()
	for _, a := range adapters {
		a := a
		health := s.health[a.ProviderID()]
		if health.Disabled(now) {
			metrics.SetAdapterDisabled(a.ProviderID(), true)
			continue
		}
		metrics.SetAdapterDisabled(a.ProviderID(), false)

		wg.Add(1)
		go func() {
			defer wg.Done()
			deadline := Deadline(a.SegmentClass())
			tickCtx, cancel := context.WithTimeout(ctx, deadline)
			defer cancel()

			attrs := map[string]string{"provider": a.ProviderID(), "segment_class": string(a.SegmentClass())}
			spanCtx, finishSpan := s.tracer.StartSpan(tickCtx, "ingest.tick", attrs)
			finishObs := corekit.StartObservation(spanCtx, s.hooks, attrs)

			result := a.Fetch(spanCtx, s.deps)
			finishObs(result.Err)
			finishSpan(result.Err)

			if result.Err != nil {
				s.recordFailure(health, a.ProviderID(), result.Err)
				metrics.RecordAdapterTick(a.ProviderID(), "error", len(result.Edges))
			} else {
				health.RecordSuccess()
				metrics.RecordAdapterTick(a.ProviderID(), "ok", len(result.Edges))
			}

			if len(result.Edges) > 0 {
				mu.Lock()
				collected = append(collected, result.Edges...)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	applied := 0
	for _, e := range collected {
		ttl := 3 * periodFor(class, s.periods)
		if s.edgeStore.Upsert(e) {
			applied++
		}
		key := cache.Key(e.Provider, string(e.FromAsset), string(e.FromNetwork), string(e.ToAsset), string(e.ToNetwork))
		if payload, err := json.Marshal(e); err == nil {
			if err := s.cache.Set(ctx, key, payload, ttl); err != nil {
				s.log.WithError(err).WithField("key", key).Warn("cache set failed")
			}
		}
	}

	s.log.WithField("class", class).
		WithField("fetched", len(collected)).
		WithField("applied", applied).
		Debug("ingest tick complete")
}

func (s *Scheduler) recordFailure(health *Health, provider string, err error) {
	kind := FailureTransient
	var adapterErr *AdapterError
	if e, ok := err.(*AdapterError); ok {
		adapterErr = e
		kind = adapterErr.Kind
	}
	health.RecordFailure(s.clk.Now(), kind, err)
	s.log.WithField("provider", provider).WithError(err).Warn("adapter tick failed")
}

// tickSnapshot runs the complete-set snapshot append of §4.2 step 5: "on
// snapshot ticks, additionally append the complete edge set as a single
// immutable snapshot record to the durable store." It does not itself fetch
// from adapters; it persists the EdgeStore's current view, which the fast
// and slow ticks keep up to date.
func (s *Scheduler) tickSnapshot(ctx context.Context) {
	snap := s.edgeStore.Snapshot()
	payload, err := json.Marshal(SnapshotRecord{
		TakenAt: s.clk.Now(),
		Edges:   snap,
	})
	if err != nil {
		s.log.WithError(err).Warn("marshal snapshot failed")
		return
	}
	if _, err := s.store.Append(ctx, durable.StreamEdgeSnapshots, payload); err != nil {
		s.log.WithError(err).Warn("append snapshot failed")
		return
	}
	s.log.WithField("edge_count", len(snap)).Info("snapshot persisted")
}

// SnapshotRecord is the payload shape appended to the edge_snapshots stream.
type SnapshotRecord struct {
	TakenAt time.Time           `json:"taken_at"`
	Edges   []edge.RouteSegment `json:"edges"`
}

func adaptersInClass(adapters []Adapter, match func(edge.SegmentClass) bool) []Adapter {
	var out []Adapter
	for _, a := range adapters {
		if match(a.SegmentClass()) {
			out = append(out, a)
		}
	}
	return out
}

func periodFor(class CadenceClass, p Periods) time.Duration {
	switch class {
	case ClassFast:
		return p.fast()
	case ClassSlow:
		return p.slow()
	default:
		return p.slow()
	}
}
