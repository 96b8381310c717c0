package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/i474232898/covid-data-explorer/internal/epidata"
	"github.com/i474232898/covid-data-explorer/internal/observability"
)

var (
	// ErrNotLoaded is returned by readiness checks before the first successful load.
	ErrNotLoaded = errors.New("dataset not loaded yet")
)

// DefaultTTL is how long a loaded snapshot is served before refetching.
const DefaultTTL = time.Hour

// CacheEntry is a loaded snapshot and the time it was loaded.
type CacheEntry struct {
	Value    *epidata.Dataset
	LoadedAt time.Time
	TTL      time.Duration
}

// IsValid reports whether the entry may still be served at now.
func (e *CacheEntry) IsValid(now time.Time) bool {
	if e == nil || e.Value == nil || e.TTL <= 0 {
		return false
	}
	return now.Before(e.LoadedAt.Add(e.TTL))
}

// MemoryStore is a concurrency-safe, time-to-live cache in front of a dataset source.
type MemoryStore struct {
	source  epidata.Source
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger

	mu    sync.RWMutex
	entry *CacheEntry

	// concurrent misses share a single upstream fetch
	group singleflight.Group
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock overrides the time source.
func WithClock(c clockwork.Clock) Option {
	return func(s *MemoryStore) { s.clock = c }
}

// WithMetrics sets the collectors updated on loads and lookups.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *MemoryStore) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *MemoryStore) { s.logger = l }
}

// NewMemoryStore creates a cache over source. A ttl <= 0 falls back to DefaultTTL.
func NewMemoryStore(source epidata.Source, ttl time.Duration, opts ...Option) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryStore{
		source: source,
		ttl:    ttl,
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observability.NewMetricsWithRegistry(nil)
	}
	return s
}

// Load returns the cached snapshot while it is valid and fetches a fresh one otherwise.
func (s *MemoryStore) Load(ctx context.Context) (*epidata.Dataset, error) {
	if e := s.Entry(); e.IsValid(s.clock.Now()) {
		s.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return e.Value, nil
	}
	s.metrics.CacheLookups.WithLabelValues("miss").Inc()

	v, err, _ := s.group.Do("dataset", func() (interface{}, error) {
		// Another caller may have filled the cache while we waited.
		if e := s.Entry(); e.IsValid(s.clock.Now()) {
			return e.Value, nil
		}
		return s.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*epidata.Dataset), nil
}

// Refresh fetches a new snapshot regardless of the current entry's age.
func (s *MemoryStore) Refresh(ctx context.Context) (*epidata.Dataset, error) {
	v, err, _ := s.group.Do("dataset", func() (interface{}, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*epidata.Dataset), nil
}

// Entry returns the current cache entry, or nil before the first load.
func (s *MemoryStore) Entry() *CacheEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entry
}

// CheckReadiness returns nil once a snapshot has been loaded.
func (s *MemoryStore) CheckReadiness(_ context.Context) error {
	if s.Entry() == nil {
		return ErrNotLoaded
	}
	return nil
}

func (s *MemoryStore) fetch(ctx context.Context) (*epidata.Dataset, error) {
	start := s.clock.Now()

	obs, err := s.source.Fetch(ctx)
	if err != nil {
		s.metrics.DatasetLoads.WithLabelValues("error").Inc()
		s.logger.Error("dataset load failed", "source", s.source.Name(), "error", err)
		if errors.Is(err, epidata.ErrLoad) || errors.Is(err, epidata.ErrSchema) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", epidata.ErrLoad, err)
	}

	now := s.clock.Now()
	ds := &epidata.Dataset{
		ID:           uuid.NewString(),
		FetchedAt:    now,
		Observations: obs,
	}

	s.mu.Lock()
	s.entry = &CacheEntry{Value: ds, LoadedAt: now, TTL: s.ttl}
	s.mu.Unlock()

	s.metrics.DatasetLoads.WithLabelValues("success").Inc()
	s.metrics.DatasetLoadDuration.Observe(now.Sub(start).Seconds())
	s.metrics.DatasetObservations.Set(float64(len(obs)))
	s.logger.Info("dataset cached",
		"id", ds.ID,
		"observations", len(obs),
		"ttl", s.ttl,
	)
	return ds, nil
}
