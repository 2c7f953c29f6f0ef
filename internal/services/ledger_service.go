// Package services exposes the ledger operations the UI shell consumes. It sits
// on top of the storage layer and caches the totals of closed months.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"accountbook/internal/cache"
	"accountbook/internal/core"
	"accountbook/internal/log"
	"accountbook/internal/storage"
)

// ServiceConfig tunes the monthly totals cache.
type ServiceConfig struct {
	CacheSize     int
	CacheTTL      time.Duration
	CleanInterval time.Duration
	Logger        *log.Logger
}

// DefaultServiceConfig matches the configuration defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		CacheSize:     16,
		CacheTTL:      30 * time.Second,
		CleanInterval: time.Minute,
	}
}

type cachedMonth struct {
	generation uint64
	total      core.MonthTotal
}

// LedgerService orchestrates entry writes, reads and monthly aggregation over
// one ledger database.
type LedgerService struct {
	db      *storage.DB
	entries *storage.EntryRepository
	agg     *storage.Aggregator
	logger  *log.Logger

	// closed months only; the current month is always queried
	closed   *cache.LRUCache[string, cachedMonth]
	caches   *cache.Manager
	group    singleflight.Group
	genMu    sync.Mutex
	gen      uint64
	closeErr error
	once     sync.Once
}

func NewLedgerService(db *storage.DB, cfg ServiceConfig) *LedgerService {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentLedger)

	closed := cache.NewLRUCache[string, cachedMonth](cfg.CacheSize, cfg.CacheTTL)
	manager := cache.NewManager(logger.Logger)
	manager.Register(closed)
	manager.StartCleanup(cfg.CleanInterval)

	return &LedgerService{
		db:      db,
		entries: storage.NewEntryRepository(db),
		agg:     storage.NewAggregator(db),
		logger:  logger,
		closed:  closed,
		caches:  manager,
	}
}

// Insert stores a new entry and invalidates cached totals.
func (s *LedgerService) Insert(ctx context.Context, d core.Draft) (core.Entry, error) {
	start := time.Now()
	entry, err := s.entries.Insert(ctx, d)
	if err != nil {
		s.logFailure(ctx, log.OpInsert, err)
		return core.Entry{}, err
	}
	s.invalidate()

	fields := log.NewFields().
		WithOperation(log.OpInsert).
		WithEntry(entry.ID, entry.Kind.String(), entry.Amount).
		With(log.FieldOccurredAt, entry.OccurredAt.Format(time.DateOnly)).
		With(log.FieldHasPhoto, entry.PhotoRef != nil).
		WithDuration(time.Since(start).Milliseconds())
	s.logger.InfoContext(ctx, "Entry inserted", fields.ToSlice()...)
	return entry, nil
}

// Update overwrites an existing entry and invalidates cached totals.
func (s *LedgerService) Update(ctx context.Context, e core.Entry) (core.Entry, error) {
	start := time.Now()
	entry, err := s.entries.Update(ctx, e)
	if err != nil {
		s.logFailure(ctx, log.OpUpdate, err)
		return core.Entry{}, err
	}
	s.invalidate()

	fields := log.NewFields().
		WithOperation(log.OpUpdate).
		WithEntry(entry.ID, entry.Kind.String(), entry.Amount).
		With(log.FieldOccurredAt, entry.OccurredAt.Format(time.DateOnly)).
		With(log.FieldHasPhoto, entry.PhotoRef != nil).
		WithDuration(time.Since(start).Milliseconds())
	s.logger.InfoContext(ctx, "Entry updated", fields.ToSlice()...)
	return entry, nil
}

// List returns every entry, newest first.
func (s *LedgerService) List(ctx context.Context) ([]core.Entry, error) {
	entries, err := s.entries.List(ctx)
	if err != nil {
		s.logFailure(ctx, log.OpList, err)
		return nil, err
	}
	s.logger.DebugContext(ctx, "Entries listed", log.FieldOperation, log.OpList, log.FieldCount, len(entries))
	return entries, nil
}

// Get returns one entry by id.
func (s *LedgerService) Get(ctx context.Context, id int64) (core.Entry, error) {
	entry, err := s.entries.Get(ctx, id)
	if err != nil {
		s.logFailure(ctx, log.OpGet, err)
		return core.Entry{}, err
	}
	return entry, nil
}

// MonthlyTotals returns the income and expense sums of the current month and
// the two before it, oldest first. The current month is always summed up to
// the clock's now. Totals of the two closed months are cached until the next
// write through the service or the cache TTL. Concurrent callers at the same
// instant share one query.
func (s *LedgerService) MonthlyTotals(ctx context.Context) ([]core.MonthTotal, error) {
	ranges := core.MonthWindows(s.db.Now(), s.db.Location())
	current := len(ranges) - 1
	gen := s.generation()

	totals := make([]core.MonthTotal, len(ranges))
	var pending []int
	for i, rg := range ranges {
		if i < current {
			if c, ok := s.closed.Get(monthKey(rg)); ok && c.generation == gen {
				totals[i] = c.total
				continue
			}
		}
		pending = append(pending, i)
	}

	key := fmt.Sprintf("%d#%d#%v", ranges[current].End.UnixMilli(), gen, pending)
	v, err, shared := s.group.Do(key, func() (any, error) {
		want := make([]core.Range, len(pending))
		for j, i := range pending {
			want[j] = ranges[i]
		}
		fetched, err := s.agg.RangeTotals(ctx, want)
		if err != nil {
			return nil, err
		}
		// a write that landed while the query ran makes this result stale
		if s.generation() == gen {
			for j, i := range pending {
				if i < current {
					s.closed.Set(monthKey(ranges[i]), cachedMonth{generation: gen, total: fetched[j]})
				}
			}
		}
		return fetched, nil
	})
	if err != nil {
		s.logFailure(ctx, log.OpMonthlyTotals, err)
		return nil, err
	}

	fetched := v.([]core.MonthTotal)
	for j, i := range pending {
		totals[i] = fetched[j]
	}

	s.logger.DebugContext(ctx, "Monthly totals computed",
		log.FieldOperation, log.OpMonthlyTotals,
		log.FieldCacheHit, len(ranges)-len(pending),
		"shared", shared)
	return totals, nil
}

// Close stops the cache sweeper and closes the database. Later calls return
// the first result.
func (s *LedgerService) Close() error {
	s.once.Do(func() {
		s.caches.Stop()
		if s.db != nil {
			if err := s.db.Close(); err != nil {
				s.closeErr = fmt.Errorf("close ledger database: %w", err)
			}
		}
		hits, misses := s.closed.Stats()
		s.logger.Info("Ledger service closed",
			log.FieldOperation, log.OpShutdown,
			"cache_hits", hits,
			"cache_misses", misses,
			"cache_entries", s.closed.Size())
	})
	return s.closeErr
}

func monthKey(rg core.Range) string {
	return rg.Start.Format("2006-01")
}

func (s *LedgerService) generation() uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gen
}

func (s *LedgerService) invalidate() {
	s.genMu.Lock()
	s.gen++
	s.genMu.Unlock()
	s.closed.Purge()
}

func (s *LedgerService) logFailure(ctx context.Context, op string, err error) {
	fields := log.NewFields().
		WithOperation(op).
		WithError(err, errorType(err))
	if errors.Is(err, core.ErrValidation) || errors.Is(err, core.ErrMissingID) {
		s.logger.WarnContext(ctx, "Ledger operation rejected", fields.ToSlice()...)
		return
	}
	s.logger.ErrorContext(ctx, "Ledger operation failed", fields.ToSlice()...)
}

func errorType(err error) string {
	switch {
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrMissingID):
		return log.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return log.ErrorTypeNotFound
	case errors.Is(err, core.ErrConnection):
		return log.ErrorTypeConnection
	case errors.Is(err, core.ErrSchema):
		return log.ErrorTypeSchema
	case errors.Is(err, core.ErrWrite):
		return log.ErrorTypeWrite
	case errors.Is(err, core.ErrRead):
		return log.ErrorTypeRead
	}
	return log.ErrorTypeInternal
}
