package quota

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"atlas-gw/atlas/pkg/registry"
	"atlas-gw/atlas/pkg/storage"
)

// Tracker accounts token consumption per endpoint against its configured
// quota. Consumption is persisted through a storage backend so a restart
// mid-cycle does not refund tokens, and cycles reset on a cron schedule
// (daily at midnight, weekly on Monday, monthly on the first).
//
// Endpoints with a zero quota limit are never tracked and never excluded.
type Tracker struct {
	backend storage.Backend
	logger  *slog.Logger
	nowFn   func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry

	cron     *cron.Cron
	flushTik *time.Ticker
	stopCh   chan struct{}
	doneCh   chan struct{}
	startMu  sync.Mutex
	started  bool
}

// entry is the live counter for one quota-limited endpoint.
type entry struct {
	clientType string
	name       string
	limit      int64
	cycle      string

	mu         sync.Mutex
	consumed   int64
	cycleStart time.Time
	dirty      bool
}

// NewTracker creates a quota tracker writing through the given backend.
func NewTracker(backend storage.Backend, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		backend: backend,
		logger:  logger,
		nowFn:   time.Now,
		entries: make(map[string]*entry),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

func entryKey(clientType, name string) string {
	return clientType + "/" + name
}

// Configure syncs the tracked set with the registry's endpoints. Only
// endpoints with a positive quota limit are tracked; existing counters
// survive when limit or cycle are merely edited.
func (t *Tracker) Configure(endpoints []*registry.Endpoint) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]bool, len(endpoints))
	now := t.nowFn()

	for _, ep := range endpoints {
		if ep.QuotaLimit <= 0 || ep.QuotaResetCycle == CycleNone || ep.QuotaResetCycle == "" {
			continue
		}
		key := entryKey(ep.ClientType, ep.Name)
		seen[key] = true

		if e, ok := t.entries[key]; ok {
			e.mu.Lock()
			e.limit = ep.QuotaLimit
			if e.cycle != ep.QuotaResetCycle {
				e.cycle = ep.QuotaResetCycle
				e.cycleStart = cycleStart(e.cycle, now)
			}
			e.mu.Unlock()
			continue
		}
		t.entries[key] = &entry{
			clientType: ep.ClientType,
			name:       ep.Name,
			limit:      ep.QuotaLimit,
			cycle:      ep.QuotaResetCycle,
			cycleStart: cycleStart(ep.QuotaResetCycle, now),
		}
	}

	for key := range t.entries {
		if !seen[key] {
			delete(t.entries, key)
		}
	}
}

// Restore loads persisted consumption from the backend. Records whose
// cycle has already rolled over since they were written are discarded.
func (t *Tracker) Restore(ctx context.Context) error {
	records, err := t.backend.LoadUsage(ctx)
	if err != nil {
		return err
	}

	now := t.nowFn()
	restored := 0

	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, rec := range records {
		e, ok := t.entries[entryKey(rec.ClientType, rec.EndpointName)]
		if !ok {
			continue
		}
		e.mu.Lock()
		if staleCycle(e.cycle, rec.CycleStart, now) {
			e.mu.Unlock()
			continue
		}
		e.consumed = rec.Consumed
		e.cycleStart = rec.CycleStart
		e.mu.Unlock()
		restored++
	}

	t.logger.Info("quota usage restored",
		"persisted", len(records),
		"restored", restored,
	)
	return nil
}

// Consume adds tokens to an endpoint's counter. Untracked endpoints are
// ignored. Consumption is allowed to overshoot the limit; enforcement
// happens in the selector via Exceeded.
func (t *Tracker) Consume(clientType, name string, tokens int64) {
	if tokens <= 0 {
		return
	}
	t.mu.RLock()
	e, ok := t.entries[entryKey(clientType, name)]
	t.mu.RUnlock()
	if !ok {
		return
	}

	e.mu.Lock()
	e.consumed += tokens
	e.dirty = true
	consumed, limit := e.consumed, e.limit
	e.mu.Unlock()

	if consumed >= limit {
		t.logger.Warn("endpoint quota exhausted",
			"endpoint", name,
			"client_type", clientType,
			"consumed", consumed,
			"limit", limit,
		)
	}
}

// Exceeded reports whether the endpoint's quota is used up for the
// current cycle. Untracked endpoints are never exceeded.
func (t *Tracker) Exceeded(clientType, name string) bool {
	t.mu.RLock()
	e, ok := t.entries[entryKey(clientType, name)]
	t.mu.RUnlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Lazy rollover in case the process missed a cron tick (clock jump,
	// suspend). The cron reset is the fast path.
	if start := cycleStart(e.cycle, t.nowFn()); start.After(e.cycleStart) {
		e.consumed = 0
		e.cycleStart = start
		e.dirty = true
	}
	return e.consumed >= e.limit
}

// Usage returns the consumed and limit values for an endpoint, and false
// if the endpoint is not quota-tracked.
func (t *Tracker) Usage(clientType, name string) (consumed, limit int64, tracked bool) {
	t.mu.RLock()
	e, ok := t.entries[entryKey(clientType, name)]
	t.mu.RUnlock()
	if !ok {
		return 0, 0, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.consumed, e.limit, true
}

// Start launches the cron reset schedules and the periodic flush loop.
func (t *Tracker) Start(flushInterval time.Duration) {
	t.startMu.Lock()
	defer t.startMu.Unlock()
	if t.started {
		return
	}
	t.started = true

	t.cron = cron.New()
	t.cron.AddFunc(cronDaily, func() { t.resetCycle(CycleDaily) })
	t.cron.AddFunc(cronWeekly, func() { t.resetCycle(CycleWeekly) })
	t.cron.AddFunc(cronMonthly, func() { t.resetCycle(CycleMonthly) })
	t.cron.Start()

	if flushInterval <= 0 {
		flushInterval = 30 * time.Second
	}
	t.flushTik = time.NewTicker(flushInterval)

	go func() {
		defer close(t.doneCh)
		for {
			select {
			case <-t.flushTik.C:
				t.Flush(context.Background())
			case <-t.stopCh:
				return
			}
		}
	}()

	t.logger.Info("quota tracker started", "flush_interval", flushInterval)
}

// Stop halts the schedules and flushes outstanding counters.
func (t *Tracker) Stop(ctx context.Context) {
	t.startMu.Lock()
	defer t.startMu.Unlock()
	if !t.started {
		return
	}
	t.started = false

	t.cron.Stop()
	t.flushTik.Stop()
	close(t.stopCh)
	<-t.doneCh

	t.Flush(ctx)
}

// Flush persists every dirty counter through the backend.
func (t *Tracker) Flush(ctx context.Context) {
	t.mu.RLock()
	entries := make([]*entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		if !e.dirty {
			e.mu.Unlock()
			continue
		}
		rec := &storage.UsageRecord{
			ClientType:   e.clientType,
			EndpointName: e.name,
			Consumed:     e.consumed,
			CycleStart:   e.cycleStart,
		}
		e.dirty = false
		e.mu.Unlock()

		if err := t.backend.SaveUsage(ctx, rec); err != nil {
			t.logger.Error("failed to persist quota usage",
				"endpoint", rec.EndpointName,
				"client_type", rec.ClientType,
				"error", err,
			)
		}
	}
}

// resetCycle zeroes every counter on the given cycle and persists the
// fresh state.
func (t *Tracker) resetCycle(cycle string) {
	now := t.nowFn()
	start := cycleStart(cycle, now)

	t.mu.RLock()
	entries := make([]*entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	reset := 0
	for _, e := range entries {
		e.mu.Lock()
		if e.cycle == cycle {
			e.consumed = 0
			e.cycleStart = start
			e.dirty = true
			reset++
		}
		e.mu.Unlock()
	}

	t.logger.Info("quota cycle reset",
		"cycle", cycle,
		"endpoints", reset,
	)
	t.Flush(context.Background())
}
