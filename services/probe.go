package services

import (
	"context"
	"sync"
	"time"

	"humana-api/internal/logger"
	"humana-api/internal/rag"

	"github.com/go-co-op/gocron"
)

const (
	StoreStatusUp       = "up"
	StoreStatusDown     = "down"
	StoreStatusDisabled = "disabled"
)

// StoreHealth is the last observed state of the retrieval store.
type StoreHealth struct {
	Status    string    `json:"status"`
	Backend   string    `json:"backend,omitempty"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at,omitempty"`
}

// StoreProbe pings the retrieval store on a cron schedule so readiness checks
// never block on the database.
type StoreProbe struct {
	store     rag.Store
	timeout   time.Duration
	scheduler *gocron.Scheduler

	mu   sync.RWMutex
	last StoreHealth
}

func NewStoreProbe(store rag.Store, timeout time.Duration) *StoreProbe {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	p := &StoreProbe{store: store, timeout: timeout, scheduler: s}
	p.last = StoreHealth{Status: StoreStatusDisabled}
	return p
}

// Start runs one check immediately and then schedules the rest.
func (p *StoreProbe) Start(cronExpr string) error {
	if p.store == nil {
		return nil
	}
	p.Check(context.Background())
	if _, err := p.scheduler.Cron(cronExpr).Tag("store-probe").Do(func() {
		p.Check(context.Background())
	}); err != nil {
		return err
	}
	p.scheduler.StartAsync()
	return nil
}

func (p *StoreProbe) Stop() {
	p.scheduler.Stop()
}

// Check pings the store and records the outcome.
func (p *StoreProbe) Check(ctx context.Context) StoreHealth {
	if p.store == nil {
		return p.Health()
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	h := StoreHealth{Status: StoreStatusUp, Backend: p.store.Backend(), CheckedAt: time.Now().UTC()}
	if err := p.store.Ping(ctx); err != nil {
		h.Status = StoreStatusDown
		h.Error = err.Error()
	}

	p.mu.Lock()
	prev := p.last.Status
	p.last = h
	p.mu.Unlock()

	if prev != h.Status {
		logger.Info("Retrieval store status changed", "backend", h.Backend, "from", prev, "to", h.Status, "error", h.Error)
	}
	return h
}

// Current returns the last result, checking first if the store has never
// been probed.
func (p *StoreProbe) Current(ctx context.Context) StoreHealth {
	h := p.Health()
	if p.store != nil && h.CheckedAt.IsZero() {
		return p.Check(ctx)
	}
	return h
}

func (p *StoreProbe) Health() StoreHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}
