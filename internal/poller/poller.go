// Package poller refreshes an open chat on a fixed schedule.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/nasirmalek/FamilyCircle/internal/metrics"
)

// DefaultInterval is the delay between two fetches of an open chat.
const DefaultInterval = 3000 * time.Millisecond

// State of a Poller
type State int

const (
	Idle State = iota
	Polling
)

func (s State) String() string {
	if s == Polling {
		return "polling"
	}
	return "idle"
}

// FetchFunc performs one refresh. Its context is cancelled by Stop.
type FetchFunc func(ctx context.Context) error

// Poller calls a FetchFunc every interval while started. Fetches never
// overlap: a tick that fires while the previous fetch is still running is
// skipped, not queued.
type Poller struct {
	fetch    FetchFunc
	clock    clockwork.Clock
	interval time.Duration
	logger   *logrus.Entry
	metrics  *metrics.Metrics

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	loopDone chan struct{}

	inflight atomic.Bool
	skipped  atomic.Int64
	fetches  sync.WaitGroup
}

// Option configures a Poller
type Option func(*Poller)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

// WithMetrics records tick outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Poller) { p.metrics = m }
}

// WithFields adds fields to every log entry of the poller.
func WithFields(fields logrus.Fields) Option {
	return func(p *Poller) { p.logger = p.logger.WithFields(fields) }
}

// New creates an idle Poller.
func New(fetch FetchFunc, logger *logrus.Logger, opts ...Option) *Poller {
	p := &Poller{
		fetch:    fetch,
		clock:    clockwork.NewRealClock(),
		interval: DefaultInterval,
		logger:   logrus.NewEntry(logger),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Skipped returns how many ticks were dropped because a fetch was running.
func (p *Poller) Skipped() int64 {
	return p.skipped.Load()
}

// Start begins polling. It returns false if the poller is already running.
// The first fetch happens one interval after Start.
func (p *Poller) Start(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Polling {
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	ticker := p.clock.NewTicker(p.interval)
	done := make(chan struct{})

	p.state = Polling
	p.cancel = cancel
	p.loopDone = done

	go p.loop(loopCtx, ticker, done)

	p.logger.WithField("interval", p.interval).Debug("Poller started")
	return true
}

// Stop cancels the loop and any running fetch and waits for both to exit.
// Stopping an idle poller is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state != Polling {
		p.mu.Unlock()
		return
	}
	p.state = Idle
	p.cancel()
	done := p.loopDone
	p.mu.Unlock()

	<-done
	p.fetches.Wait()

	p.logger.Debug("Poller stopped")
}

func (p *Poller) loop(ctx context.Context, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if !p.inflight.CAS(false, true) {
		p.skipped.Inc()
		p.metrics.PollTick(metrics.OutcomeSkipped)
		p.logger.Debug("Previous fetch still running, skipping tick")
		return
	}

	p.fetches.Add(1)
	go func() {
		defer p.fetches.Done()
		defer p.inflight.Store(false)

		if err := p.fetch(ctx); err != nil {
			p.metrics.PollTick(metrics.OutcomeError)
			if ctx.Err() == nil {
				p.logger.Errorf("Failed to refresh: %v", err)
			}
			return
		}
		p.metrics.PollTick(metrics.OutcomeOK)
	}()
}
