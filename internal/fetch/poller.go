package fetch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"spendsight/internal/events"
)

// DefaultPollInterval matches the anomaly monitor refresh cadence.
const DefaultPollInterval = 5 * time.Second

// ErrPollerRunning is returned by Start on a running poller.
var ErrPollerRunning = errors.New("poller is already running")

// Poller runs a refresh func on a fixed interval until stopped. Every event
// received on the trigger channel forces an extra run.
type Poller struct {
	interval time.Duration
	run      func(ctx context.Context)
	trigger  <-chan events.Event

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewPoller creates a poller. A non-positive interval uses DefaultPollInterval.
func NewPoller(interval time.Duration, run func(ctx context.Context), trigger <-chan events.Event) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{interval: interval, run: run, trigger: trigger}
}

// Start runs the refresh immediately and then on every tick.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrPollerRunning
	}

	// Stop cancels loopCtx so an in-flight run is abandoned.
	loopCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.loop(loopCtx, p.stopCh, p.doneCh)

	slog.DebugContext(ctx, "Poller started", "interval", p.interval)
	return nil
}

// Stop ends the loop and waits for it to exit. Once Stop returns nil no
// further run is started and any in-flight run has finished with its results
// dropped. If ctx expires first the poller keeps draining in the background;
// a later Stop waits for the same loop and Start fails until it has exited.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	if p.stopCh != nil {
		close(p.stopCh)
		p.cancel()
		p.stopCh, p.cancel = nil, nil
	}
	done := p.doneCh
	p.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the loop is active.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer p.exited(doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	trigger := p.trigger

	p.tick(ctx, stopCh)
	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, stopCh)
		case _, ok := <-trigger:
			if !ok {
				trigger = nil
				continue
			}
			p.tick(ctx, stopCh)
		}
	}
}

// exited clears the running state of the loop that owns doneCh. It covers
// loops ended by Stop and loops whose parent context was cancelled.
func (p *Poller) exited(doneCh chan struct{}) {
	p.mu.Lock()
	if p.doneCh == doneCh {
		if p.cancel != nil {
			p.cancel()
		}
		p.running = false
		p.stopCh, p.cancel = nil, nil
	}
	p.mu.Unlock()
	close(doneCh)
}

func (p *Poller) tick(ctx context.Context, stopCh <-chan struct{}) {
	select {
	case <-stopCh:
		return
	case <-ctx.Done():
		return
	default:
	}
	p.run(ctx)
}
