// Package dashboard defines the dashboard pages: which resources each page
// loads, how failures are isolated, which pages poll, and how the loaded
// data becomes a view.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"spendsight/internal/api"
	"spendsight/internal/core"
	"spendsight/internal/events"
	"spendsight/internal/log"
)

// Page names.
const (
	AdminOverviewPage     = "admin-overview"
	EmployeeOverviewPage  = "employee-overview"
	ExpenseCategoriesPage = "expense-categories"
	AnomalyMonitorPage    = "anomaly-monitor"
	ReportsPage           = "reports"
	AuditTrailPage        = "audit-trail"
	SettingsPage          = "settings"
)

// Source is the subset of the expense API the pages read from.
type Source interface {
	ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error)
	ExpenseStats(ctx context.Context) (api.ExpenseStats, error)
	ExpensesByCategory(ctx context.Context) (map[string]api.CategoryBucket, error)
	ListAnomalies(ctx context.Context) ([]core.AnomalyRecord, error)
	AnomalyStats(ctx context.Context) (api.AnomalyStats, error)
	RecentAnomalies(ctx context.Context, limit int) ([]core.AnomalyRecord, error)
	GetSettings(ctx context.Context, role string) (core.Settings, error)
	ListActivities(ctx context.Context, limit int) ([]core.ActivityRecord, error)
	ActivityStats(ctx context.Context) (api.ActivityStats, error)
}

// Page is one dashboard screen.
type Page interface {
	Name() string
	// Refresh refetches every resource of the page. The returned error is
	// informational; failed sections carry their own error in View.
	Refresh(ctx context.Context) error
	View() any
	// Topics lists the refresh events the page reacts to.
	Topics() []events.Kind
}

// Polled is implemented by pages that refresh on an interval while started.
type Polled interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ErrUnknownPage is returned for names that are not registered.
var ErrUnknownPage = errors.New("unknown page")

// Options configures the pages.
type Options struct {
	Role               string
	PollInterval       time.Duration
	RequestTimeout     time.Duration
	RecentAnomalyLimit int
	Now                func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Role == "" {
		o.Role = core.RoleAdmin
	}
	if o.RecentAnomalyLimit <= 0 {
		o.RecentAnomalyLimit = 10
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Dashboard owns the pages and routes refresh events to them.
type Dashboard struct {
	pages  map[string]Page
	bus    *events.Bus
	logger *log.Logger

	mu        sync.Mutex
	onRefresh []func(page string)
	cancel    context.CancelFunc
	done      chan struct{}
}

// New builds every page over src.
func New(src Source, bus *events.Bus, opts Options, logger *log.Logger) *Dashboard {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if bus == nil {
		bus = events.NewBus()
	}
	opts = opts.withDefaults()
	logger = logger.WithComponent(log.ComponentDashboard)

	d := &Dashboard{
		pages:  make(map[string]Page),
		bus:    bus,
		logger: logger,
	}
	for _, p := range []Page{
		newAdminOverview(src, opts, logger),
		newEmployeeOverview(src, opts, logger),
		newExpenseCategories(src, opts, logger),
		newAnomalyMonitor(src, opts, logger, bus, d.notify),
		newReports(src, opts, logger),
		newAuditTrail(src, opts, logger),
		newSettings(src, opts, logger),
	} {
		d.pages[p.Name()] = p
	}
	return d
}

// Names returns the registered page names, sorted.
func (d *Dashboard) Names() []string {
	names := make([]string, 0, len(d.pages))
	for n := range d.pages {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Page looks up a page by name.
func (d *Dashboard) Page(name string) (Page, error) {
	p, ok := d.pages[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPage, name)
	}
	return p, nil
}

// Bus returns the event bus the dashboard listens on.
func (d *Dashboard) Bus() *events.Bus { return d.bus }

// OnRefresh registers fn to run after any page finishes a refresh.
func (d *Dashboard) OnRefresh(fn func(page string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onRefresh = append(d.onRefresh, fn)
}

func (d *Dashboard) notify(page string) {
	d.mu.Lock()
	hooks := append(([]func(string))(nil), d.onRefresh...)
	d.mu.Unlock()
	for _, fn := range hooks {
		fn(page)
	}
}

// Refresh refreshes one page and runs the refresh hooks.
func (d *Dashboard) Refresh(ctx context.Context, name string) (Page, error) {
	p, err := d.Page(name)
	if err != nil {
		return nil, err
	}
	err = p.Refresh(ctx)
	d.notify(name)
	return p, err
}

// Start starts polled pages and begins routing bus events to the pages that
// subscribe to them. Polled pages receive events through their own trigger.
func (d *Dashboard) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.cancel != nil {
		d.mu.Unlock()
		return errors.New("dashboard is already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.mu.Unlock()

	var started []Polled
	for _, p := range d.pages {
		polled, ok := p.(Polled)
		if !ok {
			continue
		}
		if err := polled.Start(runCtx); err != nil {
			err = fmt.Errorf("start %s: %w", p.Name(), err)
			return d.abortStart(ctx, cancel, started, err)
		}
		started = append(started, polled)
	}

	sub, unsubscribe := d.bus.Subscribe(16)
	go func() {
		defer close(d.done)
		defer unsubscribe()
		for {
			select {
			case <-runCtx.Done():
				return
			case e, ok := <-sub:
				if !ok {
					return
				}
				d.route(runCtx, e)
			}
		}
	}()

	d.logger.InfoContext(ctx, "Dashboard started", "pages", len(d.pages))
	return nil
}

// abortStart undoes a partial Start so the dashboard can be started again.
func (d *Dashboard) abortStart(ctx context.Context, cancel context.CancelFunc, started []Polled, cause error) error {
	errs := []error{cause}
	for _, polled := range started {
		if err := polled.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	cancel()

	d.mu.Lock()
	close(d.done)
	d.cancel, d.done = nil, nil
	d.mu.Unlock()
	return errors.Join(errs...)
}

func (d *Dashboard) route(ctx context.Context, e events.Event) {
	for _, p := range d.pages {
		if _, polled := p.(Polled); polled {
			continue
		}
		for _, k := range p.Topics() {
			if k != e.Kind {
				continue
			}
			d.logger.DebugContext(ctx, "Refreshing page on event",
				log.FieldPage, p.Name(), log.FieldEventKind, e.Kind, log.FieldEventID, e.ID)
			if _, err := d.Refresh(ctx, p.Name()); err != nil && ctx.Err() == nil {
				d.logger.DebugContext(ctx, "Event refresh incomplete", log.FieldPage, p.Name(), log.FieldError, err)
			}
			break
		}
	}
}

// Stop stops polling and event routing. No page fetches after Stop returns.
func (d *Dashboard) Stop(ctx context.Context) error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()
	if cancel == nil {
		return nil
	}

	var errs []error
	for _, p := range d.pages {
		if polled, ok := p.(Polled); ok {
			if err := polled.Stop(ctx); err != nil {
				errs = append(errs, fmt.Errorf("stop %s: %w", p.Name(), err))
			}
		}
	}
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}
