package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"spendsight/internal/api"
	"spendsight/internal/core"
	"spendsight/internal/events"
)

type fakeSource struct {
	mu        sync.Mutex
	fail      map[string]error
	expenses  []core.ExpenseRecord
	anomalies []core.AnomalyRecord
	activity  []core.ActivityRecord

	expenseCalls atomic.Int32
	anomalyCalls atomic.Int32
	recentLimit  atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		fail: map[string]error{},
		expenses: []core.ExpenseRecord{
			{ID: 1, Category: "Travel", Total: 100, Status: core.StatusProcessed, UploadedAt: "2025-01-15T10:00:00Z"},
			{ID: 2, Category: "Travel", Total: 50, Status: core.StatusNeedsReview, UploadedAt: "2025-02-15T10:00:00Z"},
			{ID: 3, Category: "Food", Total: 50, Status: core.StatusFlagged, UploadedAt: "2025-02-20T10:00:00Z"},
		},
		anomalies: []core.AnomalyRecord{
			{ID: "1", Severity: "Critical", Type: "Unusual Amount", DetectedAt: "2025-02-20T10:00:00Z", Amount: 50, Confidence: 90},
			{ID: "2", Severity: "critical", Type: "Duplicate Detection", DetectedAt: "2025-02-21T10:00:00Z", Amount: 20, Confidence: 80},
			{ID: "3", Severity: "Unknown", Type: "", DetectedAt: "2025-03-01T10:00:00Z", Amount: 5, Confidence: 70},
		},
		activity: []core.ActivityRecord{
			{ID: 6, User: "Auditor User", Action: "Report Generated", ActionType: "generated", Details: "Q1 report", Timestamp: "2025-04-02T09:00:00Z"},
			{ID: 5, User: "Employee User", Action: "Receipt Uploaded", ActionType: "uploaded", Details: "aws-0401.jpg", Timestamp: "2025-04-01T00:05:00Z"},
			{ID: 4, User: "Admin User", Action: "Expense Approved", ActionType: "approved", Details: "Uber trip", Timestamp: "2025-03-03T09:00:00Z"},
			{ID: 3, User: "Admin User", Action: "Expense Approved", ActionType: "approved", Details: "Delta Airlines", Timestamp: "2025-02-04T09:12:00Z"},
			{ID: 2, User: "Auditor User", Action: "Expense Flagged", ActionType: "flagged", Details: "Metro Diner", Timestamp: "2025-01-15T15:02:00Z"},
			{ID: 1, User: "Auditor User", Action: "Expense Rejected", ActionType: "rejected", Details: "Quick Services duplicate", Timestamp: "2025-01-14T10:05:00Z"},
		},
	}
}

func (f *fakeSource) setErr(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[method] = err
}

func (f *fakeSource) err(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[method]
}

func (f *fakeSource) ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	f.expenseCalls.Add(1)
	if err := f.err("expenses"); err != nil {
		return nil, err
	}
	return f.expenses, nil
}

func (f *fakeSource) ExpenseStats(ctx context.Context) (api.ExpenseStats, error) {
	if err := f.err("stats"); err != nil {
		return api.ExpenseStats{}, err
	}
	return api.ExpenseStats{
		TotalExpenses:       3,
		TotalAmount:         200,
		ByCategory:          map[string]float64{"Travel": 150, "Food": 50},
		CategoryPercentages: map[string]float64{"Travel": 75, "Food": 25},
	}, nil
}

func (f *fakeSource) ExpensesByCategory(ctx context.Context) (map[string]api.CategoryBucket, error) {
	if err := f.err("by-category"); err != nil {
		return nil, err
	}
	return map[string]api.CategoryBucket{
		"Food":    {Total: 50, Count: 1},
		"Travel":  {Total: 150, Count: 2},
		"Lodging": {Total: 50, Count: 1},
	}, nil
}

func (f *fakeSource) ListAnomalies(ctx context.Context) ([]core.AnomalyRecord, error) {
	f.anomalyCalls.Add(1)
	if err := f.err("anomalies"); err != nil {
		return nil, err
	}
	return f.anomalies, nil
}

func (f *fakeSource) AnomalyStats(ctx context.Context) (api.AnomalyStats, error) {
	if err := f.err("anomaly-stats"); err != nil {
		return api.AnomalyStats{}, err
	}
	return api.AnomalyStats{FlaggedCount: 5, NormalCount: 15, FlaggedPercentage: 25}, nil
}

func (f *fakeSource) RecentAnomalies(ctx context.Context, limit int) ([]core.AnomalyRecord, error) {
	f.recentLimit.Store(int32(limit))
	if err := f.err("recent"); err != nil {
		return nil, err
	}
	return f.anomalies[:1], nil
}

func (f *fakeSource) ListActivities(ctx context.Context, limit int) ([]core.ActivityRecord, error) {
	if err := f.err("activity"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.activity
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSource) ActivityStats(ctx context.Context) (api.ActivityStats, error) {
	if err := f.err("activity-stats"); err != nil {
		return api.ActivityStats{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int{}
	for _, a := range f.activity {
		counts[a.Kind()]++
	}
	return api.ActivityStats{
		TotalActivities:  len(f.activity),
		ActionCounts:     counts,
		Approvals:        counts[core.ActionApproved],
		FlagsRejections:  counts[core.ActionFlagged] + counts[core.ActionRejected],
		ReportsGenerated: counts[core.ActionGenerated],
	}, nil
}

func (f *fakeSource) addActivity(a core.ActivityRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activity = append([]core.ActivityRecord{a}, f.activity...)
}

func (f *fakeSource) GetSettings(ctx context.Context, role string) (core.Settings, error) {
	if err := f.err("settings"); err != nil {
		return core.Settings{}, err
	}
	return core.DefaultSettings(role), nil
}

func newTestDashboard(src Source, poll time.Duration) *Dashboard {
	return New(src, events.NewBus(), Options{
		PollInterval:       poll,
		RecentAnomalyLimit: 7,
		Now:                func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) },
	}, nil)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestAdminOverview_PartialFailure(t *testing.T) {
	src := newFakeSource()
	src.setErr("stats", &api.Error{Status: 503, Endpoint: "/expenses/stats", Message: "stats unavailable"})
	d := newTestDashboard(src, time.Hour)

	p, err := d.Refresh(context.Background(), AdminOverviewPage)
	if err == nil {
		t.Fatal("expected a joined error for the failed section")
	}
	v := p.View().(AdminOverviewView)

	if v.Summary.Error != "stats unavailable" || v.CategoryPie.Error != "stats unavailable" {
		t.Fatalf("stats sections should carry the banner: %+v", v.Summary)
	}
	if v.Recent.Error != "" || len(v.Recent.Data) != 3 {
		t.Fatalf("expense sections should render independently: %+v", v.Recent)
	}
	if v.Queue.Data[0].Value != "1" || v.Queue.Data[1].Value != "1" {
		t.Fatalf("unexpected queue counts: %+v", v.Queue.Data)
	}
}

func TestAdminOverview_ServerPercentages(t *testing.T) {
	d := newTestDashboard(newFakeSource(), time.Hour)
	p, err := d.Refresh(context.Background(), AdminOverviewPage)
	if err != nil {
		t.Fatal(err)
	}
	pie := p.View().(AdminOverviewView).CategoryPie.Data
	if len(pie) != 2 || pie[0].Name != "Travel" || pie[0].Percentage != 75 || pie[1].Percentage != 25 {
		t.Fatalf("unexpected pie %+v", pie)
	}
}

func TestEmployeeOverview_ClientAggregation(t *testing.T) {
	d := newTestDashboard(newFakeSource(), time.Hour)
	p, err := d.Refresh(context.Background(), EmployeeOverviewPage)
	if err != nil {
		t.Fatal(err)
	}
	v := p.View().(EmployeeOverviewView)
	if v.CategoryPie.Data[0].Percentage != 75 || v.CategoryPie.Data[1].Percentage != 25 {
		t.Fatalf("unexpected pie %+v", v.CategoryPie.Data)
	}
	if len(v.MonthlyTrend.Data) != 12 || v.MonthlyTrend.Data[1].Value != 100 {
		t.Fatalf("unexpected trend %+v", v.MonthlyTrend.Data)
	}
}

func TestExpenseCategories_SortedByAmount(t *testing.T) {
	d := newTestDashboard(newFakeSource(), time.Hour)
	p, _ := d.Refresh(context.Background(), ExpenseCategoriesPage)
	cards := p.View().(ExpenseCategoriesView).Cards.Data
	want := []string{"Travel", "Food", "Lodging"}
	for i, name := range want {
		if cards[i].Name != name {
			t.Fatalf("card %d = %s, want %s", i, cards[i].Name, name)
		}
	}
	if cards[0].Percentage != 60 || cards[0].Total != "$150.00" {
		t.Fatalf("unexpected card %+v", cards[0])
	}
}

func TestReports_SectionsFailIndependently(t *testing.T) {
	src := newFakeSource()
	d := newTestDashboard(src, time.Hour)
	p, err := d.Refresh(context.Background(), ReportsPage)
	if err != nil {
		t.Fatal(err)
	}
	v := p.View().(ReportsView)
	if v.Summary.Error != "" || len(v.Trend.Data) != 12 {
		t.Fatalf("unexpected first report: %+v", v.Summary)
	}

	src.setErr("anomalies", errors.New("anomaly service down"))
	before := src.expenseCalls.Load()
	if _, err := d.Refresh(context.Background(), ReportsPage); err == nil {
		t.Fatal("expected the anomaly failure to be reported")
	}
	if src.expenseCalls.Load() != before+1 {
		t.Fatal("expenses should still be fetched when anomalies fail")
	}
	v = p.View().(ReportsView)
	if v.Severity.Error == "" || v.Types.Error == "" {
		t.Fatal("anomaly sections should show the failure")
	}
	if v.Trend.Error != "" || v.Categories.Error != "" {
		t.Fatalf("expense sections should be unaffected: %q %q", v.Trend.Error, v.Categories.Error)
	}
	if v.Summary.Error == "" || v.Text.Error == "" {
		t.Fatal("summary and text need both resources")
	}
	if len(v.Summary.Data) != 4 {
		t.Fatal("previous report should remain visible beside the banner")
	}
}

func TestReports_FirstLoadFailureShowsNoData(t *testing.T) {
	src := newFakeSource()
	src.setErr("expenses", errors.New("down"))
	d := newTestDashboard(src, time.Hour)
	p, _ := d.Refresh(context.Background(), ReportsPage)
	v := p.View().(ReportsView)
	if v.Summary.Data != nil || v.Summary.Loading || v.Summary.Error == "" {
		t.Fatalf("unexpected section %+v", v.Summary)
	}
}

func TestAuditTrail_View(t *testing.T) {
	src := newFakeSource()
	d := newTestDashboard(src, time.Hour)
	p, err := d.Refresh(context.Background(), AuditTrailPage)
	if err != nil {
		t.Fatal(err)
	}
	v := p.View().(AuditTrailView)
	if v.Filter != "all" || len(v.Logs.Data) != 6 || len(v.Timeline.Data) != 5 {
		t.Fatalf("unexpected view: filter=%q logs=%d timeline=%d", v.Filter, len(v.Logs.Data), len(v.Timeline.Data))
	}
	if v.Summary.Data[0].Value != "6" || v.Summary.Data[1].Value != "2" || v.Summary.Data[2].Value != "2" || v.Summary.Data[3].Value != "1" {
		t.Fatalf("unexpected cards %+v", v.Summary.Data)
	}
	if v.Actions.Data[0].Label != "approved" || v.Actions.Data[0].Value != 2 {
		t.Fatalf("unexpected action bars %+v", v.Actions.Data)
	}
}

func TestAuditTrail_FilteredView(t *testing.T) {
	src := newFakeSource()
	d := newTestDashboard(src, time.Hour)
	p, _ := d.Refresh(context.Background(), AuditTrailPage)
	fp, ok := p.(Filterable)
	if !ok {
		t.Fatal("audit trail should be filterable")
	}

	tests := []struct {
		name     string
		filter   string
		query    string
		logs     []int64
		timeline int
	}{
		{"approved", "approved", "", []int64{4, 3}, 2},
		{"search", "", "auditor", []int64{6, 2, 1}, 2},
		{"type and search", "approved", "delta", []int64{3}, 1},
		{"rejected outside timeline", "rejected", "", []int64{1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := fp.FilteredView(tt.filter, tt.query)
			if err != nil {
				t.Fatal(err)
			}
			v := view.(AuditTrailView)
			if len(v.Logs.Data) != len(tt.logs) {
				t.Fatalf("logs = %+v, want ids %v", v.Logs.Data, tt.logs)
			}
			for i, id := range tt.logs {
				if v.Logs.Data[i].ID != id {
					t.Errorf("log %d id = %d, want %d", i, v.Logs.Data[i].ID, id)
				}
			}
			if len(v.Timeline.Data) != tt.timeline {
				t.Errorf("timeline = %d rows, want %d", len(v.Timeline.Data), tt.timeline)
			}
			if len(v.Summary.Data) != 4 || v.Summary.Data[0].Value != "6" {
				t.Errorf("summary should ignore the filter: %+v", v.Summary.Data)
			}
		})
	}

	if _, err := fp.FilteredView("edited", ""); err == nil {
		t.Fatal("expected an error for an unknown filter")
	}
}

func TestAuditTrail_JointFailure(t *testing.T) {
	src := newFakeSource()
	d := newTestDashboard(src, time.Hour)
	p, err := d.Refresh(context.Background(), AuditTrailPage)
	if err != nil {
		t.Fatal(err)
	}

	src.addActivity(core.ActivityRecord{ID: 7, User: "Admin User", Action: "Expense Edited", ActionType: "edited", Timestamp: "2025-04-10T09:00:00Z"})
	src.setErr("activity-stats", errors.New("stats unavailable"))
	if _, err := d.Refresh(context.Background(), AuditTrailPage); err == nil {
		t.Fatal("expected the batch failure to be reported")
	}

	v := p.View().(AuditTrailView)
	for name, msg := range map[string]string{
		"summary":  v.Summary.Error,
		"actions":  v.Actions.Error,
		"logs":     v.Logs.Error,
		"timeline": v.Timeline.Error,
	} {
		if msg == "" {
			t.Errorf("%s should show the batch failure", name)
		}
	}
	if len(v.Logs.Data) != 6 || v.Logs.Data[0].ID != 6 {
		t.Fatalf("log must keep the last committed batch: %+v", v.Logs.Data)
	}

	src.setErr("activity-stats", nil)
	if _, err := d.Refresh(context.Background(), AuditTrailPage); err != nil {
		t.Fatal(err)
	}
	v = p.View().(AuditTrailView)
	if v.Logs.Error != "" || len(v.Logs.Data) != 7 || v.Summary.Data[0].Value != "7" {
		t.Fatalf("recovery should commit both resources: %+v", v.Logs)
	}
}

func TestAuditTrail_FirstLoadFailureShowsNoData(t *testing.T) {
	src := newFakeSource()
	src.setErr("activity", errors.New("down"))
	d := newTestDashboard(src, time.Hour)
	p, _ := d.Refresh(context.Background(), AuditTrailPage)
	v := p.View().(AuditTrailView)
	if v.Logs.Data != nil || v.Logs.Loading || v.Summary.Error == "" {
		t.Fatalf("unexpected sections %+v %+v", v.Logs, v.Summary)
	}
}

func TestAnomalyMonitor_View(t *testing.T) {
	d := newTestDashboard(newFakeSource(), time.Hour)
	p, err := d.Refresh(context.Background(), AnomalyMonitorPage)
	if err != nil {
		t.Fatal(err)
	}
	v := p.View().(AnomalyMonitorView)
	if v.Severity.Data[0].Count != 2 {
		t.Fatalf("expected 2 critical, got %+v", v.Severity.Data)
	}
	for _, bar := range v.Severity.Data[1:] {
		if bar.Count != 0 {
			t.Fatalf("expected other buckets empty: %+v", bar)
		}
	}
	if v.Summary.Data[0].Value != "3" {
		t.Fatalf("total flagged should include unrecognized severity: %+v", v.Summary.Data[0])
	}
	if v.Integrity.Data[1].Value != "75.0%" {
		t.Fatalf("integrity score: %+v", v.Integrity.Data[1])
	}
	if len(v.Recent.Data) != 1 {
		t.Fatalf("recent rows: %+v", v.Recent.Data)
	}
}

func TestAnomalyMonitor_PollsUntilStopped(t *testing.T) {
	src := newFakeSource()
	d := newTestDashboard(src, 10*time.Millisecond)
	var hooks atomic.Int32
	d.OnRefresh(func(page string) {
		if page == AnomalyMonitorPage {
			hooks.Add(1)
		}
	})

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return src.anomalyCalls.Load() >= 3 })
	if src.recentLimit.Load() != 7 {
		t.Fatalf("recent limit not passed through: %d", src.recentLimit.Load())
	}

	if err := d.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if hooks.Load() == 0 {
		t.Fatal("refresh hook should run after polled refreshes")
	}
	after := src.anomalyCalls.Load()
	time.Sleep(60 * time.Millisecond)
	if got := src.anomalyCalls.Load(); got != after {
		t.Fatalf("fetches continued after Stop: %d -> %d", after, got)
	}
}

type brokenPoller struct{ name string }

func (b brokenPoller) Name() string                  { return b.name }
func (b brokenPoller) Refresh(context.Context) error { return nil }
func (b brokenPoller) View() any                     { return nil }
func (b brokenPoller) Topics() []events.Kind         { return nil }
func (b brokenPoller) Start(context.Context) error   { return errors.New("no capacity") }
func (b brokenPoller) Stop(context.Context) error    { return nil }

func TestStartFailureLeavesDashboardStopped(t *testing.T) {
	src := newFakeSource()
	d := newTestDashboard(src, 10*time.Millisecond)
	d.pages["broken"] = brokenPoller{name: "broken"}

	ctx := context.Background()
	if err := d.Start(ctx); err == nil {
		t.Fatal("Start should fail when a polled page cannot start")
	}
	monitor := d.pages[AnomalyMonitorPage].(*anomalyMonitor)
	if monitor.poller != nil && monitor.poller.IsRunning() {
		t.Fatal("pollers started before the failure should be stopped")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if err := d.Stop(stopCtx); err != nil {
		t.Fatalf("Stop after failed Start: %v", err)
	}

	delete(d.pages, "broken")
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start after failed Start: %v", err)
	}
	waitFor(t, func() bool { return src.anomalyCalls.Load() >= 1 })
	if err := d.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestEventRefreshesSubscribedPages(t *testing.T) {
	src := newFakeSource()
	d := newTestDashboard(src, time.Hour)
	refreshed := make(chan string, 16)
	d.OnRefresh(func(page string) { refreshed <- page })

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer d.Stop(ctx)

	before := src.expenseCalls.Load()
	d.Bus().Publish(events.New(events.ExpenseUploaded, "test"))

	seen := map[string]bool{}
	deadline := time.After(2 * time.Second)
	for !(seen[AdminOverviewPage] && seen[EmployeeOverviewPage] && seen[ReportsPage] && seen[AuditTrailPage]) {
		select {
		case p := <-refreshed:
			seen[p] = true
		case <-deadline:
			t.Fatalf("pages not refreshed on upload event: %v", seen)
		}
	}
	if seen[SettingsPage] {
		t.Fatal("settings page should not react to uploads")
	}
	if src.expenseCalls.Load() <= before {
		t.Fatal("expected expense refetch")
	}
}

func TestUnknownPage(t *testing.T) {
	d := newTestDashboard(newFakeSource(), time.Hour)
	if _, err := d.Page("nope"); !errors.Is(err, ErrUnknownPage) {
		t.Fatalf("expected ErrUnknownPage, got %v", err)
	}
	if len(d.Names()) != 7 {
		t.Fatalf("expected seven pages, got %v", d.Names())
	}
}

func TestSettingsPageUsesRole(t *testing.T) {
	d := New(newFakeSource(), nil, Options{Role: core.RoleAuditor}, nil)
	p, err := d.Refresh(context.Background(), SettingsPage)
	if err != nil {
		t.Fatal(err)
	}
	v := p.View().(SettingsView)
	if v.Role != core.RoleAuditor || v.Settings.Data.Role != core.RoleAuditor {
		t.Fatalf("unexpected settings view %+v", v)
	}
}
