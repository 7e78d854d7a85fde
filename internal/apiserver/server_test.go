package apiserver

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"spendsight/internal/api"
	"spendsight/internal/core"
	"spendsight/internal/events"
	"spendsight/internal/storage"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
}

func (n *recordingNotifier) Publish(ctx context.Context, e events.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *recordingNotifier) kinds() []events.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []events.Kind
	for _, e := range n.events {
		out = append(out, e.Kind)
	}
	return out
}

// newTestAPI serves the API over an in-memory database and returns a typed
// client pointed at it.
func newTestAPI(t *testing.T) (*api.Client, *recordingNotifier, string) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(storage.MemoryPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { repo.Close() })

	uploads := t.TempDir()
	notifier := &recordingNotifier{}
	srv := NewServer(Config{UploadDir: uploads, Source: "api-test"}, repo, notifier, nil)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	return api.New(ts.URL, 5*time.Second), notifier, uploads
}

func TestExpenseEndpoints(t *testing.T) {
	client, _, _ := newTestAPI(t)
	ctx := context.Background()

	expenses, err := client.ListExpenses(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(expenses) != 12 {
		t.Fatalf("expected 12 expenses, got %d", len(expenses))
	}

	stats, err := client.ExpenseStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalExpenses != 12 || stats.TotalAmount != 9755.44 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.ByCategory[core.UncategorizedLabel] != 0 {
		t.Fatalf("blank category should land in the sentinel bucket: %+v", stats.ByCategory)
	}
	if _, ok := stats.ByCategory[core.UncategorizedLabel]; !ok {
		t.Fatal("missing Uncategorized bucket")
	}
	var pct float64
	for _, p := range stats.CategoryPercentages {
		pct += p
	}
	if pct < 99.9 || pct > 100.1 {
		t.Fatalf("percentages sum to %v", pct)
	}

	buckets, err := client.ExpensesByCategory(ctx)
	if err != nil {
		t.Fatal(err)
	}
	office := buckets["Office Supplies"]
	if office.Count != 3 || len(office.Expenses) != 3 {
		t.Fatalf("office bucket = %+v", office)
	}
}

func TestAnomalyEndpoints(t *testing.T) {
	client, _, _ := newTestAPI(t)
	ctx := context.Background()

	all, err := client.ListAnomalies(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 anomalies, got %d", len(all))
	}

	recent, err := client.RecentAnomalies(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 recent, got %d", len(recent))
	}

	stats, err := client.AnomalyStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FlaggedCount != 5 || stats.NormalCount != 7 || stats.FlaggedPercentage != 41.67 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.BySeverity["High"] != 2 || stats.BySeverity["Critical"] != 1 {
		t.Fatalf("by severity = %+v", stats.BySeverity)
	}
}

func TestReceiptUpload(t *testing.T) {
	client, notifier, uploads := newTestAPI(t)
	ctx := context.Background()

	res, err := client.UploadReceipt(ctx, "lunch.jpg", strings.NewReader("jpeg"))
	if err != nil {
		t.Fatal(err)
	}
	if res.ExpenseID != 13 || res.Text != "" {
		t.Fatalf("unexpected upload result %+v", res)
	}

	expenses, _ := client.ListExpenses(ctx)
	last := expenses[len(expenses)-1]
	if last.File != "lunch.jpg" || last.Status != core.StatusNeedsReview {
		t.Fatalf("stored expense = %+v", last)
	}

	files, _ := filepath.Glob(filepath.Join(uploads, "receipts", "*-lunch.jpg"))
	if len(files) != 1 {
		t.Fatalf("receipt not saved: %v", files)
	}
	if k := notifier.kinds(); len(k) != 1 || k[0] != events.ExpenseUploaded {
		t.Fatalf("events = %v", k)
	}
}

func TestReceiptUpload_MissingFile(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(storage.MemoryPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	srv := NewServer(Config{}, repo, nil, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("note", "no file")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/ocr", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "No file uploaded") {
		t.Fatalf("got %d %s", rr.Code, rr.Body.String())
	}
}

func TestSettingsEndpoints(t *testing.T) {
	client, notifier, uploads := newTestAPI(t)
	ctx := context.Background()

	s, err := client.GetSettings(ctx, core.RoleAuditor)
	if err != nil {
		t.Fatal(err)
	}
	if s.Role != core.RoleAuditor {
		t.Fatalf("role = %q", s.Role)
	}

	s, err = client.UpdateSettings(ctx, core.RoleAuditor, core.SettingsPatch{
		Help: &core.Help{Content: "## FAQ"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.Help == nil || s.Help.Content != "## FAQ" {
		t.Fatalf("help not saved: %+v", s.Help)
	}

	logo, err := client.UploadLogo(ctx, core.RoleAuditor, "brand.PNG", strings.NewReader("png"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(logo.LogoPath, client.BaseURL()+"/uploads/logos/auditor-") || !strings.HasSuffix(logo.LogoPath, ".png") {
		t.Fatalf("logo path = %q", logo.LogoPath)
	}
	if logo.Settings.Organisation.LogoPath == "" {
		t.Fatal("settings should carry the logo path")
	}
	entries, _ := os.ReadDir(filepath.Join(uploads, "logos"))
	if len(entries) != 1 {
		t.Fatalf("logo files = %d", len(entries))
	}

	resp, err := http.Get(logo.LogoPath)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logo not served: %d", resp.StatusCode)
	}

	if k := notifier.kinds(); len(k) != 2 {
		t.Fatalf("expected two settings events, got %v", k)
	}
}

func TestActivityEndpoints(t *testing.T) {
	client, _, _ := newTestAPI(t)
	ctx := context.Background()

	logs, err := client.ListActivities(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 5 || logs[0].Kind() != core.ActionReturned {
		t.Fatalf("unexpected activities: %+v", logs)
	}
	stats, err := client.ActivityStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalActivities != 12 || stats.Approvals != 3 || stats.FlagsRejections != 3 || stats.ReportsGenerated != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if _, err := client.UploadReceipt(ctx, "taxi.jpg", strings.NewReader("jpeg")); err != nil {
		t.Fatal(err)
	}
	if _, err := client.UpdateSettings(ctx, core.RoleAdmin, core.SettingsPatch{
		Preferences: &core.Preferences{Theme: "light"},
	}); err != nil {
		t.Fatal(err)
	}
	stats, err = client.ActivityStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalActivities != 14 || stats.ActionCounts[core.ActionUploaded] != 3 || stats.ActionCounts[core.ActionEdited] != 2 {
		t.Fatalf("writes not recorded: %+v", stats)
	}
	logs, err = client.ListActivities(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 14 {
		t.Fatalf("default limit returned %d activities", len(logs))
	}
}

func TestActivityStats(t *testing.T) {
	stats := ActivityStats(map[string]int{"approved": 2, "flagged": 1, "rejected": 4, "generated": 1, "edited": 3})
	if stats.TotalActivities != 11 || stats.Approvals != 2 || stats.FlagsRejections != 5 || stats.ReportsGenerated != 1 {
		t.Fatalf("unexpected %+v", stats)
	}
	if empty := ActivityStats(nil); empty.TotalActivities != 0 || empty.ActionCounts == nil {
		t.Fatalf("unexpected %+v", empty)
	}
}

func TestSettings_InvalidRole(t *testing.T) {
	client, _, _ := newTestAPI(t)
	_, err := client.GetSettings(context.Background(), "root")
	if api.StatusCode(err) != http.StatusBadRequest || api.Message(err) != "Invalid role" {
		t.Fatalf("err = %v", err)
	}
}

func TestExpenseStats_Empty(t *testing.T) {
	stats := ExpenseStats(nil)
	if stats.TotalAmount != 0 || len(stats.ByCategory) != 0 {
		t.Fatalf("unexpected %+v", stats)
	}
	a := AnomalyStats(0, 0, nil)
	if a.FlaggedPercentage != 0 || a.BySeverity["Low"] != 0 {
		t.Fatalf("unexpected %+v", a)
	}
}
