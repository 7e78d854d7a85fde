package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseSeverity(t *testing.T) {
	cases := []struct {
		in   string
		want Severity
		ok   bool
	}{
		{"Critical", Critical, true},
		{"critical", Critical, true},
		{" HIGH ", High, true},
		{"medium", Medium, true},
		{"Low", Low, true},
		{"Unknown", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseSeverity(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseSeverity(%q) = %q,%v want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestSeverityRank(t *testing.T) {
	if !(Critical.Rank() > High.Rank() && High.Rank() > Medium.Rank() && Medium.Rank() > Low.Rank()) {
		t.Fatalf("severity ranks out of order")
	}
	if Severity("bogus").Rank() != 0 {
		t.Fatalf("unknown severity should rank 0")
	}
}

func TestIDUnmarshal(t *testing.T) {
	var recs []AnomalyRecord
	data := `[{"id": 42}, {"id": "txn-1"}, {"id": null}]`
	if err := json.Unmarshal([]byte(data), &recs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if recs[0].ID != "42" || recs[1].ID != "txn-1" || recs[2].ID != "" {
		t.Fatalf("unexpected ids: %+v", recs)
	}
	if n, ok := recs[0].ID.Int64(); !ok || n != 42 {
		t.Fatalf("expected numeric id 42, got %d,%v", n, ok)
	}
	if _, ok := recs[1].ID.Int64(); ok {
		t.Fatalf("txn-1 should not be numeric")
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 1, 15, 14, 30, 0, 0, time.UTC)
	for _, in := range []string{
		"2025-01-15T14:30:00Z",
		"2025-01-15T14:30:00.000000Z",
		"2025-01-15T14:30:00",
		"2025-01-15T14:30:00+00:00Z",
		"2025-01-15 14:30:00",
	} {
		got, ok := ParseTimestamp(in)
		if !ok || !got.Equal(want) {
			t.Fatalf("ParseTimestamp(%q) = %v,%v", in, got, ok)
		}
	}
	for _, in := range []string{"", "yesterday", "2025-13-40"} {
		if _, ok := ParseTimestamp(in); ok {
			t.Fatalf("ParseTimestamp(%q) should fail", in)
		}
	}
}

func TestExpenseDefaults(t *testing.T) {
	e := ExpenseRecord{Category: "  ", Vendor: ""}
	if e.CategoryOrDefault() != UncategorizedLabel {
		t.Fatalf("expected sentinel category, got %q", e.CategoryOrDefault())
	}
	if e.VendorOrDefault() != "Unknown" {
		t.Fatalf("expected Unknown vendor")
	}
	e.Category = " Travel "
	if e.CategoryOrDefault() != "Travel" {
		t.Fatalf("expected trimmed category, got %q", e.CategoryOrDefault())
	}
}

func TestExpenseNullTotal(t *testing.T) {
	var e ExpenseRecord
	if err := json.Unmarshal([]byte(`{"id":1,"total":null,"category":null}`), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Total != 0 || e.CategoryOrDefault() != UncategorizedLabel {
		t.Fatalf("null fields should default, got %+v", e)
	}
}

func TestSettingsApply(t *testing.T) {
	s := DefaultSettings(RoleAdmin)
	s.Organisation.LogoPath = "uploads/logo.png"

	theme := Preferences{Theme: "light"}
	org := Organisation{Name: "Acme", Industry: "Retail"}
	got := s.Apply(SettingsPatch{Preferences: &theme, Organisation: &org, Contact: &Contact{Info: "desk"}})

	if got.Preferences.Theme != "light" {
		t.Fatalf("theme not applied")
	}
	if got.Organisation.Name != "Acme" || got.Organisation.LogoPath != "uploads/logo.png" {
		t.Fatalf("organisation merge wrong: %+v", got.Organisation)
	}
	if got.Contact == nil || got.Contact.Info != "desk" {
		t.Fatalf("contact not applied")
	}
	if got.Profile != s.Profile {
		t.Fatalf("profile should be untouched")
	}
	if !IsRole("auditor") || IsRole("root") {
		t.Fatalf("IsRole mismatch")
	}
}

func TestActivityMatches(t *testing.T) {
	a := ActivityRecord{User: "Auditor User", Action: "Expense Flagged", ActionType: " Flagged ", Details: "Metro Diner receipt"}
	cases := []struct {
		query string
		want  bool
	}{
		{"", true},
		{"auditor", true},
		{"FLAGGED", true},
		{"metro diner", true},
		{"approved", false},
	}
	for _, tc := range cases {
		if got := a.Matches(tc.query); got != tc.want {
			t.Errorf("Matches(%q) = %v, want %v", tc.query, got, tc.want)
		}
	}
	if a.Kind() != ActionFlagged {
		t.Fatalf("Kind() = %q", a.Kind())
	}
}
