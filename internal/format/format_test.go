package format

import (
	"math"
	"testing"
	"time"
)

func TestCurrency(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{5, "$5.00"},
		{1234.5, "$1,234.50"},
		{1234567.891, "$1,234,567.89"},
		{-42.1, "-$42.10"},
		{math.NaN(), "$0.00"},
	}
	for _, tc := range cases {
		if got := Currency(tc.in); got != tc.want {
			t.Errorf("Currency(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCompactCurrency(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{950, "$950"},
		{1000, "$1.0k"},
		{1500, "$1.5k"},
		{12.5, "$12.5"},
		{24780, "$24.8k"},
		{-1500, "-$1.5k"},
		{-42.5, "-$42.5"},
		{0.004, "$0"},
		{-0.001, "$0"},
		{19.999, "$20"},
		{math.NaN(), "$0"},
	}
	for _, tc := range cases {
		if got := CompactCurrency(tc.in); got != tc.want {
			t.Errorf("CompactCurrency(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNumber(t *testing.T) {
	if got := Number(1234567); got != "1,234,567" {
		t.Fatalf("Number = %q", got)
	}
	if got := Number(12); got != "12" {
		t.Fatalf("Number = %q", got)
	}
}

func TestPercentageAndConfidence(t *testing.T) {
	if got := Percentage(12.345); got != "12.3%" {
		t.Fatalf("Percentage = %q", got)
	}
	if got := Percentage(0); got != "0.0%" {
		t.Fatalf("Percentage(0) = %q", got)
	}
	if got := Confidence(87.5); got != "88%" {
		t.Fatalf("Confidence(87.5) = %q", got)
	}
	if got := Confidence(92.4); got != "92%" {
		t.Fatalf("Confidence(92.4) = %q", got)
	}
}

func TestDateTime(t *testing.T) {
	ts := time.Date(2025, 1, 15, 14, 30, 0, 0, time.UTC)
	if got := DateTime(ts); got != "01/15/2025, 02:30 PM" {
		t.Fatalf("DateTime = %q", got)
	}
	if got := Date(ts); got != "2025-01-15" {
		t.Fatalf("Date = %q", got)
	}
	if DateTime(time.Time{}) != "" || Date(time.Time{}) != "" {
		t.Fatalf("zero time should render empty")
	}
}
