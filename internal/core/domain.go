package core

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const (
	// UncategorizedLabel replaces a missing or blank category.
	UncategorizedLabel = "Uncategorized"
	// OtherAnomalyType replaces a missing or blank anomaly type.
	OtherAnomalyType = "Other"
)

// Expense statuses seen in the API. The set is open; unknown values pass through.
const (
	StatusProcessed   = "Processed"
	StatusNeedsReview = "Needs Review"
	StatusFlagged     = "Flagged"
)

const (
	Critical Severity = "Critical"
	High     Severity = "High"
	Medium   Severity = "Medium"
	Low      Severity = "Low"
)

type (
	// Severity is one of the four ordinal anomaly classes.
	Severity string

	// ID accepts both JSON numbers and strings.
	ID string

	// ExpenseRecord is an uploaded receipt as returned by GET /expenses.
	// Records are produced upstream and never mutated here.
	ExpenseRecord struct {
		ID            int64    `json:"id"`
		File          string   `json:"file"`
		UploadedAt    string   `json:"uploadedAt"`
		Category      string   `json:"category"`
		Vendor        string   `json:"vendor,omitempty"`
		Total         float64  `json:"total"`
		Status        string   `json:"status"`
		Confidence    *float64 `json:"confidence,omitempty"`
		TextPreview   string   `json:"textPreview,omitempty"`
		AnomalyStatus string   `json:"anomalyStatus,omitempty"`
		AnomalyReason string   `json:"anomalyReason,omitempty"`
	}

	// AnomalyRecord is a detection result referencing an expense.
	AnomalyRecord struct {
		ID         ID      `json:"id"`
		ExpenseID  int64   `json:"expenseId"`
		DetectedAt string  `json:"detectedAt"`
		Vendor     string  `json:"vendor"`
		Category   string  `json:"category"`
		Amount     float64 `json:"amount"`
		Type       string  `json:"anomalyType"`
		Severity   string  `json:"severity"`
		Confidence float64 `json:"confidence"`
	}
)

// Severities lists the buckets from most to least severe.
var Severities = []Severity{Critical, High, Medium, Low}

// ParseSeverity matches s case-insensitively against the known buckets.
func ParseSeverity(s string) (Severity, bool) {
	s = strings.TrimSpace(s)
	for _, sev := range Severities {
		if strings.EqualFold(s, string(sev)) {
			return sev, true
		}
	}
	return "", false
}

// Rank orders severities: Critical=4 down to Low=1; anything else is 0.
func (s Severity) Rank() int {
	switch s {
	case Critical:
		return 4
	case High:
		return 3
	case Medium:
		return 2
	case Low:
		return 1
	default:
		return 0
	}
}

func (s Severity) String() string {
	return string(s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Int64 returns the numeric value of the id when it has one.
func (id ID) Int64() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

// CategoryOrDefault returns the trimmed category or UncategorizedLabel.
func (e ExpenseRecord) CategoryOrDefault() string {
	if c := strings.TrimSpace(e.Category); c != "" {
		return c
	}
	return UncategorizedLabel
}

// VendorOrDefault returns the vendor or "Unknown".
func (e ExpenseRecord) VendorOrDefault() string {
	if v := strings.TrimSpace(e.Vendor); v != "" {
		return v
	}
	return "Unknown"
}

// UploadTime parses UploadedAt. ok is false for missing or malformed timestamps.
func (e ExpenseRecord) UploadTime() (time.Time, bool) {
	return ParseTimestamp(e.UploadedAt)
}

// TypeOrDefault returns the trimmed anomaly type or OtherAnomalyType.
func (a AnomalyRecord) TypeOrDefault() string {
	if t := strings.TrimSpace(a.Type); t != "" {
		return t
	}
	return OtherAnomalyType
}

// DetectionTime parses DetectedAt.
func (a AnomalyRecord) DetectionTime() (time.Time, bool) {
	return ParseTimestamp(a.DetectedAt)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts the timestamp shapes the API emits. Python's
// isoformat()+"Z" on an aware datetime yields "+00:00Z", which is handled too.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	s = strings.Replace(s, "+00:00Z", "Z", 1)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
