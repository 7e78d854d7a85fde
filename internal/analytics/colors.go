package analytics

import (
	"strings"

	"spendsight/internal/core"
)

// FallbackColor is returned for any label without a palette entry.
const FallbackColor = "#999999"

var categoryColors = map[string]string{
	"Travel":          "#3ba8ff",
	"Food":            "#38d788",
	"Lodging":         "#ffa94d",
	"Transportation":  "#ff6b9d",
	"Entertainment":   "#c084fc",
	"Utilities":       "#51cf66",
	"Office Supplies": "#a78bfa",
	"Miscellaneous":   "#f472b6",
}

var anomalyTypeColors = map[string]string{
	"Unusual Amount":      "#ff6b6b",
	"Duplicate Detection": "#ffa94d",
	"Unusual Vendor":      "#ffd93d",
	"Unknown Vendor":      "#6bcf7f",
	"Duplicate Receipt":   "#ef4444",
	"Excessive Amount":    "#f97316",
	"Missing Receipt":     "#eab308",
	"Others":              "#64748b",
}

var severityColors = map[core.Severity]string{
	core.Critical: "#ef4444",
	core.High:     "#ff6b6b",
	core.Medium:   "#ffa94d",
	core.Low:      "#74b9ff",
}

// CategoryColor returns the palette color for an expense category.
func CategoryColor(category string) string {
	return lookup(categoryColors, strings.TrimSpace(category))
}

// AnomalyTypeColor returns the palette color for an anomaly type.
func AnomalyTypeColor(anomalyType string) string {
	return lookup(anomalyTypeColors, strings.TrimSpace(anomalyType))
}

// SeverityColor returns the palette color for a raw severity label.
func SeverityColor(severity string) string {
	sev, ok := core.ParseSeverity(severity)
	if !ok {
		return FallbackColor
	}
	return severityColors[sev]
}

func lookup(palette map[string]string, key string) string {
	if c, ok := palette[key]; ok {
		return c
	}
	return FallbackColor
}
