package core

// CategoryAggregate is the summed amount for one category in a snapshot.
type CategoryAggregate struct {
	Category   string  `json:"category"`
	Amount     float64 `json:"amount"`
	Count      int     `json:"count"`
	Percentage int     `json:"percentage"` // 0-100, rounded per item
}

// TrendPoint is one period of a trend series.
type TrendPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// SeveritySummary buckets anomalies by severity. Total counts every record,
// including those whose severity was not recognized.
type SeveritySummary struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Total    int `json:"total"`
}

// TypeCount is the number of anomalies of one type with its display color.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
	Color string `json:"color"`
}

// Totals summarizes a list of expenses.
type Totals struct {
	Count   int     `json:"count"`
	Amount  float64 `json:"amount"`
	Average float64 `json:"average"`
}
