// Package format renders amounts, percentages and timestamps for display.
package format

import (
	"math"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	dateTimeLayout = "01/02/2006, 03:04 PM"
	dateLayout     = "2006-01-02"
)

// Currency renders a dollar amount with thousands grouping and two decimals.
func Currency(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	if amount < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -amount)
	}
	return "$" + humanize.FormatFloat("#,###.##", amount)
}

// CompactCurrency abbreviates amounts of a thousand or more, e.g. "$1.5k".
// Smaller amounts are rounded to cents. Negative amounts take a "-$" prefix
// like Currency.
func CompactCurrency(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	if amount >= 1000 {
		return sign + "$" + strconv.FormatFloat(amount/1000, 'f', 1, 64) + "k"
	}
	cents := math.Round(amount*100) / 100
	if cents == 0 {
		sign = ""
	}
	return sign + "$" + strconv.FormatFloat(cents, 'f', -1, 64)
}

// Number renders a count with thousands grouping.
func Number(n int64) string {
	return humanize.Comma(n)
}

// Percentage renders v with one decimal place.
func Percentage(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

// Confidence renders a 0-100 score rounded half-up to a whole percent.
func Confidence(v float64) string {
	return strconv.FormatFloat(math.Floor(v+0.5), 'f', 0, 64) + "%"
}

// DateTime renders t as "01/15/2025, 02:30 PM".
func DateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateTimeLayout)
}

// Date renders t as "2025-01-15".
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
