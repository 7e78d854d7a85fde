package analytics

import (
	"errors"
	"fmt"
	"strings"

	"spendsight/internal/core"
)

// ErrUnknownFilter is returned for an action filter outside ActivityFilters.
var ErrUnknownFilter = errors.New("unknown activity filter")

// FilterAll keeps every action type.
const FilterAll = "all"

// ActivityFilters lists the accepted action filters in display order.
var ActivityFilters = []string{
	FilterAll,
	core.ActionApproved,
	core.ActionUploaded,
	core.ActionFlagged,
	core.ActionRejected,
	core.ActionGenerated,
}

var actionColors = map[string]string{
	core.ActionApproved:  "#38d788",
	core.ActionUploaded:  "#74b9ff",
	core.ActionGenerated: "#74b9ff",
	core.ActionFlagged:   "#ff6b6b",
	core.ActionRejected:  "#ff6b6b",
	core.ActionEdited:    "#ffa94d",
	core.ActionReturned:  "#ffa94d",
}

// ActionColor returns the badge color for an action type. Unknown types
// share the uploaded color.
func ActionColor(actionType string) string {
	if c, ok := actionColors[strings.ToLower(strings.TrimSpace(actionType))]; ok {
		return c
	}
	return actionColors[core.ActionUploaded]
}

// ParseActivityFilter normalizes filter. Empty means FilterAll.
func ParseActivityFilter(filter string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(filter))
	if f == "" {
		return FilterAll, nil
	}
	for _, known := range ActivityFilters {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFilter, filter)
}

// FilterActivities keeps records whose action type passes filter and whose
// user, action or details contain query. Order is preserved.
func FilterActivities(records []core.ActivityRecord, filter, query string) ([]core.ActivityRecord, error) {
	f, err := ParseActivityFilter(filter)
	if err != nil {
		return nil, err
	}
	out := make([]core.ActivityRecord, 0, len(records))
	for _, r := range records {
		if f != FilterAll && r.Kind() != f {
			continue
		}
		if !r.Matches(query) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
