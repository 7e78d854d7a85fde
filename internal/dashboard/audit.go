package dashboard

import (
	"context"

	"spendsight/internal/analytics"
	"spendsight/internal/api"
	"spendsight/internal/core"
	"spendsight/internal/events"
	"spendsight/internal/fetch"
	"spendsight/internal/log"
	"spendsight/internal/views"
)

const (
	auditLogLimit      = 100
	auditTimelineLimit = 5
)

// AuditTrailView is the auditor's activity log page. Filter and Query echo
// the selection applied to Logs.
type AuditTrailView struct {
	Page     string                             `json:"page"`
	Filter   string                             `json:"filter"`
	Query    string                             `json:"query,omitempty"`
	Filters  []string                           `json:"filters"`
	Summary  views.Section[[]views.StatCard]    `json:"summary"`
	Actions  views.Section[[]views.Bar]         `json:"actions"`
	Logs     views.Section[[]views.ActivityRow] `json:"logs"`
	Timeline views.Section[[]views.ActivityRow] `json:"timeline"`
}

// Filterable is implemented by pages whose view can be narrowed by an
// action filter and a search query.
type Filterable interface {
	FilteredView(filter, query string) (any, error)
}

// auditTrail loads the log and its stats as one batch: either both
// commit or both sections show the error.
type auditTrail struct {
	base
	src   Source
	logs  *fetch.Slot[[]core.ActivityRecord]
	stats *fetch.Slot[api.ActivityStats]
}

func newAuditTrail(src Source, opts Options, logger *log.Logger) *auditTrail {
	return &auditTrail{
		base:  newBase(AuditTrailPage, opts, logger),
		src:   src,
		logs:  fetch.NewSlot[[]core.ActivityRecord](),
		stats: fetch.NewSlot[api.ActivityStats](),
	}
}

func (p *auditTrail) Topics() []events.Kind {
	return []events.Kind{events.ExpenseUploaded, events.SettingsUpdated}
}

func (p *auditTrail) Refresh(ctx context.Context) error {
	return p.orch.Joint(ctx,
		fetch.Bind(p.logs, "activity_logs", func(ctx context.Context) ([]core.ActivityRecord, error) {
			return p.src.ListActivities(ctx, auditLogLimit)
		}),
		fetch.Bind(p.stats, "activity_stats", p.src.ActivityStats),
	)
}

func (p *auditTrail) View() any {
	v, _ := p.FilteredView(analytics.FilterAll, "")
	return v
}

// FilteredView narrows the log and the timeline to filter and query. The
// timeline is taken from the newest entries before filtering.
func (p *auditTrail) FilteredView(filter, query string) (any, error) {
	f, err := analytics.ParseActivityFilter(filter)
	if err != nil {
		return nil, err
	}
	logs := p.logs.Snapshot()
	stats := p.stats.Snapshot()
	narrow := func(records []core.ActivityRecord) []core.ActivityRecord {
		out, _ := analytics.FilterActivities(records, f, query)
		return out
	}

	return AuditTrailView{
		Page:    p.name,
		Filter:  f,
		Query:   query,
		Filters: analytics.ActivityFilters,
		Summary: views.Combine(logs, stats, func(_ []core.ActivityRecord, s api.ActivityStats) []views.StatCard {
			return views.ActivityCards(s)
		}),
		Actions: views.Combine(logs, stats, func(_ []core.ActivityRecord, s api.ActivityStats) []views.Bar {
			return views.ActionBars(s.ActionCounts)
		}),
		Logs: views.Combine(logs, stats, func(l []core.ActivityRecord, _ api.ActivityStats) []views.ActivityRow {
			return views.ActivityRows(narrow(l), 0)
		}),
		Timeline: views.Combine(logs, stats, func(l []core.ActivityRecord, _ api.ActivityStats) []views.ActivityRow {
			if len(l) > auditTimelineLimit {
				l = l[:auditTimelineLimit]
			}
			return views.ActivityRows(narrow(l), 0)
		}),
	}, nil
}
