package alerting

import (
	"time"

	"github.com/gridview-ops/gridview-alert-go/internal/query"
)

// XPick is a symbolic selector for the aggregation's time/enumeration window
type XPick string

const (
	XPickToday     XPick = "today"
	XPickYesterday XPick = "yesterday"
	XPickThisMonth XPick = "this_month"
	XPickRange     XPick = "range"
	XPickCustom    XPick = "custom"
	XPickLast      XPick = "last"
	XPickMin       XPick = "min"
	XPickMax       XPick = "max"
)

const dateLayout = "2006-01-02"

// WindowInput names the X-axis selection to resolve against a field
type WindowInput struct {
	Pick  XPick  `json:"pick"`
	Field string `json:"field"`
	From  string `json:"from,omitempty"`  // range lower bound, inclusive
	To    string `json:"to,omitempty"`    // range upper bound, inclusive as entered
	Value string `json:"value,omitempty"` // custom equality value
}

// ResolveWindow converts a symbolic X pick into concrete filter predicates.
// Date arithmetic uses local calendar days formatted as YYYY-MM-DD. The
// last/min/max picks resolve inside the aggregation layer and yield no
// filters here.
func ResolveWindow(in WindowInput, now time.Time) []query.Filter {
	if in.Field == "" {
		return nil
	}

	day := startOfDay(now)

	switch in.Pick {
	case XPickToday:
		// Cumulative as-of window: upper bound only
		return []query.Filter{
			{Field: in.Field, Op: query.FilterOpLt, Value: day.AddDate(0, 0, 1).Format(dateLayout)},
		}

	case XPickYesterday:
		return []query.Filter{
			{Field: in.Field, Op: query.FilterOpGte, Value: day.AddDate(0, 0, -1).Format(dateLayout)},
			{Field: in.Field, Op: query.FilterOpLt, Value: day.Format(dateLayout)},
		}

	case XPickThisMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return []query.Filter{
			{Field: in.Field, Op: query.FilterOpGte, Value: first.Format(dateLayout)},
			{Field: in.Field, Op: query.FilterOpLt, Value: first.AddDate(0, 1, 0).Format(dateLayout)},
		}

	case XPickRange:
		var filters []query.Filter
		if in.From != "" {
			filters = append(filters, query.Filter{Field: in.Field, Op: query.FilterOpGte, Value: in.From})
		}
		if in.To != "" {
			// The entered end date is inclusive; increment it to make the
			// interval half-open
			if to, err := time.ParseInLocation(dateLayout, in.To, now.Location()); err == nil {
				filters = append(filters, query.Filter{
					Field: in.Field,
					Op:    query.FilterOpLt,
					Value: to.AddDate(0, 0, 1).Format(dateLayout),
				})
			}
		}
		return filters

	case XPickCustom:
		if in.Value == "" {
			return nil
		}
		return []query.Filter{
			{Field: in.Field, Op: query.FilterOpEq, Value: in.Value},
		}

	default:
		// last/min/max and unknown picks are pass-through
		return nil
	}
}

// PreFiltered reports whether the aggregation query already applies the
// window for this pick, so the matcher must not filter a second time.
func PreFiltered(pick XPick) bool {
	switch pick {
	case XPickToday, XPickYesterday, XPickThisMonth, XPickRange:
		return true
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
