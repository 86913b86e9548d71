// Package query answers read-side questions against a price snapshot.
// Every function is pure and leaves the snapshot untouched.
package query

import (
	"sort"
	"time"

	"github.com/angas/spotprice-go/hours"
	"github.com/angas/spotprice-go/types"
	"github.com/angas/spotprice-go/types/maybe"
	"github.com/shopspring/decimal"
)

type Extreme int

const (
	Min Extreme = iota
	Max
)

// CurrentWindow returns the window with start <= now < end. None means
// the price is unknown, a coverage gap or no data at all.
func CurrentWindow(s types.Snapshot, now time.Time) maybe.Maybe[types.PriceWindow] {
	windows := s.Windows
	// First window that ends after now.
	i := sort.Search(len(windows), func(i int) bool { return windows[i].End.After(now) })
	if i < len(windows) && windows[i].Contains(now) {
		return maybe.Some(windows[i])
	}
	return maybe.None[types.PriceWindow]()
}

// Extremum selects the cheapest or most expensive window. Ties resolve to
// the earliest window.
func Extremum(windows []types.PriceWindow, which Extreme) maybe.Maybe[types.PriceWindow] {
	if len(windows) == 0 {
		return maybe.None[types.PriceWindow]()
	}
	best := windows[0]
	for _, w := range windows[1:] {
		c := w.Price.Cmp(best.Price)
		if (which == Min && c < 0) || (which == Max && c > 0) {
			best = w
		}
	}
	return maybe.Some(best)
}

// DaySlice returns the windows starting on date, in the zone the snapshot
// instants carry. The result is empty, never nil, when nothing matches.
func DaySlice(s types.Snapshot, date hours.Date) []types.PriceWindow {
	out := make([]types.PriceWindow, 0, 24)
	for _, w := range s.Windows {
		if hours.DateOf(w.Start) == date {
			out = append(out, w)
		}
	}
	return out
}

// Average is the arithmetic mean rounded to two decimals.
func Average(windows []types.PriceWindow) maybe.Maybe[decimal.Decimal] {
	if len(windows) == 0 {
		return maybe.None[decimal.Decimal]()
	}
	sum := decimal.Zero
	for _, w := range windows {
		sum = sum.Add(w.Price)
	}
	return maybe.Some(sum.Div(decimal.NewFromInt(int64(len(windows)))).Round(2))
}

type DaySummary struct {
	Area      string                         `json:"area"`
	Currency  string                         `json:"currency"`
	FetchedAt time.Time                      `json:"fetched_at"`
	Date      string                         `json:"date,omitempty"`
	Current   maybe.Maybe[types.PriceWindow] `json:"current"`
	Min       maybe.Maybe[types.PriceWindow] `json:"min"`
	Max       maybe.Maybe[types.PriceWindow] `json:"max"`
	Average   maybe.Maybe[decimal.Decimal]   `json:"average"`
	Count     int                            `json:"count"`
	Values    []types.PriceWindow            `json:"values"`
}

// Summarize combines the queries a price view needs. The min, max and
// average are scoped to date; a zero date covers the whole snapshot.
func Summarize(s types.Snapshot, now time.Time, date hours.Date) DaySummary {
	windows := s.Windows
	if !date.IsZero() {
		windows = DaySlice(s, date)
	}
	summary := DaySummary{
		Area:      s.Area,
		Currency:  s.Currency,
		FetchedAt: s.FetchedAt,
		Current:   CurrentWindow(s, now),
		Min:       Extremum(windows, Min),
		Max:       Extremum(windows, Max),
		Average:   Average(windows),
		Count:     len(windows),
		Values:    windows,
	}
	if !date.IsZero() {
		summary.Date = date.String()
	}
	return summary
}
