// Package normalize turns an upstream price series into a canonical,
// zone-correct hourly snapshot.
package normalize

import (
	"cmp"
	"slices"
	"time"

	"github.com/angas/spotprice-go/types"
	"github.com/shopspring/decimal"
)

const (
	WindowLength    = time.Hour
	DefaultCurrency = "EUR"
)

type indexedWindow struct {
	types.PriceWindow
	index int
}

// Normalize validates the raw records and converts them into hourly
// windows in loc. Records without start or price are discarded, the
// upstream end is ignored and rebuilt as start + 1h. When two records
// share a start the later one in input order wins. A record starting
// inside the previous window is dropped so windows never overlap.
func Normalize(raw types.RawSeries, area string, loc *time.Location, fetchedAt time.Time) (types.Snapshot, error) {
	if loc == nil {
		loc = time.UTC
	}

	windows := make([]indexedWindow, 0, len(raw.Records))
	for i, r := range raw.Records {
		if r.Start == nil || r.Start.IsZero() || r.Value == nil {
			continue
		}
		start := r.Start.In(loc)
		windows = append(windows, indexedWindow{
			PriceWindow: types.PriceWindow{
				Start: start,
				End:   start.Add(WindowLength),
				Price: decimal.NewFromFloat(*r.Value),
			},
			index: i,
		})
	}

	if len(windows) == 0 {
		return types.Snapshot{}, &types.NormalizeFailure{Reason: types.NormalizeReasonEmpty}
	}

	slices.SortFunc(windows, func(a, b indexedWindow) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.index, b.index)
	})

	out := make([]types.PriceWindow, 0, len(windows))
	for _, w := range windows {
		if n := len(out); n > 0 {
			last := out[n-1]
			if w.Start.Equal(last.Start) {
				out[n-1] = w.PriceWindow
				continue
			}
			if w.Start.Before(last.End) {
				continue
			}
		}
		out = append(out, w.PriceWindow)
	}

	currency := raw.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	return types.Snapshot{
		Area:      area,
		Currency:  currency,
		FetchedAt: fetchedAt.In(loc),
		Windows:   out,
	}, nil
}

// Validate checks the snapshot invariants: at least one window, hour long
// windows, strictly increasing and non-overlapping.
func Validate(s types.Snapshot) error {
	if len(s.Windows) == 0 {
		return &types.NormalizeFailure{Reason: types.NormalizeReasonEmpty}
	}
	for i, w := range s.Windows {
		if !w.End.Equal(w.Start.Add(WindowLength)) {
			return &types.NormalizeFailure{Reason: "window " + w.Start.Format(time.RFC3339) + " is not one hour long"}
		}
		if i > 0 && w.Start.Before(s.Windows[i-1].End) {
			return &types.NormalizeFailure{Reason: "window " + w.Start.Format(time.RFC3339) + " is out of order or overlapping"}
		}
	}
	return nil
}
