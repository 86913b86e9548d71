package types

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Consumers expect plain JSON numbers for prices.
	decimal.MarshalJSONWithoutQuotes = true
}

// RawPrice is one upstream record. Any field may be missing.
type RawPrice struct {
	Start *time.Time
	End   *time.Time
	Value *float64
}

// RawSeries is the unprocessed answer of a price source.
type RawSeries struct {
	Source   string
	Area     string
	Currency string
	Updated  *time.Time
	Records  []RawPrice
}

type PriceSource interface {
	Name() string
	FetchPrices(ctx context.Context) (RawSeries, error)
}

// PriceWindow is one hour long price interval [Start, End).
type PriceWindow struct {
	Start time.Time       `json:"start"`
	End   time.Time       `json:"end"`
	Price decimal.Decimal `json:"price"`
}

func (w PriceWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Snapshot is the complete normalized series of one successful fetch cycle.
// It is never mutated after creation.
type Snapshot struct {
	Area      string        `json:"area"`
	Currency  string        `json:"currency"`
	FetchedAt time.Time     `json:"fetched_at"`
	Windows   []PriceWindow `json:"values"`
}

// Equal compares two snapshots by value, instants are compared as instants.
func (s Snapshot) Equal(other Snapshot) bool {
	if s.Area != other.Area || s.Currency != other.Currency || !s.FetchedAt.Equal(other.FetchedAt) {
		return false
	}
	if len(s.Windows) != len(other.Windows) {
		return false
	}
	for i, w := range s.Windows {
		o := other.Windows[i]
		if !w.Start.Equal(o.Start) || !w.End.Equal(o.End) || !w.Price.Equal(o.Price) {
			return false
		}
	}
	return true
}

// In returns a copy with every instant expressed in loc.
func (s Snapshot) In(loc *time.Location) Snapshot {
	windows := make([]PriceWindow, len(s.Windows))
	for i, w := range s.Windows {
		windows[i] = PriceWindow{Start: w.Start.In(loc), End: w.End.In(loc), Price: w.Price}
	}
	s.FetchedAt = s.FetchedAt.In(loc)
	s.Windows = windows
	return s
}
