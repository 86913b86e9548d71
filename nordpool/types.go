package nordpool

import "time"

// dayAheadIndices is the answer of /api/DayAheadPriceIndices. Prices are
// per MWh and null where the auction has no result for the area.
type dayAheadIndices struct {
	DeliveryDateCET     string       `json:"deliveryDateCET"`
	UpdatedAt           *time.Time   `json:"updatedAt"`
	Market              string       `json:"market"`
	IndexNames          []string     `json:"indexNames"`
	Currency            string       `json:"currency"`
	ResolutionInMinutes int          `json:"resolutionInMinutes"`
	MultiIndexEntries   []indexEntry `json:"multiIndexEntries"`
}

type indexEntry struct {
	DeliveryStart *time.Time          `json:"deliveryStart"`
	DeliveryEnd   *time.Time          `json:"deliveryEnd"`
	EntryPerArea  map[string]*float64 `json:"entryPerArea"`
}
