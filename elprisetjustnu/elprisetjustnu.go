// Package elprisetjustnu reads day-ahead prices for the Swedish areas
// SE1-SE4 from elprisetjustnu.se.
package elprisetjustnu

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/angas/spotprice-go/hours"
	"github.com/angas/spotprice-go/httpx"
	"github.com/angas/spotprice-go/types"
)

const (
	Name       = "elprisetjustnu"
	DefaultURL = "https://www.elprisetjustnu.se"
)

var stockholm = mustLoad("Europe/Stockholm")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

type rawPrice struct {
	SEKPerKWh *float64   `json:"SEK_per_kWh"`
	EURPerKWh *float64   `json:"EUR_per_kWh"`
	EXR       float64    `json:"EXR"`
	TimeStart *time.Time `json:"time_start"`
	TimeEnd   *time.Time `json:"time_end"`
}

type ElPrisetJustNu struct {
	area     string
	currency string
	baseURL  string
	client   *httpx.Client
	now      func() time.Time
}

// New only supports SEK and EUR, anything else is read as EUR.
func New(area, currency string, timeout time.Duration) *ElPrisetJustNu {
	currency = strings.ToUpper(currency)
	if currency != "SEK" {
		currency = "EUR"
	}
	return &ElPrisetJustNu{
		area:     area,
		currency: currency,
		baseURL:  DefaultURL,
		client:   httpx.New(Name, timeout),
		now:      time.Now,
	}
}

func (e *ElPrisetJustNu) Name() string {
	return Name
}

func (e *ElPrisetJustNu) FetchPrices(ctx context.Context) (types.RawSeries, error) {
	today := hours.DateOf(e.now().In(stockholm))

	series := types.RawSeries{Source: Name, Area: e.area, Currency: e.currency}
	for _, date := range []hours.Date{today, today.AddDays(1)} {
		url := fmt.Sprintf("%s/api/v1/prices/%d/%02d-%02d_%s.json",
			e.baseURL, date.Year, date.Month, date.Day, e.area)

		var rawPrices []rawPrice
		found, err := e.client.GetJSON(ctx, url, &rawPrices)
		if err != nil {
			return types.RawSeries{}, &types.FetchFailure{Source: Name, Err: fmt.Errorf("prices for %s: %w", date, err)}
		}
		if !found {
			continue
		}

		for _, raw := range rawPrices {
			series.Records = append(series.Records, types.RawPrice{
				Start: raw.TimeStart,
				End:   raw.TimeEnd,
				Value: e.perMWh(raw),
			})
		}
	}

	return series, nil
}

// perMWh converts the per kWh price to the per MWh unit Nord Pool uses.
func (e *ElPrisetJustNu) perMWh(raw rawPrice) *float64 {
	v := raw.EURPerKWh
	if e.currency == "SEK" {
		v = raw.SEKPerKWh
	}
	if v == nil {
		return nil
	}
	precision := math.Pow(10, float64(4))
	price := math.Round(*v*1e3*precision) / precision
	return &price
}
