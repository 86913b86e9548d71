package nordpool

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/angas/spotprice-go/hours"
	"github.com/angas/spotprice-go/httpx"
	"github.com/angas/spotprice-go/types"
)

const (
	Name       = "nordpool"
	DefaultURL = "https://dataportal-api.nordpoolgroup.com"
)

// Day-ahead delivery days follow the CET calendar.
var cet = mustLoad("CET")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Nordpool struct {
	area     string
	currency string
	endpoint string
	client   *httpx.Client
	now      func() time.Time
}

func New(area, currency, endpoint string, timeout time.Duration) *Nordpool {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	return &Nordpool{
		area:     area,
		currency: currency,
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   httpx.New(Name, timeout),
		now:      time.Now,
	}
}

func (n *Nordpool) Name() string {
	return Name
}

// FetchPrices returns today's and, when already published, tomorrow's
// hourly prices.
func (n *Nordpool) FetchPrices(ctx context.Context) (types.RawSeries, error) {
	today := hours.DateOf(n.now().In(cet))

	series := types.RawSeries{Source: Name, Area: n.area, Currency: n.currency}
	for _, date := range []hours.Date{today, today.AddDays(1)} {
		data, found, err := n.fetchDay(ctx, date)
		if err != nil {
			return types.RawSeries{}, &types.FetchFailure{Source: Name, Err: fmt.Errorf("prices for %s: %w", date, err)}
		}
		if !found {
			continue
		}
		if data.Currency != "" {
			series.Currency = data.Currency
		}
		if data.UpdatedAt != nil && (series.Updated == nil || data.UpdatedAt.After(*series.Updated)) {
			series.Updated = data.UpdatedAt
		}
		for _, entry := range data.MultiIndexEntries {
			series.Records = append(series.Records, types.RawPrice{
				Start: entry.DeliveryStart,
				End:   entry.DeliveryEnd,
				Value: entry.EntryPerArea[n.area],
			})
		}
	}

	return series, nil
}

func (n *Nordpool) fetchDay(ctx context.Context, date hours.Date) (dayAheadIndices, bool, error) {
	q := url.Values{}
	q.Set("date", date.String())
	q.Set("market", "DayAhead")
	q.Set("indexNames", n.area)
	q.Set("currency", n.currency)
	q.Set("resolutionInMinutes", "60")

	var data dayAheadIndices
	found, err := n.client.GetJSON(ctx, n.endpoint+"/api/DayAheadPriceIndices?"+q.Encode(), &data)
	if err != nil {
		return dayAheadIndices{}, false, err
	}
	return data, found, nil
}
