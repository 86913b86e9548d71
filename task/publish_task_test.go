package task

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/angas/spotprice-go/hours"
	"github.com/angas/spotprice-go/query"
	"github.com/angas/spotprice-go/snapshot"
	"github.com/angas/spotprice-go/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu        sync.Mutex
	summaries []query.DaySummary
}

func (p *fakePublisher) PublishSummary(sum query.DaySummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summaries = append(p.summaries, sum)
	return nil
}

type fakePriceRecorder struct {
	price   float64
	known   bool
	cleared bool
}

func (r *fakePriceRecorder) RecordCurrentPrice(_, _ string, price float64) {
	r.price = price
	r.known = true
}

func (r *fakePriceRecorder) ClearCurrentPrice(_, _ string) {
	r.cleared = true
}

func TestPublishTaskWithoutSnapshot(t *testing.T) {
	store := snapshot.New("", time.UTC)
	pub := &fakePublisher{}

	NewPublishTask(slog.Default(), store, time.UTC, nil, pub)()
	assert.Empty(t, pub.summaries)
}

func TestPublishTaskCurrentWindow(t *testing.T) {
	store := snapshot.New("", time.UTC)
	start := hours.StartOfHour(time.Now().UTC())
	store.Replace(types.Snapshot{
		Area:      "LV",
		Currency:  "EUR",
		FetchedAt: start,
		Windows: []types.PriceWindow{
			{Start: start, End: start.Add(time.Hour), Price: decimal.RequireFromString("42.5")},
		},
	})

	pub := &fakePublisher{}
	rec := &fakePriceRecorder{}
	NewPublishTask(slog.Default(), store, time.UTC, rec, pub)()

	require.Len(t, pub.summaries, 1)
	w, ok := pub.summaries[0].Current.Get()
	require.True(t, ok)
	assert.Equal(t, "42.5", w.Price.String())
	assert.True(t, rec.known)
	assert.Equal(t, 42.5, rec.price)
}

func TestPublishTaskUnknownCurrentWindow(t *testing.T) {
	store := snapshot.New("", time.UTC)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	store.Replace(types.Snapshot{
		Area:     "LV",
		Currency: "EUR",
		Windows: []types.PriceWindow{
			{Start: start, End: start.Add(time.Hour), Price: decimal.NewFromInt(1)},
		},
	})

	pub := &fakePublisher{}
	rec := &fakePriceRecorder{}
	NewPublishTask(slog.Default(), store, time.UTC, rec, pub)()

	require.Len(t, pub.summaries, 1)
	assert.False(t, pub.summaries[0].Current.IsValid())
	assert.True(t, rec.cleared)
	assert.False(t, rec.known)
}
