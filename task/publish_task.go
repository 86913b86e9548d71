package task

import (
	"errors"
	"log/slog"
	"time"

	"github.com/angas/spotprice-go/hours"
	"github.com/angas/spotprice-go/query"
	"github.com/angas/spotprice-go/snapshot"
	"github.com/angas/spotprice-go/types"
)

type SummaryPublisher interface {
	PublishSummary(sum query.DaySummary) error
}

type CurrentPriceRecorder interface {
	RecordCurrentPrice(area, currency string, price float64)
	ClearCurrentPrice(area, currency string)
}

// NewPublishTask pushes today's summary with the current window to every
// publisher. It runs hourly and after each new snapshot.
func NewPublishTask(
	logger *slog.Logger,
	store *snapshot.Store,
	loc *time.Location,
	recorder CurrentPriceRecorder,
	publishers ...SummaryPublisher,
) func() {
	return func() {
		logger.Debug("running publish task...")

		snap, err := store.Current()
		if errors.Is(err, types.ErrNotYetFetched) {
			logger.Debug("nothing to publish, no snapshot yet")
			return
		}

		now := time.Now().In(loc)
		sum := query.Summarize(snap, now, hours.DateOf(now))

		if recorder != nil {
			if w, ok := sum.Current.Get(); ok {
				recorder.RecordCurrentPrice(snap.Area, snap.Currency, w.Price.InexactFloat64())
			} else {
				recorder.ClearCurrentPrice(snap.Area, snap.Currency)
			}
		}

		for _, p := range publishers {
			if err := p.PublishSummary(sum); err != nil {
				logger.Error("publish task error", slog.Any("error", err))
			}
		}

		logger.Info("publish task done", slog.Bool("currentKnown", sum.Current.IsValid()))
	}
}
