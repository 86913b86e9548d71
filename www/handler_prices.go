package www

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/angas/spotprice-go/hours"
	"github.com/angas/spotprice-go/query"
	"github.com/angas/spotprice-go/types"
)

type SnapshotReader interface {
	Current() (types.Snapshot, error)
}

// currentSnapshot writes the error response itself when ok is false.
func currentSnapshot(logger *slog.Logger, w http.ResponseWriter, store SnapshotReader) (types.Snapshot, bool) {
	snap, err := store.Current()
	if errors.Is(err, types.ErrNotYetFetched) {
		writeError(logger, w, http.StatusNotFound, "No data yet")
		return types.Snapshot{}, false
	}
	if err != nil {
		logger.Error("reading snapshot", slog.Any("error", err))
		writeError(logger, w, http.StatusInternalServerError, err.Error())
		return types.Snapshot{}, false
	}
	return snap, true
}

func NewPricesHandler(logger *slog.Logger, store SnapshotReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !methodAllowed(w, r, http.MethodGet) {
			return
		}
		snap, ok := currentSnapshot(logger, w, store)
		if !ok {
			return
		}
		writeJSON(logger, w, http.StatusOK, snap)
	}
}

type currentPrice struct {
	Area     string `json:"area"`
	Currency string `json:"currency"`
	types.PriceWindow
}

func NewCurrentPriceHandler(logger *slog.Logger, store SnapshotReader, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !methodAllowed(w, r, http.MethodGet) {
			return
		}
		snap, ok := currentSnapshot(logger, w, store)
		if !ok {
			return
		}

		window, found := query.CurrentWindow(snap, now()).Get()
		if !found {
			writeError(logger, w, http.StatusNotFound, "No price for current hour")
			return
		}
		writeJSON(logger, w, http.StatusOK, currentPrice{Area: snap.Area, Currency: snap.Currency, PriceWindow: window})
	}
}

// NewSummaryHandler answers for ?date=YYYY-MM-DD, today in loc when absent.
func NewSummaryHandler(logger *slog.Logger, store SnapshotReader, loc *time.Location, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !methodAllowed(w, r, http.MethodGet) {
			return
		}

		t := now().In(loc)
		date := hours.DateOf(t)
		if v := r.URL.Query().Get("date"); v != "" {
			d, err := hours.ParseDate(v)
			if err != nil {
				writeError(logger, w, http.StatusBadRequest, err.Error())
				return
			}
			date = d
		}

		snap, ok := currentSnapshot(logger, w, store)
		if !ok {
			return
		}
		writeJSON(logger, w, http.StatusOK, query.Summarize(snap, t, date))
	}
}
