package www

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/angas/spotprice-go/database"
)

type HistoryReader interface {
	GetFetchCycles(ctx context.Context, limit int) ([]database.FetchCycleRow, error)
}

type LogReader interface {
	GetLogEntries(ctx context.Context, minLvl slog.Level, page, pageSize int) ([]database.LogEntryRow, error)
}

func NewFetchHistoryHandler(logger *slog.Logger, db HistoryReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !methodAllowed(w, r, http.MethodGet) {
			return
		}

		limit := min(max(intOrDefault(r.URL, "limit", 24), 1), 1000)
		cycles, err := db.GetFetchCycles(r.Context(), limit)
		if err != nil {
			logger.Error("handling fetch history request", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(logger, w, http.StatusOK, cycles)
	}
}

type logResponse struct {
	Page     int                    `json:"page"`
	PageSize int                    `json:"pageSize"`
	Entries  []database.LogEntryRow `json:"entries"`
}

func NewLogHandler(logger *slog.Logger, db LogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !methodAllowed(w, r, http.MethodGet) {
			return
		}

		page := max(intOrDefault(r.URL, "page", 1), 1)
		pageSize := min(max(intOrDefault(r.URL, "pageSize", 25), 1), 500)

		e, err := db.GetLogEntries(r.Context(), slog.LevelDebug, page, pageSize)
		if err != nil {
			logger.Error("handling log request", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(logger, w, http.StatusOK, logResponse{Page: page, PageSize: pageSize, Entries: e})
	}
}
