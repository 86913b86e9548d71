package www

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/angas/spotprice-go/task"
)

type CycleRunner interface {
	RunCycle(ctx context.Context) task.FetchResult
}

type fetchResponse struct {
	Status    string     `json:"status"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
	Source    string     `json:"source,omitempty"`
	Message   string     `json:"message,omitempty"`
}

// NewFetchHandler triggers a refresh cycle and answers with its outcome.
// A request arriving during a running cycle gets that cycle's result.
func NewFetchHandler(logger *slog.Logger, runner CycleRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !methodAllowed(w, r, http.MethodGet, http.MethodPost) {
			return
		}

		res := runner.RunCycle(r.Context())
		if !res.Ok() {
			logger.Warn("fetch request failed", slog.Any("error", res.Err))
			writeJSON(logger, w, http.StatusBadGateway, fetchResponse{Status: "error", Message: res.Err.Error()})
			return
		}

		fetchedAt := res.Snapshot.FetchedAt
		writeJSON(logger, w, http.StatusOK, fetchResponse{Status: "ok", FetchedAt: &fetchedAt, Source: res.Source})
	}
}
