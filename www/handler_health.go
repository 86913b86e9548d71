package www

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/angas/spotprice-go/types/maybe"
)

type healthResponse struct {
	Status         string             `json:"status"`
	SnapshotAgeSec maybe.Maybe[int64] `json:"snapshot_age_sec"`
}

// NewHealthHandler reports 200 as long as the process serves requests, a
// missing snapshot shows as a null age.
func NewHealthHandler(logger *slog.Logger, store SnapshotReader, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := healthResponse{Status: "ok"}
		if snap, err := store.Current(); err == nil {
			res.SnapshotAgeSec = maybe.Some(int64(now().Sub(snap.FetchedAt).Seconds()))
		}
		writeJSON(logger, w, http.StatusOK, res)
	}
}
