package www

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angas/spotprice-go/config"
	"github.com/angas/spotprice-go/database"
	"github.com/angas/spotprice-go/hours"
	"github.com/angas/spotprice-go/query"
	"github.com/angas/spotprice-go/snapshot"
	"github.com/angas/spotprice-go/task"
	"github.com/angas/spotprice-go/types"
	ws "github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)

type fakeRunner struct {
	calls atomic.Int32
	res   task.FetchResult
}

func (f *fakeRunner) RunCycle(context.Context) task.FetchResult {
	f.calls.Add(1)
	return f.res
}

type fakeDB struct {
	cycles []database.FetchCycleRow
	logs   []database.LogEntryRow
	err    error
	limit  int
}

func (f *fakeDB) GetFetchCycles(_ context.Context, limit int) ([]database.FetchCycleRow, error) {
	f.limit = limit
	return f.cycles, f.err
}

func (f *fakeDB) GetLogEntries(_ context.Context, _ slog.Level, _, _ int) ([]database.LogEntryRow, error) {
	return f.logs, f.err
}

func testSnapshot() types.Snapshot {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	prices := []string{"10", "5", "20"}
	s := types.Snapshot{Area: "LV", Currency: "EUR", FetchedAt: testNow.Add(-time.Hour)}
	for i, p := range prices {
		// windows at 00:00, 10:00, 20:00
		from := start.Add(time.Duration(i*10) * time.Hour)
		s.Windows = append(s.Windows, types.PriceWindow{Start: from, End: from.Add(time.Hour), Price: decimal.RequireFromString(p)})
	}
	return s
}

func newTestServer(t *testing.T, withData bool, runner *fakeRunner, db *fakeDB) *Server {
	t.Helper()
	store := snapshot.New("", time.UTC)
	if withData {
		store.Replace(testSnapshot())
	}
	if runner == nil {
		runner = &fakeRunner{}
	}
	if db == nil {
		db = &fakeDB{}
	}
	s := NewServer(Deps{
		Store:     store,
		Refresher: runner,
		History:   db,
		Log:       db,
		Metrics:   http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("metrics")) }),
		Location:  time.UTC,
	}, config.AppConfigApi{})
	s.now = func() time.Time { return testNow }
	return s
}

func do(t *testing.T, s *Server, method, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, url, nil))
	return rec
}

func TestPricesWithoutData(t *testing.T) {
	s := newTestServer(t, false, nil, nil)

	for _, url := range []string{"/prices", "/prices/current", "/prices/summary"} {
		t.Run(url, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, url)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.JSONEq(t, `{"error":"No data yet"}`, rec.Body.String())
		})
	}
}

func TestPrices(t *testing.T) {
	s := newTestServer(t, true, nil, nil)

	rec := do(t, s, http.MethodGet, "/prices")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Area      string `json:"area"`
		Currency  string `json:"currency"`
		FetchedAt string `json:"fetched_at"`
		Values    []struct {
			Start string  `json:"start"`
			End   string  `json:"end"`
			Price float64 `json:"price"`
		} `json:"values"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "LV", body.Area)
	assert.Equal(t, "EUR", body.Currency)
	require.Len(t, body.Values, 3)
	assert.Equal(t, "2025-03-01T10:00:00Z", body.Values[1].Start)
	assert.Equal(t, 5.0, body.Values[1].Price)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s, http.MethodPost, "/prices").Code)
}

func TestCurrentPrice(t *testing.T) {
	s := newTestServer(t, true, nil, nil)

	rec := do(t, s, http.MethodGet, "/prices/current")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"area":"LV","currency":"EUR","start":"2025-03-01T10:00:00Z","end":"2025-03-01T11:00:00Z","price":5}`, rec.Body.String())

	s.now = func() time.Time { return testNow.Add(3 * time.Hour) }
	rec = do(t, s, http.MethodGet, "/prices/current")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"No price for current hour"}`, rec.Body.String())
}

func TestSummary(t *testing.T) {
	s := newTestServer(t, true, nil, nil)

	rec := do(t, s, http.MethodGet, "/prices/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var sum map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, "2025-03-01", sum["date"])
	assert.Equal(t, 11.67, sum["average"])
	assert.Equal(t, 3.0, sum["count"])
	assert.Equal(t, 5.0, sum["min"].(map[string]any)["price"])
	assert.Equal(t, 20.0, sum["max"].(map[string]any)["price"])

	rec = do(t, s, http.MethodGet, "/prices/summary?date=2025-03-05")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Nil(t, sum["min"])
	assert.Nil(t, sum["max"])
	assert.Nil(t, sum["average"])
	assert.Equal(t, 0.0, sum["count"])

	rec = do(t, s, http.MethodGet, "/prices/summary?date=01.03.2025")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDataFetch(t *testing.T) {
	fetchedAt := testNow
	ok := &fakeRunner{res: task.FetchResult{Source: "nordpool", Snapshot: types.Snapshot{FetchedAt: fetchedAt}}}
	s := newTestServer(t, false, ok, nil)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := do(t, s, method, "/datafetch")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok","fetched_at":"2025-03-01T10:30:00Z","source":"nordpool"}`, rec.Body.String())
	}
	assert.Equal(t, int32(2), ok.calls.Load())
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s, http.MethodDelete, "/datafetch").Code)

	failing := &fakeRunner{res: task.FetchResult{Err: &types.FetchFailure{Source: "nordpool", Err: errors.New("timeout")}}}
	s = newTestServer(t, false, failing, nil)
	rec := do(t, s, http.MethodPost, "/datafetch")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"fetching prices from nordpool: timeout"}`, rec.Body.String())
}

func TestFetchHistoryAndLog(t *testing.T) {
	db := &fakeDB{
		cycles: []database.FetchCycleRow{{StartedAt: testNow, Source: "nordpool", Status: database.FetchStatusOk, Windows: 24}},
		logs:   []database.LogEntryRow{{Timestamp: testNow, Level: 0, Message: "hello"}},
	}
	s := newTestServer(t, false, nil, db)

	rec := do(t, s, http.MethodGet, "/fetches?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, db.limit)
	assert.Contains(t, rec.Body.String(), `"windows":24`)

	rec = do(t, s, http.MethodGet, "/log?page=2&pageSize=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"page":2`)
	assert.Contains(t, rec.Body.String(), `"message":"hello"`)

	db.err = errors.New("database is locked")
	assert.Equal(t, http.StatusInternalServerError, do(t, s, http.MethodGet, "/fetches").Code)
	assert.Equal(t, http.StatusInternalServerError, do(t, s, http.MethodGet, "/log").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, false, nil, nil)
	rec := do(t, s, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","snapshot_age_sec":null}`, rec.Body.String())

	s = newTestServer(t, true, nil, nil)
	rec = do(t, s, http.MethodGet, "/healthz")
	assert.JSONEq(t, `{"status":"ok","snapshot_age_sec":3600}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/metrics")
	assert.Equal(t, "metrics", rec.Body.String())
}

func TestWebSocketReceivesSummaries(t *testing.T) {
	s := newTestServer(t, true, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartHub(ctx)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	// Published before the client connects, replayed on connect.
	require.NoError(t, s.PublishSummary(query.Summarize(testSnapshot(), testNow, hours.DateOf(testNow))))

	conn, _, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	readSummary := func() map[string]any {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg map[string]any
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "summary", msg["type"])
		return msg["data"].(map[string]any)
	}

	first := readSummary()
	assert.Equal(t, "2025-03-01", first["date"])

	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.PublishSummary(query.Summarize(testSnapshot(), testNow, hours.DateOf(testNow).AddDays(1))))

	second := readSummary()
	assert.Equal(t, "2025-03-02", second["date"])
	assert.Nil(t, second["average"])
}
