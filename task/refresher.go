package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/angas/spotprice-go/database"
	"github.com/angas/spotprice-go/metrics"
	"github.com/angas/spotprice-go/normalize"
	"github.com/angas/spotprice-go/snapshot"
	"github.com/angas/spotprice-go/types"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

// FetchResult is the outcome of one refresh cycle. Snapshot is only set
// when Err is nil.
type FetchResult struct {
	Snapshot  types.Snapshot
	Source    string
	StartedAt time.Time
	Duration  time.Duration
	Err       error
}

func (r FetchResult) Ok() bool {
	return r.Err == nil
}

type FetchHistory interface {
	SaveFetchCycle(ctx context.Context, r database.FetchCycleRow) error
}

type CycleRecorder interface {
	RecordCycle(source, result string, d time.Duration)
	RecordSnapshot(windows int)
}

// Refresher runs fetch cycles: fetch, normalize, replace, persist. Only a
// successful cycle touches the store, a failed one leaves the previous
// snapshot in place.
type Refresher struct {
	logger  *slog.Logger
	store   *snapshot.Store
	sources []types.PriceSource
	area    string
	loc     *time.Location
	timeout time.Duration
	history FetchHistory
	metrics CycleRecorder
	now     func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	cron    *cron.Cron
	running sync.WaitGroup
}

func NewRefresher(
	logger *slog.Logger,
	store *snapshot.Store,
	sources []types.PriceSource,
	area string,
	loc *time.Location,
	timeout time.Duration,
) *Refresher {
	if len(sources) == 0 {
		panic("no energy price sources")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Refresher{
		logger:  logger,
		store:   store,
		sources: sources,
		area:    area,
		loc:     loc,
		timeout: timeout,
		now:     time.Now,
	}
}

func (r *Refresher) SetHistory(h FetchHistory) {
	r.history = h
}

func (r *Refresher) SetMetrics(m CycleRecorder) {
	r.metrics = m
}

// RunCycle runs a cycle, or joins the one already in flight and returns
// its result. The cycle itself is detached from ctx so a caller giving up
// does not abort it for the others.
func (r *Refresher) RunCycle(ctx context.Context) FetchResult {
	ch := r.group.DoChan("cycle", func() (any, error) {
		return r.cycle(context.WithoutCancel(ctx)), nil
	})

	select {
	case res := <-ch:
		return res.Val.(FetchResult)
	case <-ctx.Done():
		return FetchResult{StartedAt: r.now(), Err: ctx.Err()}
	}
}

func (r *Refresher) cycle(ctx context.Context) FetchResult {
	r.logger.Debug("running refresh cycle...")
	res := FetchResult{StartedAt: r.now()}

	var errs []error
	for _, src := range r.sources {
		res.Source = src.Name()
		snap, err := r.fetch(ctx, src)
		if err != nil {
			r.logger.Warn("refresh cycle, source failed", slog.String("source", src.Name()), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		res.Snapshot = snap
		errs = nil
		break
	}
	res.Duration = r.now().Sub(res.StartedAt)

	if len(errs) > 0 {
		res.Err = errors.Join(errs...)
		r.logger.Error("refresh cycle failed, keeping previous snapshot", slog.Any("error", res.Err))
		r.record(ctx, res)
		return res
	}

	r.store.Replace(res.Snapshot)
	if err := r.store.Persist(); err != nil {
		r.logger.Error("refresh cycle, persisting snapshot", slog.Any("error", err))
	}
	r.record(ctx, res)

	r.logger.Info("refresh cycle done",
		slog.String("source", res.Source),
		slog.Int("noOfWindows", len(res.Snapshot.Windows)),
		slog.Duration("duration", res.Duration))
	return res
}

func (r *Refresher) fetch(ctx context.Context, src types.PriceSource) (types.Snapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := src.FetchPrices(fetchCtx)
	if err != nil {
		var failure *types.FetchFailure
		if !errors.As(err, &failure) {
			err = &types.FetchFailure{Source: src.Name(), Err: err}
		}
		return types.Snapshot{}, err
	}

	snap, err := normalize.Normalize(raw, r.area, r.loc, r.now())
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("%s: %w", src.Name(), err)
	}
	return snap, nil
}

func (r *Refresher) record(ctx context.Context, res FetchResult) {
	result := metrics.ResultOk
	if !res.Ok() {
		result = metrics.ResultError
	}

	if r.metrics != nil {
		r.metrics.RecordCycle(res.Source, result, res.Duration)
		if res.Ok() {
			r.metrics.RecordSnapshot(len(res.Snapshot.Windows))
		}
	}

	if r.history == nil {
		return
	}
	row := database.FetchCycleRow{
		StartedAt: res.StartedAt,
		Duration:  res.Duration,
		Source:    res.Source,
		Status:    database.FetchStatusOk,
	}
	if res.Ok() {
		fetchedAt := res.Snapshot.FetchedAt
		row.FetchedAt = &fetchedAt
		row.Windows = len(res.Snapshot.Windows)
	} else {
		row.Status = database.FetchStatusError
		row.Message = res.Err.Error()
	}

	dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.history.SaveFetchCycle(dbCtx, row); err != nil {
		r.logger.Error("refresh cycle, saving history", slog.Any("error", err))
	}
}

// StartPeriodic runs a cycle right away and then every interval.
func (r *Refresher) StartPeriodic(interval time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		return errors.New("periodic refresh already started")
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), r.runScheduled); err != nil {
		return fmt.Errorf("scheduling refresh every %s: %w", interval, err)
	}
	r.cron = c

	r.running.Add(1)
	go func() {
		defer r.running.Done()
		r.runScheduled()
	}()
	c.Start()

	r.logger.Info("periodic refresh started", slog.Duration("interval", interval))
	return nil
}

func (r *Refresher) runScheduled() {
	r.RunCycle(context.Background())
}

// Stop halts the timer and waits for a running cycle to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	r.running.Wait()
}
