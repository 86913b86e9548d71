package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/angas/spotprice-go/config"
	"github.com/angas/spotprice-go/database"
	"github.com/angas/spotprice-go/snapshot"
	"github.com/robfig/cron/v3"
)

type Tasks struct {
	cron            *cron.Cron
	PublishTask     func()
	MaintenanceTask func()
}

func NewTasks(
	db *database.Database,
	store *snapshot.Store,
	loc *time.Location,
	recorder CurrentPriceRecorder,
	cnfg *config.AppConfig,
	publishers ...SummaryPublisher,
) *Tasks {
	logger := slog.Default().With("module", "tasks")
	return &Tasks{
		cron:            cron.New(),
		PublishTask:     NewPublishTask(logger.With(slog.String("task", "publish")), store, loc, recorder, publishers...),
		MaintenanceTask: NewMaintenanceTask(logger.With(slog.String("task", "maintenance")), db, cnfg),
	}
}

func (t *Tasks) Run() {
	_, err := t.cron.AddFunc("@hourly", t.PublishTask)
	if err != nil {
		panic(err)
	}
	_, err = t.cron.AddFunc("30 2 * * *", t.MaintenanceTask)
	if err != nil {
		panic(err)
	}
	t.cron.Start()
}

func (t *Tasks) Stop() context.Context {
	return t.cron.Stop()
}
