package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/angas/spotprice-go/config"
	"github.com/angas/spotprice-go/database"
	"github.com/angas/spotprice-go/hours"
	"github.com/angas/spotprice-go/logging"
	"github.com/angas/spotprice-go/metrics"
	"github.com/angas/spotprice-go/mqtt"
	"github.com/angas/spotprice-go/snapshot"
	"github.com/angas/spotprice-go/task"
	"github.com/angas/spotprice-go/types"
	"github.com/angas/spotprice-go/www"
	"github.com/lmittmann/tint"
)

var Version = "?.?.?"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		} else {
			slog.Default().Info("application is shutting down...")
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	loc, err := hours.LoadLocation(cnfg.EnergyPrice.Timezone)
	if err != nil {
		panic(fmt.Sprintf("failed to load timezone: %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	consoleHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      cnfg.Logging.GetConsoleLevel(),
		TimeFormat: time.RFC3339,
	})
	slog.New(consoleHandler).Debug("spotprice is starting...", slog.String("version", Version))

	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to connect to database: %v", err))
	}
	defer db.Close()

	logger := slog.New(logging.NewMultiHandler(
		consoleHandler,
		logging.NewSQLiteHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
	slog.SetDefault(logger)

	// Now we can use the logger to log database operations into the database itself
	db.SetLogger(logger.With("module", "database"))

	store := snapshot.New(cnfg.Store.Path, loc)
	store.SetLogger(logger.With("module", "snapshot"))
	if err := store.Load(); err != nil {
		if errors.Is(err, types.ErrNotYetFetched) {
			logger.Info("no snapshot on disk yet", slog.String("path", cnfg.Store.Path))
		} else {
			logger.Error("failed to load snapshot, starting empty", slog.Any("error", err))
		}
	}
	if cnfg.Store.Watch && cnfg.Store.Path != "" {
		go func() {
			if err := store.Watch(ctx); err != nil {
				logger.Error("snapshot watch stopped", slog.Any("error", err))
			}
		}()
	}

	sources, err := task.NewSources(cnfg.EnergyPrice)
	if err != nil {
		panic(fmt.Sprintf("failed to create price sources: %v", err))
	}

	recorder := metrics.New()
	refresher := task.NewRefresher(
		logger.With("module", "refresher"),
		store,
		sources,
		cnfg.EnergyPrice.Area,
		loc,
		cnfg.EnergyPrice.GetRequestTimeout())
	refresher.SetHistory(db)
	refresher.SetMetrics(recorder)

	server := www.NewServer(www.Deps{
		Store:     store,
		Refresher: refresher,
		History:   db,
		Log:       db,
		Metrics:   recorder.Handler(),
		Location:  loc,
	}, cnfg.Api)

	publishers := []task.SummaryPublisher{server}
	if cnfg.Mqtt.Enabled {
		publisher := mqtt.New(mqtt.Options{
			Host:        cnfg.Mqtt.Host,
			Port:        cnfg.Mqtt.Port,
			Username:    cnfg.Mqtt.Username,
			Password:    cnfg.Mqtt.Password,
			ClientId:    cnfg.Mqtt.ClientId,
			TopicPrefix: cnfg.Mqtt.TopicPrefix,
		})
		if err := publisher.Connect(); err != nil {
			logger.Error("MQTT connection error", slog.Any("error", err))
		}
		defer publisher.Close()
		publishers = append(publishers, publisher)
	}

	tasks := task.NewTasks(db, store, loc, recorder, cnfg, publishers...)
	store.Subscribe(func(types.Snapshot) { go tasks.PublishTask() })
	tasks.Run()
	defer tasks.Stop()

	if cnfg.EnergyPrice.Periodic {
		if err := refresher.StartPeriodic(cnfg.EnergyPrice.GetFetchInterval()); err != nil {
			panic(fmt.Sprintf("failed to start periodic refresh: %v", err))
		}
		defer refresher.Stop()
	} else {
		logger.Info("periodic refresh disabled, use /datafetch")
	}

	if err := server.Run(ctx); err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
	}
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}
	time.Sleep(2 * time.Second)
	os.Exit(1)
}
