// Command fetch runs a single refresh cycle and prints the resulting
// snapshot, or writes it to the configured store with -persist.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/angas/spotprice-go/config"
	"github.com/angas/spotprice-go/hours"
	"github.com/angas/spotprice-go/snapshot"
	"github.com/angas/spotprice-go/task"
	"github.com/lmittmann/tint"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	persist := flag.Bool("persist", false, "write the snapshot to the configured store file")
	flag.Parse()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.RFC3339Nano,
	}))
	slog.SetDefault(logger)

	cnfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	loc, err := hours.LoadLocation(cnfg.EnergyPrice.Timezone)
	if err != nil {
		logger.Error("failed to load timezone", slog.Any("error", err))
		os.Exit(1)
	}

	sources, err := task.NewSources(cnfg.EnergyPrice)
	if err != nil {
		logger.Error("failed to create price sources", slog.Any("error", err))
		os.Exit(1)
	}

	path := ""
	if *persist {
		path = cnfg.Store.Path
	}
	store := snapshot.New(path, loc)

	res := task.NewRefresher(logger, store, sources, cnfg.EnergyPrice.Area, loc, cnfg.EnergyPrice.GetRequestTimeout()).
		RunCycle(context.Background())
	if !res.Ok() {
		logger.Error("fetch failed", slog.Any("error", res.Err))
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.Snapshot); err != nil {
		logger.Error("failed to write snapshot", slog.Any("error", err))
		os.Exit(1)
	}
}
