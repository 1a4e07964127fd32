package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"SchoolPayments/internal/config"
	"SchoolPayments/internal/db"
	"SchoolPayments/internal/store"
	"SchoolPayments/internal/worker"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found")
	}

	cfg, err := config.Load("")
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	if cfg.DB.Driver != config.DriverPostgres {
		slog.Error("orphan sweep needs the postgres store", "driver", cfg.DB.Driver)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		slog.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	w := &worker.Worker{
		Store:       store.New(pool),
		Interval:    cfg.SweepInterval(),
		OrphanAfter: cfg.OrphanAfter(),
	}

	slog.Info("orphan sweep started", "interval", w.Interval.String(), "orphan_after", w.OrphanAfter.String())
	w.Run(ctx)
}
