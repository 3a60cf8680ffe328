package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salespipe/internal/config"
	"salespipe/internal/logging"
	"salespipe/internal/service"
	"salespipe/internal/storage"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (optional)")
		watch      = flag.Bool("watch", false, "keep running and execute on configured triggers")
	)
	flag.Parse()

	if err := run(*configPath, *watch); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath string, watch bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	sink, err := logging.NewLogrusSink(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Dir:        cfg.Log.Dir,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer sink.Close()

	db, err := storage.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	svc, err := service.New(cfg, db, sink)
	if err != nil {
		return err
	}
	defer svc.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !watch {
		stats, err := svc.RunOnce(ctx, "manual")
		if stats != nil {
			printSummary(stats.Loaded, stats.Skipped, stats.Errors, stats.Duration)
		}
		return err
	}

	if err := svc.StartTriggers(ctx); err != nil {
		return err
	}
	sink.Emit(logging.Info, "waiting for triggers, press Ctrl+C to stop", nil)

	<-ctx.Done()

	// Let an in-flight run finish before exiting.
	waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	svc.WaitRunning(waitCtx)
	return nil
}

func printSummary(loaded, skipped, errors int, dur time.Duration) {
	fmt.Printf("loaded=%d skipped=%d errors=%d duration=%s\n", loaded, skipped, errors, dur.Round(time.Millisecond))
}
