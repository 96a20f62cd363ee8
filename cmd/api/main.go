package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pixeon-io/pixeon/internal/api"
	"github.com/pixeon-io/pixeon/internal/auth"
	"github.com/pixeon-io/pixeon/internal/config"
	"github.com/pixeon-io/pixeon/internal/database"
	"github.com/pixeon-io/pixeon/internal/detection"
	"github.com/pixeon-io/pixeon/internal/detector"
	"github.com/pixeon-io/pixeon/internal/history"
	"github.com/pixeon-io/pixeon/internal/logging"
	"github.com/pixeon-io/pixeon/internal/storage"
	"github.com/pixeon-io/pixeon/internal/upload"
)

const version = "0.1.0"

// detectorTimeout bounds a single call to the inference service
const detectorTimeout = 60 * time.Second

var configLoad = config.LoadConfig

// initializeAPI wires every service from the configuration. The returned
// close function releases the database.
func initializeAPI(ctx context.Context, configPath string) (*api.Api, func(), error) {
	cfg, err := configLoad(configPath)
	if err != nil {
		return nil, nil, err
	}

	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	db, err := database.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, nil, err
	}

	blobs, err := storage.New(ctx, cfg, log)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	tokens, err := auth.NewTokenManager(cfg.SecretKey, cfg.Algorithm, time.Duration(cfg.AccessTokenExpireMinutes)*time.Minute)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	validator := upload.NewValidator(cfg.MaxFileSizeMB)
	det := detector.New(
		detector.HTTPLoader(cfg.DetectorURL, detectorTimeout),
		detector.Options{Workers: cfg.DetectorWorkers, Concurrent: cfg.DetectorConcurrent},
		log,
	)
	hist := history.NewManager(db, blobs, log)

	a, err := api.NewApi(*cfg, api.Deps{
		Auth:           auth.NewService(db, tokens, log),
		Detection:      detection.NewOrchestrator(validator, det, blobs, hist, log),
		History:        hist,
		Storage:        blobs,
		MaxUploadBytes: validator.MaxBytes(),
	}, log)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	return a, func() { db.Close() }, nil
}

func main() {
	configPath := flag.String("config", "", "Path to an optional YAML configuration file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, closeFn, err := initializeAPI(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}
	defer closeFn()

	slog.Info("starting Pixeon API", "version", version, "port", a.Config.APIPort)

	if err := a.Serve(ctx); err != nil {
		slog.Error("server stopped", "error", err)
		closeFn()
		os.Exit(1)
	}
}
