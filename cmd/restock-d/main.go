package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rmax-ai/restock/pkg/api"
	"github.com/rmax-ai/restock/pkg/blob"
	"github.com/rmax-ai/restock/pkg/engine"
	"github.com/rmax-ai/restock/pkg/engine/forecast"
	"github.com/rmax-ai/restock/pkg/logger"
	"github.com/rmax-ai/restock/pkg/notify"
	"github.com/rmax-ai/restock/pkg/store"
	redisstore "github.com/rmax-ai/restock/pkg/store/redis"
)

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "restock-d: %v\n", err)
		os.Exit(2)
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogEnv); err != nil {
		fmt.Fprintf(os.Stderr, "restock-d: failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get().With("component", "restock-d")

	log.Infow("system_started", "storage", cfg.Storage, "prediction", cfg.Prediction)

	items, closer, err := openStore(cfg)
	if err != nil {
		log.Fatalw("failed_to_init_store", "error", err)
	}
	log.Infow("store_initialized", "storage", cfg.Storage)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.BackupDir != "" {
		blobs := blob.NewLocalBlobStore(cfg.BackupDir)
		if cfg.Restore {
			if err := restoreLatest(ctx, blobs, items, log); err != nil {
				log.Fatalw("failed_to_restore_snapshot", "error", err)
			}
		}
		snapshots := engine.NewSnapshotWorker(items, blobs, cfg.BackupInterval, cfg.BackupKeep)
		snapshots.SetLogger(log)
		go snapshots.Run(ctx)
	}

	predictor := forecast.NewPredictor(forecast.Capability(cfg.Prediction))
	predictor.SetLogger(log.SugaredLogger)

	inv := engine.NewInventory(items, predictor)
	inv.SetLogger(log)
	inv.SetCheckThreshold(cfg.CheckDays)
	inv.SetShortcut(cfg.Shortcut)

	if cfg.SMSKey != "" {
		d := engine.NewDispatcher(items, notify.NewTextbeltSender(cfg.SMSKey, cfg.SMSURL), cfg.AlertCooldown)
		d.SetDefaultPhone(cfg.SMSPhone)
		d.SetLanguage(cfg.SMSLanguage)
		d.SetLogger(log)
		inv.SetDispatcher(d)
		log.Infow("sms_alerts_enabled", "cooldown", cfg.AlertCooldown.String())
	} else {
		log.Infow("sms_alerts_disabled")
	}

	poller := engine.NewPoller(inv, cfg.PollInterval)
	poller.SetLogger(log)
	go poller.Start(ctx)

	srv := api.NewServer(inv, cfg.Addr)
	srv.SetLogger(log)
	srv.SetAuthToken(cfg.APIToken)
	srv.SetCheckThreshold(cfg.CheckDays)
	srv.SetTLS(cfg.TLSCert, cfg.TLSKey)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Handle SIGINT/SIGTERM for graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		log.Infow("shutdown_initiated", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Errorw("server_failed", "error", err)
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Errorw("failed_to_stop_server", "error", err)
	}

	if err := closer.Close(); err != nil {
		log.Errorw("failed_to_close_store", "error", err)
	} else {
		log.Infow("store_closed")
	}
	log.Infow("shutdown_complete")
}

// restoreLatest recreates missing items from the newest snapshot. Having no
// snapshot yet is not an error.
func restoreLatest(ctx context.Context, blobs blob.BlobStore, items engine.ItemStore, log *logger.Logger) error {
	key, err := engine.LatestSnapshot(ctx, blobs)
	if errors.Is(err, engine.ErrNoSnapshot) {
		log.Infow("no_snapshot_to_restore")
		return nil
	}
	if err != nil {
		return err
	}
	n, err := engine.RestoreSnapshot(ctx, blobs, key, items)
	if err != nil {
		return err
	}
	log.Infow("snapshot_restored", "key", key, "items", n)
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openStore builds the configured item store.
func openStore(cfg Config) (engine.ItemStore, io.Closer, error) {
	switch cfg.Storage {
	case "memory":
		return engine.NewMemoryItemStore(), nopCloser{}, nil
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		return redisstore.NewItemStore(rdb), rdb, nil
	default:
		st, err := store.NewStore(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	}
}
