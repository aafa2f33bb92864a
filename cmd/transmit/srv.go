package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"transmit/internal/blobstore"
	"transmit/internal/config"
	"transmit/internal/notify"
	"transmit/internal/server"
	"transmit/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the transmit API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}
	if cfg.DBPath == "" {
		return fmt.Errorf("db path is required")
	}

	logger := slog.Default()

	addr, err := server.ListenAddr(cfg.APIURL)
	if err != nil {
		return err
	}

	unlock, err := lockDatabase(cfg.DBPath)
	if err != nil {
		return err
	}
	defer unlock()

	logger.Info("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	bs, err := blobstore.NewLocalCAS(cfg.BlobDir)
	if err != nil {
		return err
	}

	notifier := notify.New(notify.Options{
		KafkaBrokers: cfg.Notify.KafkaBrokers,
		KafkaTopic:   cfg.Notify.KafkaTopic,
		Logger:       logger,
	})
	defer func() {
		if err := notifier.Close(); err != nil {
			logger.Warn("close notifier", "error", err)
		}
	}()

	srv := server.New(addr, st, bs, server.Options{
		DBPath:   cfg.DBPath,
		Config:   *cfg,
		Notifier: notifier,
		Logger:   logger,
	})
	return srv.ListenAndServe(ctx)
}

// lockDatabase takes an exclusive lock next to the database so two servers
// never share one store.
func lockDatabase(dbPath string) (func(), error) {
	lock := flock.New(dbPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("database %s is already served by another transmit process", dbPath)
	}
	return func() { _ = lock.Unlock() }, nil
}
