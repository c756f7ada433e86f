package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"drop2print/internal/config"
	"drop2print/internal/jobs"
	"drop2print/internal/printer"
	"drop2print/internal/spool"
	"drop2print/internal/storage"
)

// app bundles the collaborators every command needs.
type app struct {
	store   *storage.Store
	spool   *spool.Dir
	printer *printer.Dispatcher
	jobs    *jobs.Service
}

func openApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	store, err := storage.NewStore(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	sp, err := spool.New(cfg.UploadDir)
	if err != nil {
		store.Close()
		return nil, err
	}

	disp, err := printer.New(printer.Config{
		PrinterName: cfg.PrinterName,
		Command:     cfg.PrintCommand,
		Timeout:     cfg.PrintTimeout,
	}, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	svc, err := jobs.NewService(store, sp, disp, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &app{store: store, spool: sp, printer: disp, jobs: svc}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
