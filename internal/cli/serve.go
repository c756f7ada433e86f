package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"drop2print/internal/httpapi"
	"drop2print/internal/otelsetup"
	"drop2print/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web UI, the JSON API and the folder watcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.OTelEnabled {
			shutdown, err := otelsetup.InitOTel(ctx, os.Stderr, logger)
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(sctx); err != nil {
					logger.Error("otel shutdown", "error", err)
				}
			}()
		}

		a, err := openApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		// Folder watcher runs once per process.
		var sup *watcher.Supervisor
		if cfg.WatchEnabled() {
			sup = watcher.NewSupervisor(watcher.New(cfg.WatchDir, cfg.WatchInterval, a.jobs, logger))
			if _, err := sup.Start(ctx); err != nil {
				return err
			}
		} else {
			logger.Info("file watcher disabled (DROP2PRINT_WATCH_PATH not set)")
		}

		h := &httpapi.Handler{
			Store:          a.store,
			Jobs:           a.jobs,
			Logger:         logger,
			AdminPassword:  cfg.AdminPassword,
			WatchPath:      cfg.WatchDir,
			PrinterName:    a.printer.PrinterName(),
			MaxUploadBytes: cfg.MaxUploadBytes,
		}
		srv := &http.Server{
			Addr:        cfg.HTTPAddr,
			Handler:     httpapi.NewRouter(h),
			ReadTimeout: 30 * time.Second,
			// Uploads block until the print command returns.
			WriteTimeout: 2*time.Minute + cfg.PrintTimeout,
			IdleTimeout:  120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server starting", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil {
				return err
			}
		}

		logger.Info("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Error("server forced to shutdown", "error", err)
		}
		if sup != nil {
			sup.Stop()
		}
		logger.Info("bye")
		return nil
	},
}
