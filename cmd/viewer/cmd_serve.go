package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"viewer/internal/httpapi"
	"viewer/internal/store"
)

var (
	serveAddr    string
	serveNoWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve servers over HTTP",
	Long: `Syncs the workspace into the database and serves every path over HTTP.

Unless --no-watch is given, changes to servers/, aliases.yaml,
variables.yaml and secrets.yaml are synced while the server runs.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: from config)")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not watch the workspace for changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := os.Stat(a.cfg.Storage.Workspace); err == nil {
		report, err := a.store.SyncWorkspace(ctx, a.cfg.Storage.Workspace)
		if err != nil {
			return fmt.Errorf("initial sync: %w", err)
		}
		logger.Info("workspace synced",
			zap.String("workspace", a.cfg.Storage.Workspace),
			zap.Int("servers", report.Servers),
			zap.Int("aliases", report.Aliases))
	}

	addr := a.cfg.Server.Address
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpapi.New(a.engine, a.store).Router(),
		ReadTimeout:  a.cfg.GetReadTimeout(),
		WriteTimeout: a.cfg.GetWriteTimeout(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if a.cfg.Storage.Watch && !serveNoWatch {
		w := store.NewWatcher(a.store, a.cfg.Storage.Workspace)
		w.OnSync = func(r store.SyncReport, err error) {
			if err != nil {
				logger.Warn("workspace sync failed", zap.Error(err))
				return
			}
			logger.Info("workspace re-synced", zap.Int("servers", r.Servers), zap.Int("aliases", r.Aliases))
		}
		g.Go(func() error { return w.Run(gctx) })
	}
	return g.Wait()
}
