package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tablekeep/vtt/internal/api"
	"github.com/tablekeep/vtt/internal/assets"
	"github.com/tablekeep/vtt/internal/config"
	"github.com/tablekeep/vtt/internal/dispatcher"
	"github.com/tablekeep/vtt/internal/hub"
	"github.com/tablekeep/vtt/internal/influx"
	"github.com/tablekeep/vtt/internal/logging"
	"github.com/tablekeep/vtt/internal/persist"
)

const (
	hubPath         = "/ws"
	shutdownTimeout = 10 * time.Second
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the realtime hub and background image store",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storageCfg := config.GetStorageConfig()
	if storageCfg.Type == "websocket" {
		return fmt.Errorf("the hub needs a durable backend, not %q", storageCfg.Type)
	}
	backend, err := openStorage(storageCfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	var sink persist.Telemetry
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		telemetry := influx.NewManager(DBLogger, filepath.Join(config.GetString("logsDir"), "vtt_sync.influx.gz"))
		if err := telemetry.Connect(ctx, influxCfg); err != nil {
			Logger.Warn("Save telemetry disabled", "error", err)
		} else {
			sink = telemetry
			defer telemetry.Close()
		}
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(DBLogger))
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}
	defer d.Close()

	hubCfg := config.GetHubConfig()
	h := hub.New(&recordingBackend{Backend: backend, telemetry: sink}, d, hubCfg.Secret, Logger)
	defer h.Close()

	assetsCfg := config.GetAssetsConfig()
	store := assets.New(assetsCfg.Dir, assetsCfg.BaseURL, assetsCfg.MaxBytes)

	mux := http.NewServeMux()
	mux.Handle(hubPath, h)
	mux.Handle("/", assets.NewHandler(store, api.UploadPath, assetsCfg.APIKey, Logger))

	srv := &http.Server{
		Addr:              hubCfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		Logger.Info("Serving", "listen", hubCfg.Listen, "hub", hubPath, "storage", storageCfg.Type)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	Logger.Info("Shutting down", "clients", h.Clients())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	h.Close()
	return srv.Shutdown(shutdownCtx)
}
