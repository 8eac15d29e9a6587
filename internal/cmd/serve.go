package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/api"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/config"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/monitor"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reporting API",
	Long: `Serve the HTTP API: session inspection, run history, resource
monitoring, and a WebSocket feed of live session output.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := buildEngine(cfg)
	defer eng.shutdown()

	results, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer results.Close()

	mon := monitor.New(monitor.Config{
		Interval: cfg.MonitorInterval(),
		Window:   cfg.Monitor.Window,
		Thresholds: monitor.Thresholds{
			Load1: cfg.Monitor.LoadThreshold,
		},
	}, eng.sup, nil)
	mon.Start(ctx)
	defer mon.Stop()

	handler := api.NewHandler(eng.sup, results, mon, nil)
	eng.runner.SetObserver(handler.PublishResult)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	handler.Mount(r)

	srv := &http.Server{Addr: cfg.API.ListenAddr, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("api listening", "addr", cfg.API.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
