package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shaiso/Relay/internal/api"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run cron jobs, the continuous transfer loop and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, logger)
		},
	}
}

func serve(ctx context.Context, logger *slog.Logger) error {
	startTime := time.Now()
	logger.Info("starting relay", "version", version)

	a, err := newApp(ctx, logger)
	if err != nil {
		return err
	}

	handler := api.NewHandler(api.Config{
		Publisher:    a.publisher,
		Rejections:   rejectionLister(a),
		ConsumeQueue: a.cfg.RabbitMQ.ConsumeQueue,
		BasePath:     a.cfg.API.BasePath,
		Logger:       logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !a.conn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "broker %s", a.conn.State())
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              a.cfg.API.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr, "base_path", a.cfg.API.BasePath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if err := a.scheduler.Start(ctx); err != nil {
		server.Close()
		a.close()
		return fmt.Errorf("start scheduler: %w", err)
	}

	if a.cfg.Scheduler.ContinuousTransfer {
		if err := a.scheduler.StartContinuous(ctx); err != nil {
			logger.Error("failed to start continuous transfer", "error", err)
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-serverErr:
		logger.Error("server error", "error", runErr)
	}

	// Порядок: cron-задачи → фоновый цикл → HTTP → брокер
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	a.scheduler.Stop(shutdownCtx)

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}

	if err := a.close(); err != nil {
		logger.Error("close error", "error", err)
	}

	logger.Info("stopped")
	return runErr
}

// rejectionLister возвращает журнал отклонений, если аудит включён.
func rejectionLister(a *app) api.RejectionLister {
	if a.rejections == nil {
		return nil
	}
	return a.rejections
}
