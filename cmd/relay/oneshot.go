package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Relay/internal/scheduler"
)

func newTransferCmd(logger *slog.Logger) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move one batch from the consume queue to the publish queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), logger, wait, func(ctx context.Context, s *scheduler.Scheduler) (scheduler.JobResult, error) {
				return s.RunTransfer(ctx)
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "How long to wait for the broker connection")

	return cmd
}

func newIndexCmd(logger *slog.Logger) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index one batch from the consume queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), logger, wait, func(ctx context.Context, s *scheduler.Scheduler) (scheduler.JobResult, error) {
				return s.RunIndexing(ctx)
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "How long to wait for the broker connection")

	return cmd
}

func newCheckCmd(logger *slog.Logger) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check RabbitMQ and Elasticsearch health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, logger)
			if err != nil {
				return err
			}
			defer a.close()

			waitCtx, cancel := context.WithTimeout(ctx, wait)
			defer cancel()
			if err := a.conn.WaitConnected(waitCtx); err != nil {
				logger.Warn("broker not connected", "wait", wait, "error", err)
			}

			brokerOK := a.conn.CheckHealth(ctx)
			indexerOK := a.indexer.Health(ctx)

			fmt.Fprintf(cmd.OutOrStdout(), "rabbitmq:      %s (%s)\n", healthWord(brokerOK), a.conn.State())
			fmt.Fprintf(cmd.OutOrStdout(), "elasticsearch: %s\n", healthWord(indexerOK))

			if !brokerOK || !indexerOK {
				return fmt.Errorf("unhealthy dependencies")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 5*time.Second, "How long to wait for the broker connection")

	return cmd
}

// runOnce выполняет одну задачу планировщика и завершает процесс.
func runOnce(ctx context.Context, logger *slog.Logger, wait time.Duration, run func(context.Context, *scheduler.Scheduler) (scheduler.JobResult, error)) error {
	a, err := newApp(ctx, logger)
	if err != nil {
		return err
	}
	defer a.close()

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	if err := a.conn.WaitConnected(waitCtx); err != nil {
		return fmt.Errorf("broker not connected: %w", err)
	}

	result, err := run(ctx, a.scheduler)
	if err != nil {
		return err
	}

	logger.Info("job finished",
		"job", result.Job,
		"retrieved", result.Retrieved,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)

	if result.Failed > 0 {
		return fmt.Errorf("%d of %d messages failed", result.Failed, result.Retrieved)
	}
	return nil
}

func healthWord(ok bool) string {
	if ok {
		return "healthy"
	}
	return "unhealthy"
}
