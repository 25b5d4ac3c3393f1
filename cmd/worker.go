package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/mintmarkhq/mintmark/internal/bootstrap"
	"github.com/mintmarkhq/mintmark/internal/metrics"
	"github.com/mintmarkhq/mintmark/internal/worker"
)

const metricsShutdownTimeout = 5 * time.Second

// workerCommand runs the pricing worker loop until interrupted.
func workerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the pricing worker loop",
		Long:  `Claims pricing jobs, collects marketplace listings, and recomputes valuations until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap.New()
			if err != nil {
				return err
			}
			defer app.Close()

			loop, err := app.PricingLoop()
			if err != nil {
				return err
			}

			return runLoop(cmd.Context(), app, loop)
		},
	}
}

// graderCommand runs the grading worker loop until interrupted.
func graderCommand() *cobra.Command {
	var mediaDir string

	cmd := &cobra.Command{
		Use:   "grader",
		Short: "Run the grading worker loop",
		Long:  `Claims grading jobs, estimates grades from coin photos, and computes grading ROI recommendations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap.New()
			if err != nil {
				return err
			}
			defer app.Close()

			loop, err := app.GradingLoop(mediaDir)
			if err != nil {
				return err
			}

			return runLoop(cmd.Context(), app, loop)
		},
	}

	cmd.Flags().StringVar(&mediaDir, "media-dir", "", "directory holding coin images for relative storage paths")

	return cmd
}

// runLoop runs a worker loop with its periodic chores: cache sweeps on
// a cron schedule and the optional metrics listener.
func runLoop(parent context.Context, app *bootstrap.App, loop *worker.Loop) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := cron.New()
	sweep := app.Config.Cache.SweepInterval
	if sweep > 0 {
		_, err := scheduler.AddFunc(fmt.Sprintf("@every %s", sweep), func() {
			if removed := app.Cache.ClearExpired(); removed > 0 {
				app.Logger.Debug("Swept expired cache entries", "removed", removed)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule cache sweep: %w", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	var metricsSrv *http.Server
	if app.Config.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(prometheus.DefaultRegisterer))
		metricsSrv = &http.Server{Addr: app.Config.Metrics.Addr, Handler: mux}

		go func() {
			app.Logger.Info("Metrics listener started", "addr", app.Config.Metrics.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				app.Logger.Error("Metrics listener failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	return loop.Run(ctx)
}
