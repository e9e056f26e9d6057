package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/webcapture/internal/api"
	"github.com/JakeFAU/webcapture/internal/app"
	"github.com/JakeFAU/webcapture/internal/dispatcher"
	"github.com/JakeFAU/webcapture/internal/intake"
	"github.com/JakeFAU/webcapture/internal/status"
	"github.com/JakeFAU/webcapture/internal/sweeper"
	"github.com/JakeFAU/webcapture/internal/worker"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API, the worker pool and the lease sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, appInstance)
		},
	}
}

// serve blocks until ctx is cancelled or a component fails, then drains the
// HTTP server and stops the workers.
func serve(ctx context.Context, a *app.App) error {
	cfg := a.Config
	logger := a.Logger

	deps := worker.Deps{
		Queue:     a.Queue,
		Store:     a.Store,
		Blobs:     a.Blobs,
		Executor:  a.Executor,
		Publisher: a.Publisher,
		Hasher:    a.Hasher,
		Clock:     a.Clock,
		IDs:       a.IDs,
	}
	// A nil *Limiter must not become a non-nil Pacer.
	if a.Pacer != nil {
		deps.Pacer = a.Pacer
	}
	pool := dispatcher.NewPool(deps, worker.Config{
		LeaseDuration: cfg.LeaseDuration(),
		Topic:         cfg.PubSub.TopicName,
	}, cfg.Worker.Concurrency, logger.Named("worker"))

	apiServer := api.NewServer(api.Deps{
		Intake: intake.New(a.Store, pool, a.IDs, a.Clock, logger.Named("intake")),
		Status: status.New(a.Store),
		Store:  a.Store,
		Blobs:  a.Blobs,
		IDs:    a.IDs,
		Clock:  a.Clock,
	}, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("dispatcher started", zap.Int("workers", pool.Size()))
		pool.Run(gctx)
		return nil
	})

	if cfg.Sweeper.Enabled {
		sweep := sweeper.New(a.Store, pool, a.Clock, sweeper.Config{
			Interval:     cfg.SweepInterval(),
			PendingGrace: cfg.PendingGrace(),
			BatchSize:    cfg.Sweeper.BatchSize,
		}, logger.Named("sweeper"))
		g.Go(func() error {
			sweep.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
		a.Queue.Close()
		return nil
	})

	err := g.Wait()
	logger.Info("shutdown complete")
	return err
}
