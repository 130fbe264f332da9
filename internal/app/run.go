package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"kubeop/pkg/logging"
)

const metricsShutdownTimeout = 5 * time.Second

// MetricsHandler serves the controller-runtime registry on /metrics.
func MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(ctrlmetrics.Registry, promhttp.HandlerOpts{}))
	return mux
}

// run starts every operator and the metrics server and blocks until they
// have all stopped.
//
// Signal Handling:
//   - SIGINT (Ctrl+C): Triggers graceful shutdown
//   - SIGTERM: Triggers graceful shutdown (common in container environments)
func run(ctx context.Context, cfg *Config, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(services.Operators) == 0 {
		logging.Warn("Run", "No operators enabled, nothing to do")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	if addr := cfg.KubeopConfig.MetricsAddr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           MetricsHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logging.Info("Metrics", "Serving metrics on %s/metrics", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	for _, op := range services.Operators {
		g.Go(func() error {
			if err := op.Run(gctx); err != nil {
				return fmt.Errorf("operator %s: %w", op.Config().Name, err)
			}
			return nil
		})
	}

	logging.Info("Run", "Started %d operator(s). Press Ctrl+C to stop.", len(services.Operators))

	if err := g.Wait(); err != nil {
		logging.Error("Run", err, "Stopped with error")
		return err
	}
	logging.Info("Run", "Stopped")
	return nil
}
