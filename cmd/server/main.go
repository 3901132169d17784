package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gridview-ops/gridview-alert-go/internal/api"
	"github.com/gridview-ops/gridview-alert-go/internal/config"
	"github.com/gridview-ops/gridview-alert-go/internal/core/alerting"
	"github.com/gridview-ops/gridview-alert-go/internal/core/cache"
	"github.com/gridview-ops/gridview-alert-go/internal/metrics"
	"github.com/gridview-ops/gridview-alert-go/internal/query"
	"github.com/gridview-ops/gridview-alert-go/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	queryClient := query.NewClient(cfg.QueryService.BaseURL, cfg.QueryTimeout(), log)
	distinct := cache.NewDistinctCache(queryClient, cfg.DistinctTTL(), m, log)
	evaluator := alerting.NewEvaluator(queryClient, m, log)

	router := api.NewRouter(cfg, log, evaluator, distinct, registry)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	serverLog := logger.WithComponent(log, "server")

	go func() {
		serverLog.WithField("addr", srv.Addr).Info("Alert engine listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverLog.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	serverLog.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		serverLog.WithError(err).Error("Forced shutdown")
	}
}
