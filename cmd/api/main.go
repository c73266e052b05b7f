package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"staffops/internal/app"
	"staffops/internal/config"
	"staffops/internal/logging"
)

func main() {
	var cfgPath, envFile string
	flag.StringVar(&cfgPath, "config", "staffops.yaml", "config file")
	flag.StringVar(&envFile, "env", ".env", "env file")
	flag.Parse()

	cfg, err := config.Load(cfgPath, envFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, closeStore, err := app.OpenStore(ctx, cfg, logger.Named("store"))
	if err != nil {
		logger.Fatal("unable to open store", zap.Error(err))
	}
	defer closeStore()

	gen, err := app.Generator(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("unable to create language model client", zap.Error(err))
	}
	pipeline := app.NewPipeline(cfg, s, gen, logger)

	// Lazy so the chat surface starts even when Temporal is down; review
	// endpoints fail per request instead.
	tc, err := client.NewLazyClient(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		logger.Fatal("unable to create Temporal client", zap.Error(err))
	}
	defer tc.Close()

	h := &handlers{
		assistant: pipeline.Assistant,
		proposals: pipeline.Proposals,
		store:     s,
		logger:    logger.Named("api"),
	}
	rv := &reviews{tc: tc, taskQueue: cfg.Temporal.TaskQueue, maxAge: cfg.Proposals.MaxAgeDuration()}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newRouter(h, rv),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pipeline.Proposals.Run(gctx, cfg.Proposals.Interval(), cfg.Proposals.MaxAgeDuration())
	})
	g.Go(func() error {
		logger.Info("api listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
	logger.Info("api stopped")
}
