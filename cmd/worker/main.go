package main

import (
	"context"
	"flag"
	"log"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"staffops/internal/activities"
	"staffops/internal/app"
	"staffops/internal/config"
	"staffops/internal/logging"
	"staffops/internal/workflows"
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

	ctx := context.Background()
	s, closeStore, err := app.OpenStore(ctx, cfg, logger.Named("store"))
	if err != nil {
		logger.Fatal("unable to open store", zap.Error(err))
	}
	defer closeStore()

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		logger.Fatal("unable to create Temporal client", zap.Error(err))
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.ReviewAction)
	w.RegisterActivity(&activities.Activities{
		Executor: app.NewExecutor(cfg, s, nil, logger.Named("executor")),
	})

	logger.Info("worker started", zap.String("taskQueue", cfg.Temporal.TaskQueue))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("worker exited", zap.Error(err))
	}
}
