package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"staffops/internal/app"
	"staffops/internal/config"
	"staffops/internal/logging"
	"staffops/internal/store"
)

var (
	cfgPath   string
	envFile   string
	companyID string
	ownerID   string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "staffctl",
	Short: "Operate staffing records through confirmed actions",
	Long: `staffctl proposes changes to a company's employees, clients and
platform modules, and applies them only after you confirm.

Every mutating command shows what it will do and waits for an answer.
Replies are classified the same way the chat assistant classifies them.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "staffops.yaml", "Config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Env file")
	rootCmd.PersistentFlags().StringVarP(&companyID, "company", "c", "", "Company id (required)")
	rootCmd.PersistentFlags().StringVar(&ownerID, "owner", "cli", "Owner id recorded on proposals")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable info logging")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(proposeCmd)
	rootCmd.AddCommand(backupsCmd)
	rootCmd.AddCommand(reviewCmd)
}

// runtime is what a command needs to talk to the records store.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    store.Store
	pipeline *app.Pipeline
	close    func()
}

func openRuntime(ctx context.Context) (*runtime, error) {
	if companyID == "" {
		return nil, fmt.Errorf("--company is required")
	}
	if err := store.ValidateCompanyID(companyID); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgPath, envFile)
	if err != nil {
		return nil, err
	}
	if !verbose {
		cfg.Logging.Level = "warn"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	s, closeStore, err := app.OpenStore(ctx, cfg, logger.Named("store"))
	if err != nil {
		return nil, err
	}
	gen, err := app.Generator(ctx, cfg, logger)
	if err != nil {
		closeStore()
		return nil, err
	}
	return &runtime{
		cfg:      cfg,
		logger:   logger,
		store:    s,
		pipeline: app.NewPipeline(cfg, s, gen, logger),
		close: func() {
			closeStore()
			_ = logger.Sync()
		},
	}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
