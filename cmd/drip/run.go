package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pario-ai/drip/pkg/completion"
	"github.com/pario-ai/drip/pkg/logging"
	"github.com/pario-ai/drip/pkg/prompt"
	"github.com/pario-ai/drip/pkg/scheduler"
	"github.com/pario-ai/drip/pkg/tracker"
)

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the request scheduler until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, keys, err := loadConfigWithKeys(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			keys.logSkipped(log)

			opts := []scheduler.Option{scheduler.WithLogger(log.Named("scheduler"))}
			if cfg.History.Enabled {
				tr, err := tracker.New(cfg.History.DBPath)
				if err != nil {
					return fmt.Errorf("init history: %w", err)
				}
				defer func() { _ = tr.Close() }()
				opts = append(opts, scheduler.WithRecorder(tr))
			}

			prompts, err := prompt.NewGemini(geminiConfig(cfg), log.Named("prompt"))
			if err != nil {
				return err
			}
			client, err := completion.New(completionConfig(cfg), log.Named("completion"))
			if err != nil {
				return err
			}

			sched, err := scheduler.New(schedulerConfig(cfg), prompts, client, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info("starting drip",
				zap.String("version", version),
				zap.String("config", *configPath),
				zap.Bool("history", cfg.History.Enabled),
			)
			return sched.Run(ctx)
		},
	}
}
