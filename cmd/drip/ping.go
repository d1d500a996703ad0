package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pario-ai/drip/pkg/completion"
	"github.com/pario-ai/drip/pkg/logging"
	"github.com/pario-ai/drip/pkg/prompt"
)

func newPingCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Send one test completion to verify the API key and endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, keys, err := loadConfigWithKeys(*configPath)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			keys.logSkipped(log)

			client, err := completion.New(completionConfig(cfg), log)
			if err != nil {
				return err
			}

			resp, err := client.Ping(context.Background())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Model:    %s\n", client.Model())
			fmt.Fprintf(out, "Tokens:   %d\n", resp.TotalTokens())
			fmt.Fprintf(out, "Response: %s\n", resp.Content())
			return nil
		},
	}
}

func newPromptCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt",
		Short: "Generate and print one prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, keys, err := loadConfigWithKeys(*configPath)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			keys.logSkipped(log)

			src, err := prompt.NewGemini(geminiConfig(cfg), log)
			if err != nil {
				return err
			}
			p, err := src.Fetch(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}
}
