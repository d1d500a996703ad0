package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pario-ai/drip/pkg/scheduler"
)

var version = "dev"

func main() {
	os.Exit(exitCode(newRootCmd().Execute()))
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "drip",
		Short:         "Send chat completions at random intervals under a daily quota",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "drip.yaml", "path to config file")

	root.AddCommand(
		newRunCmd(&configPath),
		newPingCmd(&configPath),
		newPromptCmd(&configPath),
		newStatsCmd(&configPath),
		newKeysCmd(),
	)
	return root
}

// exitCode maps a command error to the process exit status. A prompt
// source failure in exit mode is a deliberate stop, not a crash.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, scheduler.ErrPromptSource) {
		fmt.Fprintln(os.Stderr, "stopping:", err)
		return 0
	}
	fmt.Fprintln(os.Stderr, err)
	return 1
}
