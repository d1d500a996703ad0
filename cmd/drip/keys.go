package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pario-ai/drip/pkg/secrets"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys in the system keyring",
	}

	setCmd := &cobra.Command{
		Use:   "set <nous|gemini> [value]",
		Short: "Store an API key; reads it from stdin when value is omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := secrets.Validate(name); err != nil {
				return err
			}
			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "Enter %s API key: ", name)
				sc := bufio.NewScanner(cmd.InOrStdin())
				if !sc.Scan() {
					if err := sc.Err(); err != nil {
						return err
					}
					return errors.New("no key provided")
				}
				value = strings.TrimSpace(sc.Text())
			}
			if err := secrets.Set(name, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s key in keyring.\n", name)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <nous|gemini>",
		Short: "Remove an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := secrets.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s key.\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(setCmd, deleteCmd)
	return cmd
}
