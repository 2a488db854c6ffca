package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nestwatch/nestwatch/internal/statestore"
)

func newKVCmd() *cobra.Command {
	var statePath string

	kvCmd := &cobra.Command{
		Use:   "kv",
		Short: "Inspect the shared state store directly (read-only)",
	}

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the raw value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := statestore.Open(statePath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			raw, err := store.Get(context.Background(), args[0])
			if err != nil {
				return err
			}
			if raw == nil {
				return fmt.Errorf("key not found: %s", args[0])
			}
			fmt.Fprintln(os.Stdout, string(raw))
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list [prefix]",
		Short: "List keys, optionally filtered by prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := statestore.Open(statePath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			keys, err := store.Keys(context.Background(), prefix)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(os.Stdout, k)
			}
			return nil
		},
	}

	for _, c := range []*cobra.Command{getCmd, listCmd} {
		c.Flags().StringVarP(&statePath, "state", "s", "", "State database path (required)")
		_ = c.MarkFlagRequired("state")
		kvCmd.AddCommand(c)
	}
	return kvCmd
}
