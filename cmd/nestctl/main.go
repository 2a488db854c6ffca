package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiFlag   string
	ownerFlag string
	rootCmd   = &cobra.Command{
		Use:   "nestctl",
		Short: "CLI client for the nestwatch agent",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "Agent base URL")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Trigger one reconciliation pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(apiFlag, os.Stdout)
		},
	}
	rootCmd.AddCommand(syncCmd)

	usageCmd := &cobra.Command{
		Use:   "usage",
		Short: "Show the device's usage aggregates",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ownerFlag == "" {
				return fmt.Errorf("--owner required")
			}
			return runUsage(apiFlag, ownerFlag, os.Stdout)
		},
	}
	usageCmd.Flags().StringVarP(&ownerFlag, "owner", "o", "", "Owner ID (required)")
	rootCmd.AddCommand(usageCmd)

	rootCmd.AddCommand(newDeletedCmd())
	rootCmd.AddCommand(newKVCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
