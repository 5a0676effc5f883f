package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "backoffice",
		Short: "Backoffice workflow service",
		Long: `backoffice runs per-entity KYC/KYB workflows: state-chart runtimes, webhook notifications,
saved filters and a runtime search index.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configFile)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path of the yaml configuration file")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the http server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configFile)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(configFile)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Create the workflow definitions the default intents start",
		RunE: func(cmd *cobra.Command, args []string) error {
			return seed(configFile)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
