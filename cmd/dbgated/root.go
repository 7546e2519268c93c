package main

import (
	"os"

	"dbgate/internal/platform/config"

	"github.com/spf13/cobra"
)

const serviceName = "dbgated"

var rootCmd = &cobra.Command{
	Use:   serviceName,
	Short: "Multi-environment database query gateway",
	Long: `dbgated routes SKU lookups and ad-hoc SQL to one of several preconfigured
database environments (dev, gqc, uat, prd) and serves the browser front end.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		files, _ := cmd.Flags().GetStringSlice("env-file")
		return config.Load(files...)
	},
	RunE: runServe,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringSlice("env-file", nil, "dotenv files to load before reading the environment (default ./.env if present)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Validate configuration and start the API and admin servers",
		RunE:  runServe,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate configuration and probe every environment",
		RunE:  runCheck,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "envs",
		Short: "Print the resolved configuration of every environment",
		RunE:  runEnvs,
	})
}
