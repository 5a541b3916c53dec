package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	envFile  string
	logLevel string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "narradar",
		Short:         "Detect emerging ecosystem narratives and suggest what to build",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default: from config)")

	root.AddCommand(runCmd())
	root.AddCommand(scoreCmd())
	root.AddCommand(reportsCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(daemonCmd())

	return root
}

func runCmd() *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and store a report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(start, end)
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "period start YYYY-MM-DD (default: end minus period_days)")
	cmd.Flags().StringVar(&end, "end", "", "period end YYYY-MM-DD (default: today)")
	return cmd
}

func scoreCmd() *cobra.Command {
	var (
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Ingest and score signals without storing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(jsonOutput, limit)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 20, "max signals to show (0 for all)")
	return cmd
}

func reportsCmd() *cobra.Command {
	var (
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List stored reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReports(jsonOutput, limit)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 20, "max reports to show")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func daemonCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Start scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
