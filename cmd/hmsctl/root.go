package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gyeh/hmscore/internal/config"
)

var (
	cfg     = config.Default()
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "hmsctl",
	Short: "Hospital workflow and billing ledger administration",
	Long:  "Manages the hospital billing core: schema migration, seeding, payment processing, and dashboard stats.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile == "" {
			return nil
		}
		return cfg.LoadFromFile(cfgFile)
	},
}

func init() {
	_ = godotenv.Load()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DSN, "dsn", os.Getenv("DATABASE_URL"), "Postgres connection string (or set DATABASE_URL)")
	pf.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json")
	pf.StringVar(&cfgFile, "config", "", "Path to YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
