// Command poststreamctl runs operational tasks against the PostStream
// database: schema migration, demo seeding and counter repair.
package main

import (
	"fmt"
	"os"

	"poststream/internal/config"
	"poststream/internal/database"
	"poststream/internal/middleware"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "poststreamctl",
	Short:         "Operational commands for the PostStream database",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			middleware.SetLogLevel("debug")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.AddCommand(migrateCmd, seedCmd, recountCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connect opens the configured database. Outside production Connect
// also migrates the schema.
func connect() (*config.Config, *gorm.DB, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, db, nil
}
