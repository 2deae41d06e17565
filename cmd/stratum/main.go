package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/stratumdb/stratum/cmd/stratum/commands"
	"github.com/stratumdb/stratum/logger"
)

var rootCmd = &cobra.Command{
	Use:   "stratum",
	Short: "Stratum - bitemporal entity-graph store",
	Long: `Stratum - a bitemporal, ontology-validated entity-graph store.

Stratum keeps a versioned graph of typed entities and links, validated
against a versioned ontology of data, property, and entity types. Every
write opens a new version; nothing is overwritten.

Available commands:
  migrate - Apply pending database migrations
  seed    - Seed the primitive data types
  status  - Show database and system status
  config  - Inspect the effective configuration
  version - Show version information

Examples:
  stratum migrate          # Create or upgrade the database schema
  stratum seed             # Install the primitive data types
  stratum status           # Show migration state and record counts`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		verbosity, _ := cmd.Flags().GetCount("verbose")

		level := zapcore.InfoLevel
		if verbosity > 0 {
			level = zapcore.DebugLevel
		}
		if err := logger.InitializeWithLevel(jsonLogs, level); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit structured JSON logs")
	rootCmd.PersistentFlags().String("db", "", "Database path (overrides configuration)")

	rootCmd.AddCommand(commands.MigrateCmd)
	rootCmd.AddCommand(commands.SeedCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
