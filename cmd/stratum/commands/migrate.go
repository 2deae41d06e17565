package commands

import (
	"database/sql"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// MigrateCmd applies pending schema migrations.
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Create the database if needed and bring its schema up to date.

Migrations are embedded in the binary and applied in order; already-applied
versions are skipped, so the command is safe to run repeatedly.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	database, path, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	version, err := schemaVersion(database)
	if err != nil {
		return err
	}

	pterm.Success.Printf("Database %s is at schema version %s\n", path, version)
	return nil
}

// schemaVersion reports the highest applied migration version.
func schemaVersion(database *sql.DB) (string, error) {
	var version string
	err := database.QueryRow("SELECT COALESCE(MAX(version), 'none') FROM schema_migrations").Scan(&version)
	if err != nil {
		return "", err
	}
	return version, nil
}
