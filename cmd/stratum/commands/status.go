package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"
)

// StatusCmd shows database and system status.
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	Long:  "Display the database path, schema version, record counts per table, and host memory usage.",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	database, path, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	version, err := schemaVersion(database)
	if err != nil {
		return err
	}

	var accounts, typeEditions, openTypes, entityVersions, openEntities int
	rows := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM accounts", &accounts},
		{"SELECT COUNT(*) FROM ontology_types", &typeEditions},
		{"SELECT COUNT(*) FROM ontology_types WHERE transaction_end IS NULL", &openTypes},
		{"SELECT COUNT(*) FROM entities", &entityVersions},
		{"SELECT COUNT(*) FROM entities WHERE transaction_end IS NULL", &openEntities},
	}
	for _, r := range rows {
		if err := database.QueryRow(r.query).Scan(r.dest); err != nil {
			return err
		}
	}

	pterm.DefaultSection.Println("Database")
	if err := pterm.DefaultTable.WithData(pterm.TableData{
		{"Path", path},
		{"Schema version", version},
		{"Accounts", fmt.Sprintf("%d", accounts)},
		{"Type editions", fmt.Sprintf("%d (%d current)", typeEditions, openTypes)},
		{"Entity versions", fmt.Sprintf("%d (%d current)", entityVersions, openEntities)},
	}).Render(); err != nil {
		return err
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		pterm.DefaultSection.Println("System")
		if err := pterm.DefaultTable.WithData(pterm.TableData{
			{"Memory total", fmt.Sprintf("%.1f GiB", float64(vm.Total)/(1<<30))},
			{"Memory available", fmt.Sprintf("%.1f GiB", float64(vm.Available)/(1<<30))},
			{"Memory used", fmt.Sprintf("%.1f%%", vm.UsedPercent)},
		}).Render(); err != nil {
			return err
		}
	}
	return nil
}
