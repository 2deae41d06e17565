package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stratumdb/stratum/config"
	"github.com/stratumdb/stratum/errors"
)

// ConfigCmd inspects the effective configuration.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
	Long: `Show the configuration stratum runs with: defaults, merged TOML
files, and environment overrides, in evaluation order.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to render configuration")
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	ConfigCmd.AddCommand(configShowCmd)
}
