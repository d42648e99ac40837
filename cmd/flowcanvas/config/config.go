// Package configcmder provides the config command for managing persistent
// flowcanvas configuration stored in the .flowcanvas/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent flowcanvas configuration.

Configuration is stored as config.toml in the .flowcanvas/ directory and
provides default values for command flags. CLI flags and FLOWCANVAS_
environment variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  server.listen,
  model.base_url, model.name, model.max_rounds,
  storage.sqlite_path

The model API key has no config key; set FLOWCANVAS_MODEL_API_KEY instead.

Use subcommands to get, set, or list configuration values:
  flowcanvas config set <key> <value>    Set a configuration value
  flowcanvas config get <key>            Get a configuration value
  flowcanvas config list                 List all configuration values

Examples:
  flowcanvas config set model.name gpt-4o
  flowcanvas config set storage.sqlite_path ~/.flowcanvas/usage.db
  flowcanvas config get server.listen
  flowcanvas config list`

const configShortDesc string = "Manage persistent flowcanvas configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
