// Package configcmder provides the config command for managing persistent
// medibot configuration stored in the .medibot/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent medibot configuration.

Configuration is stored as config.toml in the .medibot/ directory and provides
default values for command flags. CLI flags and MEDIBOT_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure, for example:
  server.listen, client.api_target,
  session.backend, session.max_age,
  retrieval.provider, retrieval.collection, retrieval.top_k,
  embedding.provider, embedding.model, embedding.dimensions,
  generation.provider, generation.model, generation.temperature,
  eventstream.provider, eventstream.brokers

Run "medibot config list" for every key.

Use subcommands to get, set, or list configuration values:
  medibot config set <key> <value>    Set a configuration value
  medibot config get <key>            Get a configuration value
  medibot config list                 List all configuration values

Examples:
  medibot config set generation.provider ollama
  medibot config set session.max_age 12h
  medibot config get retrieval.collection
  medibot config list`

const configShortDesc string = "Manage persistent medibot configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newInitCmd())

	return cmd
}
