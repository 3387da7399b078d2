// Package configcmder provides the config command for managing persistent
// reqvibe configuration stored in the .reqvibe/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent reqvibe configuration.

Configuration is stored as config.toml in the .reqvibe/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  user.name,
  llm.base_url, llm.api_key, llm.model, llm.timeout_seconds,
  storage.base_dir, storage.max_conversations, storage.max_storage_bytes,
  memory.max_context_tokens,
  ltm.provider, ltm.target, ltm.dimensions, ltm.enabled,
  api.listen, eventstream.topic

Use subcommands to get, set, or list configuration values:
  reqvibe config set <key> <value>    Set a configuration value
  reqvibe config get <key>            Get a configuration value
  reqvibe config list                 List all configuration values

Examples:
  reqvibe config set llm.model deepseek-chat
  reqvibe config set memory.max_context_tokens 3500
  reqvibe config get user.name
  reqvibe config list`

const configShortDesc string = "Manage persistent reqvibe configuration"

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
