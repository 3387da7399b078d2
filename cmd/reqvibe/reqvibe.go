// Package reqvibecmder
package reqvibecmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/reqvibe/reqvibe/cmd/reqvibe/chat"
	configcmder "github.com/reqvibe/reqvibe/cmd/reqvibe/config"
	servecmder "github.com/reqvibe/reqvibe/cmd/reqvibe/serve"
	sessionscmder "github.com/reqvibe/reqvibe/cmd/reqvibe/sessions"
	versioncmder "github.com/reqvibe/reqvibe/cmd/version"
)

const reqvibeLongDesc string = `ReqVibe is a requirements engineering chat assistant.

Chat with an LLM about your project's requirements. Conversations are
kept in short-term memory under a token budget and persisted per user,
and extracted requirements land in a searchable long-term store.

Common commands:
  reqvibe chat             Start an interactive chat session
  reqvibe sessions         List, inspect, and browse saved sessions
  reqvibe serve            Run the HTTP API and MCP server
  reqvibe config           Manage persistent configuration`

const reqvibeShortDesc string = "ReqVibe - Requirements Chat Assistant"

func NewReqvibeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reqvibe",
		Short: reqvibeShortDesc,
		Long:  reqvibeLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .reqvibe/ directory location")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(sessionscmder.NewSessionsCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
