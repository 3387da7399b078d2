// Package sessionscmder provides the sessions command family for
// listing, inspecting, browsing, and clearing saved conversations.
package sessionscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reqvibe/reqvibe/pkg/config"
	"github.com/reqvibe/reqvibe/pkg/logger"
	"github.com/reqvibe/reqvibe/pkg/session"
	"github.com/reqvibe/reqvibe/pkg/store"
)

const sessionsLongDesc string = `Work with saved conversation sessions.

Sessions are stored per user in the conversation store. The store keeps
the most recent sessions up to the configured count and byte limits;
older sessions are evicted on save.

  reqvibe sessions list              List saved sessions
  reqvibe sessions show <id>         Print one session's messages
  reqvibe sessions browse            Browse sessions in a TUI
  reqvibe sessions clear             Delete all sessions

Examples:
  reqvibe sessions list
  reqvibe sessions list --user alice
  reqvibe sessions show 4fc1a2
  reqvibe sessions browse`

const sessionsShortDesc string = "List, inspect, and browse saved sessions"

func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: sessionsShortDesc,
		Long:  sessionsLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newBrowseCmd())
	cmd.AddCommand(newClearCmd())

	return cmd
}

// resolveUser returns the --user flag when set, the configured user
// otherwise.
func resolveUser(cmd *cobra.Command) (string, *config.Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return "", nil, fmt.Errorf("loading config: %w", err)
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return "", nil, fmt.Errorf("loading config: %w", err)
	}

	user, _ := cmd.Flags().GetString(config.FlagUser)
	if !cmd.Flags().Changed(config.FlagUser) {
		user = cfg.User.Name
	}

	return user, cfg, nil
}

// openRegistry builds a registry over the user's conversation store and
// loads the persisted sessions.
func openRegistry(user string, cfg *config.Config) (*session.Registry, error) {
	convStore, err := store.New(user,
		store.WithBaseDir(cfg.Storage.BaseDir),
		store.WithMaxConversations(int(cfg.Storage.MaxConversations)),
		store.WithMaxStorageBytes(int(cfg.Storage.MaxStorageBytes)),
		store.WithLogger(logger.Nop()),
	)
	if err != nil {
		return nil, fmt.Errorf("opening conversation store: %w", err)
	}

	registry := session.NewRegistry(nil,
		session.WithStore(convStore),
		session.WithRegistryLogger(logger.Nop()),
	)
	registry.LoadFromDisk()
	return registry, nil
}
