package sessionscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reqvibe/reqvibe/pkg/cliui"
	"github.com/reqvibe/reqvibe/pkg/config"
	"github.com/reqvibe/reqvibe/pkg/dotdir"
)

const clearLongDesc string = `Delete all of a user's saved sessions.

Removes the user's sessions file from the conversation store and clears
the resume state, so the next chat starts fresh. This cannot be undone.

Examples:
  reqvibe sessions clear
  reqvibe sessions clear --user alice`

const clearShortDesc string = "Delete all saved sessions"

func newClearCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: clearShortDesc,
		Long:  clearLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, cfg, err := resolveUser(cmd)
			if err != nil {
				return err
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			return runClear(user, cfg, configDir)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagUser, &user)

	return cmd
}

func runClear(user string, cfg *config.Config, configDir string) error {
	registry, err := openRegistry(user, cfg)
	if err != nil {
		return err
	}

	count := len(registry.Sessions())
	registry.ClearAll()

	if err := dotdir.NewManager().ClearActiveState(configDir); err != nil {
		return fmt.Errorf("clearing active state: %w", err)
	}

	fmt.Printf("\n  %s Cleared %d session(s) for %s\n\n",
		cliui.SuccessMark,
		count,
		cliui.NameStyle.Render(user),
	)
	return nil
}
