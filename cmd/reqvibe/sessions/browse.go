package sessionscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reqvibe/reqvibe/pkg/cliui"
	"github.com/reqvibe/reqvibe/pkg/config"
)

const browseLongDesc string = `Browse saved sessions in a terminal UI.

Navigate the session list with j/k, press enter to read a session's
messages, and q to quit.

Examples:
  reqvibe sessions browse
  reqvibe sessions browse --user alice`

const browseShortDesc string = "Browse saved sessions in a TUI"

func newBrowseCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "browse",
		Short: browseShortDesc,
		Long:  browseLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, cfg, err := resolveUser(cmd)
			if err != nil {
				return err
			}
			return runBrowse(cmd, user, cfg)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagUser, &user)

	return cmd
}

func runBrowse(cmd *cobra.Command, user string, cfg *config.Config) error {
	registry, err := openRegistry(user, cfg)
	if err != nil {
		return err
	}

	records := registry.Sessions()
	if len(records) == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("No saved sessions for %q.", user)))
		return nil
	}

	return runSessionsTUI(cmd.Context(), user, records)
}
