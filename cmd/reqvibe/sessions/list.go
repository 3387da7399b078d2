package sessionscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reqvibe/reqvibe/pkg/cliui"
	"github.com/reqvibe/reqvibe/pkg/config"
	"github.com/reqvibe/reqvibe/pkg/utils"
)

const listLongDesc string = `List saved sessions, newest first.

Shows each session's short ID, title, creation time, model, and message
count. Pass --user to list another user's sessions.

Examples:
  reqvibe sessions list
  reqvibe sessions list --user alice`

const listShortDesc string = "List saved sessions"

func newListCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, cfg, err := resolveUser(cmd)
			if err != nil {
				return err
			}
			return runList(user, cfg)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagUser, &user)

	return cmd
}

func runList(user string, cfg *config.Config) error {
	registry, err := openRegistry(user, cfg)
	if err != nil {
		return err
	}

	records := registry.Sessions()
	if len(records) == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("No saved sessions for %q.", user)))
		return nil
	}

	fmt.Printf("\n  %s %s %s\n\n",
		cliui.KeyStyle.Render("Sessions for"),
		cliui.NameStyle.Render(user),
		cliui.DimStyle.Render(fmt.Sprintf("(%d)", len(records))),
	)

	for _, rec := range records {
		model := rec.Model
		if model == "" {
			model = "-"
		}
		fmt.Printf("  %s  %s\n",
			cliui.DimStyle.Render(shortID(rec.ID)),
			cliui.NameStyle.Render(utils.Truncate(rec.Title, 50)),
		)
		fmt.Printf("      %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("%s · %s · %d messages",
				rec.CreatedAt.Local().Format("2006-01-02 15:04"),
				model,
				len(rec.Messages),
			)),
		)
	}

	fmt.Println()
	return nil
}

// shortID returns the first 8 characters of a session UUID, enough to
// disambiguate within one user's store.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
