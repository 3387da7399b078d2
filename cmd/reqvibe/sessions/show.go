package sessionscmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reqvibe/reqvibe/pkg/chat"
	"github.com/reqvibe/reqvibe/pkg/cliui"
	"github.com/reqvibe/reqvibe/pkg/config"
	"github.com/reqvibe/reqvibe/pkg/session"
)

const showLongDesc string = `Print one session's messages.

The session may be named by its full ID or any unambiguous prefix.

Examples:
  reqvibe sessions show 4fc1a2
  reqvibe sessions show 4fc1a2e8-0c1d-47c8-9a4e-8f2f6f0f3b21`

const showShortDesc string = "Print one session's messages"

func newShowCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: showShortDesc,
		Long:  showLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, cfg, err := resolveUser(cmd)
			if err != nil {
				return err
			}
			return runShow(user, cfg, args[0])
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagUser, &user)

	return cmd
}

func runShow(user string, cfg *config.Config, idPrefix string) error {
	registry, err := openRegistry(user, cfg)
	if err != nil {
		return err
	}

	rec, err := findSession(registry, idPrefix)
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s %s\n",
		cliui.KeyStyle.Render("Session:"),
		cliui.NameStyle.Render(rec.Title),
	)
	fmt.Printf("  %s\n\n",
		cliui.DimStyle.Render(fmt.Sprintf("%s · created %s · %d messages",
			rec.ID,
			rec.CreatedAt.Local().Format("2006-01-02 15:04"),
			len(rec.Messages),
		)),
	)

	for _, msg := range rec.Messages {
		switch msg.Role {
		case chat.RoleUser:
			fmt.Printf("%s%s\n\n", cliui.UserPrompt, msg.Content)
		case chat.RoleAssistant:
			fmt.Printf("%s%s\n\n", cliui.AssistantPrompt, msg.Content)
		default:
			fmt.Printf("%s %s\n\n", cliui.DimStyle.Render(string(msg.Role)+">"), msg.Content)
		}
	}

	return nil
}

// findSession resolves a full ID or unique ID prefix to a record.
func findSession(registry *session.Registry, idPrefix string) (session.Record, error) {
	if rec, ok := registry.Get(idPrefix); ok {
		return rec, nil
	}

	var matches []session.Record
	for _, rec := range registry.Sessions() {
		if strings.HasPrefix(rec.ID, idPrefix) {
			matches = append(matches, rec)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return session.Record{}, fmt.Errorf("no session matching %q", idPrefix)
	default:
		return session.Record{}, fmt.Errorf("%q matches %d sessions, use a longer prefix", idPrefix, len(matches))
	}
}
