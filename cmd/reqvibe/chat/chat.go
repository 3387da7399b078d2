// Package chatcmder provides the chat command for interactive
// requirements conversations with an LLM.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/reqvibe/reqvibe/pkg/chat"
	"github.com/reqvibe/reqvibe/pkg/cliui"
	"github.com/reqvibe/reqvibe/pkg/config"
	"github.com/reqvibe/reqvibe/pkg/dotdir"
	"github.com/reqvibe/reqvibe/pkg/llm"
	"github.com/reqvibe/reqvibe/pkg/logger"
	"github.com/reqvibe/reqvibe/pkg/memory"
	"github.com/reqvibe/reqvibe/pkg/session"
	"github.com/reqvibe/reqvibe/pkg/store"
	"github.com/reqvibe/reqvibe/pkg/tokens"
)

type chatCommander struct {
	user             string
	model            string
	baseURL          string
	apiKey           string
	maxContextTokens uint
	fresh            bool
	noSave           bool
	debug            bool

	timeout          time.Duration
	configDir        string
	baseDir          string
	maxConversations uint
	maxStorageBytes  uint
	logger           *slog.Logger
}

const chatLongDesc string = `Start an interactive requirements chat session.

Messages go to the configured OpenAI-compatible chat API. The context
window sent with each turn is trimmed to the token budget, so long
conversations never blow past the model's limits. Sessions are saved
per user in the conversation store and resumed on the next run.

Inside the session:
  /new     Start a fresh session
  /exit    Quit (Ctrl+D also works)

Examples:
  reqvibe chat
  reqvibe chat --model deepseek-reasoner
  reqvibe chat --user alice --fresh`

const chatShortDesc string = "Interactive requirements chat with an LLM"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.configDir = configDir

			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed(config.FlagUser) {
				cmder.user = cfg.User.Name
			}
			if !cmd.Flags().Changed(config.FlagModel) {
				cmder.model = cfg.LLM.Model
			}
			if !cmd.Flags().Changed(config.FlagBaseURL) {
				cmder.baseURL = cfg.LLM.BaseURL
			}
			if !cmd.Flags().Changed(config.FlagAPIKey) {
				cmder.apiKey = cfg.LLM.APIKey
			}
			if !cmd.Flags().Changed(config.FlagMaxContextTokens) {
				cmder.maxContextTokens = cfg.Memory.MaxContextTokens
			}

			cmder.timeout = time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
			cmder.baseDir = cfg.Storage.BaseDir
			cmder.maxConversations = cfg.Storage.MaxConversations
			cmder.maxStorageBytes = cfg.Storage.MaxStorageBytes
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagUser, &cmder.user)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIKey, &cmder.apiKey)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxContextTokens, &cmder.maxContextTokens)
	cmd.Flags().BoolVar(&cmder.fresh, "fresh", false, "Start a new session instead of resuming")
	cmd.Flags().BoolVar(&cmder.noSave, "no-save", false, "Do not persist this conversation")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithWriter(os.Stderr))

	registry, err := c.buildRegistry(ctx)
	if err != nil {
		return err
	}

	client := llm.New(c.apiKey,
		llm.WithBaseURL(c.baseURL),
		llm.WithTimeout(c.timeout),
	)

	fmt.Printf("  %s %s  %s %s\n\n",
		cliui.KeyStyle.Render("Model:"),
		cliui.NameStyle.Render(c.model),
		cliui.KeyStyle.Render("User:"),
		cliui.NameStyle.Render(c.user),
	)
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /new for a fresh session, /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(cliui.UserPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}
		if input == "/new" {
			registry.NewSession(ctx)
			fmt.Printf("  %s New conversation\n\n", cliui.DimStyle.Render("●"))
			continue
		}

		registry.AddMessage(ctx, chat.RoleUser, input)
		window := registry.Memory().ContextForAPI(int(c.maxContextTokens))

		c.logger.Debug("sending chat request",
			"base_url", c.baseURL,
			"model", c.model,
			"context_messages", len(window),
		)

		result, err := client.ChatCompletion(ctx, c.model, window)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
			continue
		}

		registry.AddMessage(ctx, chat.RoleAssistant, result.Message.Content)
		registry.Sync(ctx)

		fmt.Print(cliui.AssistantPrompt)
		fmt.Println(c.renderReply(result.Message.Content))
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	registry.Sync(ctx)
	c.saveActiveState(registry.CurrentID())

	fmt.Println()
	return nil
}

// buildRegistry wires the conversation store and resumes the last
// session recorded in .reqvibe/state.json unless --fresh was given.
func (c *chatCommander) buildRegistry(ctx context.Context) (*session.Registry, error) {
	mem := memory.New(tokens.NewHeuristicEstimator(nil))

	opts := []session.RegistryOption{
		session.WithModel(c.model),
		session.WithRegistryLogger(c.logger),
	}

	if !c.noSave {
		convStore, err := store.New(c.user,
			store.WithBaseDir(c.baseDir),
			store.WithMaxConversations(int(c.maxConversations)),
			store.WithMaxStorageBytes(int(c.maxStorageBytes)),
			store.WithLogger(c.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("opening conversation store: %w", err)
		}
		opts = append(opts, session.WithStore(convStore))
	}

	registry := session.NewRegistry(mem, opts...)
	registry.LoadFromDisk()

	fmt.Println()
	if c.fresh {
		registry.NewSession(ctx)
		fmt.Printf("  %s New conversation\n", cliui.DimStyle.Render("●"))
		return registry, nil
	}

	state, err := dotdir.NewManager().LoadActiveState(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("loading active state: %w", err)
	}

	if state != nil && state.Username == c.user && state.SessionID != "" {
		if err := registry.Switch(ctx, state.SessionID); err == nil {
			rec := registry.Current(ctx)
			fmt.Printf("  %s Resuming %s %s\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(rec.Title),
				cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(rec.Messages))),
			)
			return registry, nil
		}
		// Stale state: the session was evicted or the store cleared.
		c.logger.Debug("active session not found, starting fresh", "session", state.SessionID)
	}

	if id := registry.CurrentID(); id != "" {
		rec := registry.Current(ctx)
		fmt.Printf("  %s Resuming %s %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(rec.Title),
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(rec.Messages))),
		)
		return registry, nil
	}

	fmt.Printf("  %s New conversation\n", cliui.DimStyle.Render("●"))
	return registry, nil
}

// renderReply renders markdown replies when stdout is a terminal and
// falls back to the raw text otherwise (pipes, redirects).
func (c *chatCommander) renderReply(content string) string {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return content
	}

	rendered, err := cliui.RenderMarkdown(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

func (c *chatCommander) saveActiveState(sessionID string) {
	if c.noSave || sessionID == "" {
		return
	}

	state := &dotdir.ActiveState{Username: c.user, SessionID: sessionID}
	if err := dotdir.NewManager().SaveActiveState(state, c.configDir); err != nil {
		c.logger.Warn("saving active state failed", "error", err)
	}
}
