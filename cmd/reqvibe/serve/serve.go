// Package servecmder provides the serve command for running the
// reqvibe HTTP API and MCP server.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reqvibe/reqvibe/api"
	"github.com/reqvibe/reqvibe/api/mcp"
	"github.com/reqvibe/reqvibe/pkg/config"
	"github.com/reqvibe/reqvibe/pkg/eventstream"
	kafkastream "github.com/reqvibe/reqvibe/pkg/eventstream/kafka"
	"github.com/reqvibe/reqvibe/pkg/eventstream/nop"
	"github.com/reqvibe/reqvibe/pkg/llm"
	"github.com/reqvibe/reqvibe/pkg/logger"
	"github.com/reqvibe/reqvibe/pkg/ltm"
	"github.com/reqvibe/reqvibe/pkg/ltm/inmemory"
	"github.com/reqvibe/reqvibe/pkg/ltm/postgres"
	"github.com/reqvibe/reqvibe/pkg/ltm/sqlite"
	"github.com/reqvibe/reqvibe/pkg/ltm/sqlitevec"
	"github.com/reqvibe/reqvibe/pkg/memory"
	"github.com/reqvibe/reqvibe/pkg/session"
	"github.com/reqvibe/reqvibe/pkg/store"
	"github.com/reqvibe/reqvibe/pkg/tokens"
)

type ServeCommander struct {
	listen           string
	user             string
	model            string
	baseURL          string
	apiKey           string
	baseDir          string
	maxConversations uint
	maxStorageBytes  uint
	maxContextTokens uint
	ltmProvider      string
	ltmTarget        string
	ltmEnabled       bool
	ltmDimensions    uint
	embeddingModel   string
	kafkaBrokers     []string
	kafkaTopic       string
	timeout          time.Duration
	jsonLogs         bool
	debug            bool

	viper  *viper.Viper
	logger *slog.Logger
}

const serveLongDesc string = `Run the reqvibe HTTP API and MCP server.

The API serves chat completions backed by short-term memory, session
listings, and storage info. When long-term memory is enabled, an MCP
endpoint is mounted at /mcp exposing requirement search to agent tools.

Configuration follows the precedence chain flag > environment (REQVIBE_*)
> config file > default. Pass --kafka-brokers to publish a persistence
event to Kafka on every conversation save.

Examples:
  reqvibe serve
  reqvibe serve --listen :9090 --user alice
  reqvibe serve --ltm-provider sqlitevec --ltm-target reqvibe.db
  reqvibe serve --kafka-brokers localhost:9092`

const serveShortDesc string = "Run the reqvibe API and MCP server"

// boundFlags are the registry flags the serve command binds into viper.
var boundFlags = []string{
	config.FlagAPIListen,
	config.FlagUser,
	config.FlagModel,
	config.FlagBaseURL,
	config.FlagAPIKey,
	config.FlagBaseDir,
	config.FlagMaxConversations,
	config.FlagMaxStorageBytes,
	config.FlagMaxContextTokens,
	config.FlagLTMProvider,
	config.FlagLTMTarget,
	config.FlagKafkaTopic,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("initializing config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, boundFlags)
			cmder.viper = v

			cmder.listen = v.GetString("api.listen")
			cmder.user = v.GetString("user.name")
			cmder.model = v.GetString("llm.model")
			cmder.baseURL = v.GetString("llm.base_url")
			cmder.apiKey = v.GetString("llm.api_key")
			cmder.baseDir = v.GetString("storage.base_dir")
			cmder.maxConversations = v.GetUint("storage.max_conversations")
			cmder.maxStorageBytes = v.GetUint("storage.max_storage_bytes")
			cmder.maxContextTokens = v.GetUint("memory.max_context_tokens")
			cmder.ltmProvider = v.GetString("ltm.provider")
			cmder.ltmTarget = v.GetString("ltm.target")
			cmder.ltmEnabled = v.GetBool("ltm.enabled")
			cmder.ltmDimensions = v.GetUint("ltm.dimensions")
			cmder.kafkaTopic = v.GetString("eventstream.topic")
			cmder.timeout = time.Duration(v.GetUint("llm.timeout_seconds")) * time.Second

			if brokers := v.GetStringSlice("eventstream.brokers"); len(cmder.kafkaBrokers) == 0 {
				cmder.kafkaBrokers = brokers
			}
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

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUser, &cmder.user)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIKey, &cmder.apiKey)
	config.AddStringFlag(cmd, config.Flags, config.FlagBaseDir, &cmder.baseDir)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxConversations, &cmder.maxConversations)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxStorageBytes, &cmder.maxStorageBytes)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxContextTokens, &cmder.maxContextTokens)
	config.AddStringFlag(cmd, config.Flags, config.FlagLTMProvider, &cmder.ltmProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagLTMTarget, &cmder.ltmTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	cmd.Flags().StringSliceVar(&cmder.kafkaBrokers, "kafka-brokers", nil, "Kafka bootstrap brokers for persistence events")
	cmd.Flags().StringVar(&cmder.embeddingModel, "embedding-model", "", "Embedding model for vector search (empty disables it)")
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json", false, "Log in JSON")

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithSource(c.debug),
		logger.WithJSON(c.jsonLogs),
		logger.WithPretty(!c.jsonLogs),
	)

	publisher, err := c.createPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	convStore, err := store.New(c.user,
		store.WithBaseDir(c.baseDir),
		store.WithMaxConversations(int(c.maxConversations)),
		store.WithMaxStorageBytes(int(c.maxStorageBytes)),
		store.WithLogger(c.logger),
		store.WithPublisher(publisher),
	)
	if err != nil {
		return fmt.Errorf("opening conversation store: %w", err)
	}

	driver, err := c.createLTMDriver(ctx)
	if err != nil {
		return err
	}
	if driver != nil {
		defer driver.Close()
	}

	registry := session.NewRegistry(memory.New(tokens.NewHeuristicEstimator(nil)),
		session.WithStore(convStore),
		session.WithLTM(driver),
		session.WithModel(c.model),
		session.WithRegistryLogger(c.logger),
	)
	registry.LoadFromDisk()

	client := llm.New(c.apiKey,
		llm.WithBaseURL(c.baseURL),
		llm.WithTimeout(c.timeout),
	)

	mcpHandler, err := c.createMCPHandler(driver, client)
	if err != nil {
		return err
	}

	apiServer := api.NewServer(
		api.Config{
			ListenAddr:       c.listen,
			Model:            c.model,
			MaxContextTokens: int(c.maxContextTokens),
		},
		registry,
		convStore,
		client,
		c.logger,
		mcpHandler,
	)

	c.logger.Info("starting api server",
		"listen", c.listen,
		"user", c.user,
		"model", c.model,
		"ltm_provider", c.ltmProvider,
		"ltm_enabled", c.ltmEnabled,
		"mcp", mcpHandler != nil,
	)

	// Config file edits take effect on restart; watching just surfaces
	// that a restart is needed.
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		c.logger.Info("config file changed, restart to apply", "file", e.Name)
	})
	c.viper.WatchConfig()

	errChan := make(chan error, 1)
	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		registry.Sync(ctx)
		return apiServer.Shutdown()
	}
}

func (c *ServeCommander) createPublisher() (eventstream.Publisher, error) {
	if len(c.kafkaBrokers) == 0 {
		return nop.NewPublisher(), nil
	}

	publisher, err := kafkastream.NewPublisher(kafkastream.Config{
		Brokers: c.kafkaBrokers,
		Topic:   c.kafkaTopic,
		Logger:  c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	c.logger.Info("publishing persistence events",
		"brokers", c.kafkaBrokers,
		"topic", c.kafkaTopic,
	)
	return publisher, nil
}

func (c *ServeCommander) createLTMDriver(ctx context.Context) (ltm.Driver, error) {
	if !c.ltmEnabled {
		c.logger.Info("long-term memory disabled")
		return nil, nil
	}

	switch c.ltmProvider {
	case "sqlite":
		driver, err := sqlite.NewDriver(c.ltmTargetOrDefault())
		if err != nil {
			return nil, fmt.Errorf("creating sqlite ltm driver: %w", err)
		}
		c.logger.Info("using sqlite long-term memory", "path", c.ltmTargetOrDefault())
		return driver, nil
	case "sqlitevec":
		driver, err := sqlitevec.NewDriverWithDimensions(c.ltmTargetOrDefault(), int(c.ltmDimensions))
		if err != nil {
			return nil, fmt.Errorf("creating sqlite-vec ltm driver: %w", err)
		}
		c.logger.Info("using sqlite-vec long-term memory",
			"path", c.ltmTargetOrDefault(),
			"dimensions", c.ltmDimensions,
		)
		return driver, nil
	case "postgres":
		driver, err := postgres.NewDriver(ctx, c.ltmTarget)
		if err != nil {
			return nil, fmt.Errorf("creating postgres ltm driver: %w", err)
		}
		c.logger.Info("using postgres long-term memory")
		return driver, nil
	case "inmemory", "":
		c.logger.Info("using in-memory long-term memory")
		return inmemory.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unknown ltm provider %q (want sqlite, sqlitevec, postgres, or inmemory)", c.ltmProvider)
	}
}

func (c *ServeCommander) ltmTargetOrDefault() string {
	if c.ltmTarget != "" {
		return c.ltmTarget
	}
	return "reqvibe.db"
}

func (c *ServeCommander) createMCPHandler(driver ltm.Driver, client *llm.Client) (http.Handler, error) {
	if driver == nil {
		return nil, nil
	}

	mcpConfig := mcp.Config{
		Driver: driver,
		Logger: c.logger,
	}
	if c.embeddingModel != "" {
		mcpConfig.Embedder = &llmEmbedder{client: client, model: c.embeddingModel}
	}

	mcpServer, err := mcp.NewServer(mcpConfig)
	if err != nil {
		return nil, fmt.Errorf("creating mcp server: %w", err)
	}
	return mcpServer.Handler(), nil
}

// llmEmbedder adapts the batch Embed API to the single-text Embedder
// interface the MCP server wants.
type llmEmbedder struct {
	client *llm.Client
	model  string
}

func (e *llmEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.client.Embed(ctx, e.model, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding returned no vectors")
	}
	return vectors[0], nil
}
