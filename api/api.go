// Package api exposes the conversation system over HTTP: session
// inspection, storage info, and a chat endpoint that runs a message
// through the short-term memory and the configured model.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/reqvibe/reqvibe/pkg/chat"
	"github.com/reqvibe/reqvibe/pkg/llm"
	"github.com/reqvibe/reqvibe/pkg/session"
	"github.com/reqvibe/reqvibe/pkg/store"
)

// Completer is the slice of the LLM client the chat endpoint needs.
type Completer interface {
	ChatCompletion(ctx context.Context, model string, msgs []chat.Message) (*llm.ChatResult, error)
}

// ErrorResponse is the JSON error envelope for all API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server is the API server for managing and querying conversations.
type Server struct {
	config    Config
	registry  *session.Registry
	store     *store.ConversationStore
	completer Completer
	logger    *slog.Logger
	app       *fiber.App
}

// NewServer creates a new API server. The registry is required; store
// and completer may be nil, which disables the storage and chat
// endpoints respectively. An mcpHandler, when non-nil, is mounted
// under /mcp.
func NewServer(
	config Config,
	registry *session.Registry,
	convStore *store.ConversationStore,
	completer Completer,
	logger *slog.Logger,
	mcpHandler http.Handler,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:    config,
		registry:  registry,
		store:     convStore,
		completer: completer,
		logger:    logger,
		app:       app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/sessions", s.handleListSessions)
	app.Get("/v1/sessions/:id", s.handleGetSession)
	app.Delete("/v1/sessions", s.handleDeleteSessions)
	app.Get("/v1/storage", s.handleStorageInfo)
	app.Post("/v1/chat", s.handleChat)

	if mcpHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(mcpHandler))
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
