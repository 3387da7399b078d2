package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/reqvibe/reqvibe/pkg/chat"
	"github.com/reqvibe/reqvibe/pkg/session"
)

// SessionSummary is the list representation of a session: everything
// except the message bodies.
type SessionSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	CreatedAt    string `json:"created_at"`
	Model        string `json:"model,omitempty"`
	MessageCount int    `json:"message_count"`
	Current      bool   `json:"current,omitempty"`
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
}

// ChatResponse carries the assistant reply and the context that
// produced it.
type ChatResponse struct {
	SessionID       string `json:"session_id"`
	Reply           string `json:"reply"`
	Model           string `json:"model"`
	ContextMessages int    `json:"context_messages"`
	HistoryLength   int    `json:"history_length"`
	TokenCount      int    `json:"token_count"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListSessions returns summaries of all sessions, newest first.
func (s *Server) handleListSessions(c *fiber.Ctx) error {
	records := s.registry.Sessions()
	current := s.registry.CurrentID()

	summaries := make([]SessionSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, summarize(rec, current))
	}

	return c.JSON(fiber.Map{
		"count":    len(summaries),
		"sessions": summaries,
	})
}

// handleGetSession returns one session with its full message history.
func (s *Server) handleGetSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id parameter required"})
	}

	rec, ok := s.registry.Get(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "session not found"})
	}

	return c.JSON(rec)
}

// handleDeleteSessions drops all sessions and the on-disk history.
func (s *Server) handleDeleteSessions(c *fiber.Ctx) error {
	s.registry.ClearAll()
	return c.SendStatus(fiber.StatusNoContent)
}

// handleStorageInfo reports the on-disk state of the conversation store.
func (s *Server) handleStorageInfo(c *fiber.Ctx) error {
	if s.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "persistence not configured"})
	}
	return c.JSON(s.store.StorageInfo())
}

// handleChat runs one message through memory, the model, and back.
func (s *Server) handleChat(c *fiber.Ctx) error {
	if s.completer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "llm not configured"})
	}

	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "message is required"})
	}

	model := req.Model
	if model == "" {
		model = s.config.Model
	}

	ctx := c.Context()
	s.registry.AddMessage(ctx, chat.RoleUser, req.Message)

	window := s.registry.Memory().ContextForAPI(s.config.MaxContextTokens)
	result, err := s.completer.ChatCompletion(ctx, model, window)
	if err != nil {
		s.logger.Warn("chat completion failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "chat completion failed"})
	}

	s.registry.AddMessage(ctx, chat.RoleAssistant, result.Message.Content)
	s.registry.Sync(ctx)

	return c.JSON(ChatResponse{
		SessionID:       s.registry.CurrentID(),
		Reply:           result.Message.Content,
		Model:           result.Model,
		ContextMessages: len(window),
		HistoryLength:   s.registry.Memory().HistoryLength(),
		TokenCount:      s.registry.Memory().TokenCount(),
	})
}

func summarize(rec session.Record, currentID string) SessionSummary {
	return SessionSummary{
		ID:           rec.ID,
		Title:        rec.Title,
		CreatedAt:    rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Model:        rec.Model,
		MessageCount: len(rec.Messages),
		Current:      rec.ID == currentID,
	}
}
