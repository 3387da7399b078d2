package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/reqvibe/reqvibe/pkg/chat"
)

const summaryPrompt = "Summarize the following conversation about software " +
	"requirements in a few sentences. Keep every requirement that was " +
	"agreed on, including identifiers. Reply with the summary only."

// Summarizer condenses conversation history using a chat model. It
// satisfies the memory package's Summarizer interface.
type Summarizer struct {
	client *Client
	model  string
}

// NewSummarizer creates a summarizer bound to one model.
func NewSummarizer(client *Client, model string) *Summarizer {
	return &Summarizer{client: client, model: model}
}

// Summarize sends the transcript to the model and returns its summary.
func (s *Summarizer) Summarize(ctx context.Context, msgs []chat.Message) (string, error) {
	if len(msgs) == 0 {
		return "", nil
	}

	var transcript strings.Builder
	for _, msg := range msgs {
		transcript.WriteString(string(msg.Role))
		transcript.WriteString(": ")
		transcript.WriteString(msg.Content)
		transcript.WriteString("\n")
	}

	result, err := s.client.ChatCompletion(ctx, s.model, []chat.Message{
		{Role: chat.RoleSystem, Content: summaryPrompt},
		{Role: chat.RoleUser, Content: transcript.String()},
	})
	if err != nil {
		return "", fmt.Errorf("requesting summary: %w", err)
	}

	return strings.TrimSpace(result.Message.Content), nil
}
