package memory

import (
	"context"
	"fmt"

	"github.com/reqvibe/reqvibe/pkg/chat"
)

const (
	// summarizeThreshold is the minimum history length before old
	// messages get condensed.
	summarizeThreshold = 10

	// summarizeKeep is how many recent messages survive a
	// summarization untouched.
	summarizeKeep = 5
)

// SummarizeOld condenses all but the most recent messages into a single
// system message when the history has grown past the threshold. Returns
// true when a summarization happened.
//
// On summarizer failure the memory is left untouched and the error is
// returned; the conversation stays usable with its full history.
func (m *ShortTermMemory) SummarizeOld(ctx context.Context, s Summarizer) (bool, error) {
	if s == nil || len(m.messages) <= summarizeThreshold {
		return false, nil
	}

	old := chat.CloneMessages(m.messages[:len(m.messages)-summarizeKeep])
	recent := chat.CloneMessages(m.messages[len(m.messages)-summarizeKeep:])

	summary, err := s.Summarize(ctx, old)
	if err != nil {
		return false, fmt.Errorf("summarizing history: %w", err)
	}
	if summary == "" {
		return false, nil
	}

	condensed := make([]chat.Message, 0, len(recent)+1)
	condensed = append(condensed, chat.NewMessage(
		chat.RoleSystem,
		"Summary of the earlier conversation: "+summary,
	))
	condensed = append(condensed, recent...)

	m.messages = condensed
	m.recount()
	return true, nil
}
