// Package memory implements the short-term conversation memory: the
// in-process buffer of the active session's messages and extracted
// requirements, with token-budget-aware context retrieval.
//
// A ShortTermMemory has a single owner (the session registry) and does no
// locking of its own. It is created empty when a session starts, replaced
// wholesale when the registry switches sessions, and never persists
// itself - that is the conversation store's job.
package memory

import (
	"context"

	"github.com/reqvibe/reqvibe/pkg/chat"
	"github.com/reqvibe/reqvibe/pkg/tokens"
)

// DefaultContextTokens is the default budget for ContextForAPI.
const DefaultContextTokens = 3500

// Summarizer condenses a message sequence into a short prose summary.
// The LLM client provides the production implementation.
type Summarizer interface {
	Summarize(ctx context.Context, msgs []chat.Message) (string, error)
}

// ShortTermMemory holds the active conversation and its extracted
// requirements. The cached token count always equals the estimator's
// result over the full message list after every mutation.
type ShortTermMemory struct {
	estimator tokens.Estimator

	messages     []chat.Message
	requirements []Requirement
	tokenCount   int
}

// New creates an empty ShortTermMemory. A nil estimator gets the default
// heuristic estimator (character fallback, no encoding).
func New(estimator tokens.Estimator) *ShortTermMemory {
	if estimator == nil {
		estimator = tokens.NewHeuristicEstimator(nil)
	}
	return &ShortTermMemory{estimator: estimator}
}

// AddMessage appends a message and refreshes the token count. Empty or
// whitespace-only content is dropped silently. Roles are stored as given:
// anything outside the known set passes through so histories written by
// other tools survive a round trip.
func (m *ShortTermMemory) AddMessage(role chat.Role, content string) {
	msg := chat.NewMessage(role, content)
	if msg.Content == "" {
		return
	}

	m.messages = append(m.messages, msg)
	m.recount()
}

// LoadMessages replaces (reset true) or extends (reset false) the message
// list, refreshing the token count. Used when switching into a session.
// Messages with empty content are skipped.
func (m *ShortTermMemory) LoadMessages(msgs []chat.Message, reset bool) {
	if reset {
		m.messages = nil
		m.tokenCount = 0
	}

	for _, msg := range msgs {
		cleaned := chat.NewMessage(msg.Role, msg.Content)
		if cleaned.Content == "" {
			continue
		}
		m.messages = append(m.messages, cleaned)
	}
	m.recount()
}

// Messages returns a copy of the history. When includeSystem is false,
// system messages are filtered out.
func (m *ShortTermMemory) Messages(includeSystem bool) []chat.Message {
	if includeSystem {
		return chat.CloneMessages(m.messages)
	}

	out := make([]chat.Message, 0, len(m.messages))
	for _, msg := range m.messages {
		if msg.IsSystem() {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// HistoryLength returns the number of stored messages.
func (m *ShortTermMemory) HistoryLength() int {
	return len(m.messages)
}

// TokenCount returns the cached token estimate for the full history.
func (m *ShortTermMemory) TokenCount() int {
	return m.tokenCount
}

// AddRequirement appends a requirement. No deduplication happens here.
func (m *ShortTermMemory) AddRequirement(req Requirement) {
	m.requirements = append(m.requirements, req)
}

// Requirements returns a copy of the stored requirements in insertion
// order.
func (m *ShortTermMemory) Requirements() []Requirement {
	out := make([]Requirement, len(m.requirements))
	copy(out, m.requirements)
	return out
}

// RequirementsCount returns the number of stored requirements.
func (m *ShortTermMemory) RequirementsCount() int {
	return len(m.requirements)
}

// ClearHistory drops all messages and resets the token count.
func (m *ShortTermMemory) ClearHistory() {
	m.messages = nil
	m.tokenCount = 0
}

// ClearRequirements drops all stored requirements.
func (m *ShortTermMemory) ClearRequirements() {
	m.requirements = nil
}

// ClearAll drops both the history and the requirements.
func (m *ShortTermMemory) ClearAll() {
	m.ClearHistory()
	m.ClearRequirements()
}

// ContextForAPI returns the messages to send to the LLM, bounded by
// maxTokens (DefaultContextTokens when maxTokens <= 0).
//
// When the non-system history fits the budget, the full history including
// system messages is returned. Otherwise the result is all system
// messages (summaries live there) followed by the longest contiguous
// suffix of non-system messages whose estimate fits the remaining budget.
//
// The most recent message is always included, even when it alone exceeds
// the budget. The window is advisory - the provider enforces its own hard
// limit - so returning an oversized final message beats returning nothing.
func (m *ShortTermMemory) ContextForAPI(maxTokens int) []chat.Message {
	if maxTokens <= 0 {
		maxTokens = DefaultContextTokens
	}

	if len(m.messages) == 0 {
		return nil
	}

	nonSystem := m.Messages(false)
	if m.estimator.Estimate(nonSystem) <= maxTokens {
		return m.Messages(true)
	}

	system := m.systemMessages()
	remaining := maxTokens - m.estimator.Estimate(system)

	suffix := m.fitSuffix(nonSystem, remaining)
	return append(system, suffix...)
}

// fitSuffix returns the longest suffix of msgs whose estimate is within
// budget, never shorter than one message.
func (m *ShortTermMemory) fitSuffix(msgs []chat.Message, budget int) []chat.Message {
	if len(msgs) == 0 {
		return nil
	}

	cut := len(msgs) - 1
	for cut > 0 {
		if m.estimator.Estimate(msgs[cut-1:]) > budget {
			break
		}
		cut--
	}
	return chat.CloneMessages(msgs[cut:])
}

func (m *ShortTermMemory) systemMessages() []chat.Message {
	var out []chat.Message
	for _, msg := range m.messages {
		if msg.IsSystem() {
			out = append(out, msg)
		}
	}
	return out
}

func (m *ShortTermMemory) recount() {
	m.tokenCount = m.estimator.Estimate(m.messages)
}
