package memory_test

import (
	"context"
	"errors"
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reqvibe/reqvibe/pkg/chat"
	"github.com/reqvibe/reqvibe/pkg/memory"
	"github.com/reqvibe/reqvibe/pkg/tokens"
)

var _ = Describe("ShortTermMemory", func() {
	var (
		est *tokens.HeuristicEstimator
		mem *memory.ShortTermMemory
	)

	BeforeEach(func() {
		est = tokens.NewHeuristicEstimator(nil)
		mem = memory.New(est)
	})

	Describe("AddMessage", func() {
		It("appends and grows the history by one", func() {
			mem.AddMessage(chat.RoleUser, "hello")
			Expect(mem.HistoryLength()).To(Equal(1))

			mem.AddMessage(chat.RoleAssistant, "hi")
			Expect(mem.HistoryLength()).To(Equal(2))
		})

		It("keeps the token count equal to the estimate over all messages", func() {
			mem.AddMessage(chat.RoleUser, "the first message")
			mem.AddMessage(chat.RoleAssistant, "and the reply to it")

			Expect(mem.TokenCount()).To(Equal(est.Estimate(mem.Messages(true))))
		})

		It("drops empty and whitespace-only content silently", func() {
			mem.AddMessage(chat.RoleUser, "")
			mem.AddMessage(chat.RoleUser, "   \n\t")
			Expect(mem.HistoryLength()).To(BeZero())
		})

		It("trims surrounding whitespace", func() {
			mem.AddMessage(chat.RoleUser, "  padded  ")
			Expect(mem.Messages(true)[0].Content).To(Equal("padded"))
		})

		It("stores unknown roles as-is", func() {
			mem.AddMessage(chat.Role("tool"), "tool output")
			Expect(mem.Messages(true)[0].Role).To(Equal(chat.Role("tool")))
		})
	})

	Describe("LoadMessages", func() {
		msgs := []chat.Message{
			{Role: chat.RoleSystem, Content: "you are helpful"},
			{Role: chat.RoleUser, Content: "question"},
			{Role: chat.RoleAssistant, Content: "answer"},
		}

		It("round-trips exactly with reset", func() {
			mem.AddMessage(chat.RoleUser, "stale")
			mem.LoadMessages(msgs, true)

			Expect(mem.Messages(true)).To(Equal(msgs))
		})

		It("appends without reset", func() {
			mem.AddMessage(chat.RoleUser, "existing")
			mem.LoadMessages(msgs, false)

			Expect(mem.HistoryLength()).To(Equal(4))
			Expect(mem.Messages(true)[0].Content).To(Equal("existing"))
		})

		It("recomputes the token count", func() {
			mem.LoadMessages(msgs, true)
			Expect(mem.TokenCount()).To(Equal(est.Estimate(msgs)))
		})
	})

	Describe("Messages", func() {
		BeforeEach(func() {
			mem.AddMessage(chat.RoleSystem, "system prompt")
			mem.AddMessage(chat.RoleUser, "hi")
			mem.AddMessage(chat.RoleAssistant, "hello")
		})

		It("filters system messages by default", func() {
			got := mem.Messages(false)
			Expect(got).To(HaveLen(2))
			for _, msg := range got {
				Expect(msg.Role).NotTo(Equal(chat.RoleSystem))
			}
		})

		It("returns a copy, not the internal slice", func() {
			got := mem.Messages(true)
			got[0].Content = "mutated"
			Expect(mem.Messages(true)[0].Content).To(Equal("system prompt"))
		})
	})

	Describe("requirements", func() {
		It("stores in insertion order and permits duplicate IDs", func() {
			mem.AddRequirement(memory.Requirement{ID: "R1", Text: "first"})
			mem.AddRequirement(memory.Requirement{ID: "R2", Text: "second"})
			mem.AddRequirement(memory.Requirement{ID: "R1", Text: "dup"})

			got := mem.Requirements()
			Expect(got).To(HaveLen(3))
			Expect(got[0].Text).To(Equal("first"))
			Expect(got[2].ID).To(Equal("R1"))
			Expect(mem.RequirementsCount()).To(Equal(3))
		})
	})

	Describe("clearing", func() {
		It("resets history, tokens and requirements independently", func() {
			mem.AddMessage(chat.RoleUser, "hello there")
			mem.AddRequirement(memory.Requirement{ID: "R1"})

			mem.ClearHistory()
			Expect(mem.HistoryLength()).To(BeZero())
			Expect(mem.TokenCount()).To(BeZero())
			Expect(mem.RequirementsCount()).To(Equal(1))

			mem.ClearRequirements()
			Expect(mem.RequirementsCount()).To(BeZero())
		})
	})

	Describe("ContextForAPI", func() {
		It("returns everything when under budget", func() {
			mem.AddMessage(chat.RoleSystem, "prompt")
			mem.AddMessage(chat.RoleUser, "short")
			mem.AddMessage(chat.RoleAssistant, "reply")

			got := mem.ContextForAPI(memory.DefaultContextTokens)
			Expect(got).To(Equal(mem.Messages(true)))
		})

		It("returns a contiguous recent suffix within budget", func() {
			// 100 messages of ~25 tokens each (~100 chars of content).
			for i := 0; i < 100; i++ {
				mem.AddMessage(chat.RoleUser, fmt.Sprintf("%03d %s", i, strings.Repeat("x", 96)))
			}

			budget := 200
			got := mem.ContextForAPI(budget)

			Expect(est.Estimate(got)).To(BeNumerically("<=", budget))
			Expect(got).NotTo(BeEmpty())

			// Suffix property: the returned messages are exactly the
			// tail of the full history, in order.
			all := mem.Messages(true)
			Expect(got).To(Equal(all[len(all)-len(got):]))
		})

		It("always includes the most recent message even when it alone exceeds the budget", func() {
			mem.AddMessage(chat.RoleUser, strings.Repeat("y", 4000))

			got := mem.ContextForAPI(10)
			Expect(got).To(HaveLen(1))
			Expect(got[0].Content).To(HaveLen(4000))
		})

		It("keeps system messages when windowing", func() {
			mem.AddMessage(chat.RoleSystem, "summary of earlier talk")
			for i := 0; i < 50; i++ {
				mem.AddMessage(chat.RoleUser, strings.Repeat("z", 100))
			}

			got := mem.ContextForAPI(100)
			Expect(got[0].Role).To(Equal(chat.RoleSystem))
		})

		It("uses the default budget for non-positive maxTokens", func() {
			mem.AddMessage(chat.RoleUser, "hello")
			Expect(mem.ContextForAPI(0)).To(HaveLen(1))
		})

		It("returns nil for an empty history", func() {
			Expect(mem.ContextForAPI(100)).To(BeNil())
		})
	})
})

type stubSummarizer struct {
	summary string
	err     error
	gotLen  int
}

func (s *stubSummarizer) Summarize(_ context.Context, msgs []chat.Message) (string, error) {
	s.gotLen = len(msgs)
	return s.summary, s.err
}

var _ = Describe("SummarizeOld", func() {
	var mem *memory.ShortTermMemory

	BeforeEach(func() {
		mem = memory.New(nil)
	})

	fill := func(n int) {
		for i := 0; i < n; i++ {
			mem.AddMessage(chat.RoleUser, fmt.Sprintf("message %d", i))
		}
	}

	It("does nothing below the threshold", func() {
		fill(10)
		s := &stubSummarizer{summary: "unused"}

		done, err := mem.SummarizeOld(context.Background(), s)
		Expect(err).NotTo(HaveOccurred())
		Expect(done).To(BeFalse())
		Expect(mem.HistoryLength()).To(Equal(10))
	})

	It("condenses old messages into one system message and keeps the recent five", func() {
		fill(12)
		s := &stubSummarizer{summary: "they discussed requirements"}

		done, err := mem.SummarizeOld(context.Background(), s)
		Expect(err).NotTo(HaveOccurred())
		Expect(done).To(BeTrue())

		// 7 old messages summarized, 5 recent kept.
		Expect(s.gotLen).To(Equal(7))
		Expect(mem.HistoryLength()).To(Equal(6))

		got := mem.Messages(true)
		Expect(got[0].Role).To(Equal(chat.RoleSystem))
		Expect(got[0].Content).To(ContainSubstring("they discussed requirements"))
		Expect(got[5].Content).To(Equal("message 11"))
	})

	It("leaves memory untouched when the summarizer fails", func() {
		fill(12)
		s := &stubSummarizer{err: errors.New("model unavailable")}

		done, err := mem.SummarizeOld(context.Background(), s)
		Expect(err).To(HaveOccurred())
		Expect(done).To(BeFalse())
		Expect(mem.HistoryLength()).To(Equal(12))
	})
})
