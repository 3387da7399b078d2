package store_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reqvibe/reqvibe/pkg/chat"
	"github.com/reqvibe/reqvibe/pkg/eventstream"
	"github.com/reqvibe/reqvibe/pkg/session"
	"github.com/reqvibe/reqvibe/pkg/store"
)

// countingPublisher records every published event; one event means one
// real disk write.
type countingPublisher struct {
	events []*eventstream.SessionPersistedEvent
}

func (p *countingPublisher) PublishSession(_ context.Context, event *eventstream.SessionPersistedEvent) error {
	p.events = append(p.events, event)
	return nil
}

func (p *countingPublisher) Close() error { return nil }

func record(id string, createdAt time.Time, msgs ...chat.Message) session.Record {
	return session.Record{
		ID:        id,
		Messages:  msgs,
		Title:     "Chat " + id,
		CreatedAt: createdAt,
		Model:     "deepseek-chat",
	}
}

var _ = Describe("ConversationStore", func() {
	var (
		ctx       context.Context
		baseDir   string
		publisher *countingPublisher
	)

	BeforeEach(func() {
		ctx = context.Background()
		baseDir = GinkgoT().TempDir()
		publisher = &countingPublisher{}
	})

	newStore := func(opts ...store.Option) *store.ConversationStore {
		opts = append([]store.Option{
			store.WithBaseDir(baseDir),
			store.WithPublisher(publisher),
		}, opts...)
		s, err := store.New("alice", opts...)
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	Describe("New", func() {
		It("requires a username", func() {
			_, err := store.New("")
			Expect(err).To(HaveOccurred())
		})

		It("creates the per-user directory", func() {
			newStore()
			Expect(filepath.Join(baseDir, "alice")).To(BeADirectory())
		})
	})

	Describe("save and load round-trip", func() {
		It("returns a mapping equal to what was saved", func() {
			s := newStore()
			base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

			sessions := map[string]session.Record{
				"s1": record("s1", base, chat.Message{Role: chat.RoleUser, Content: "hi"}),
				"s2": record("s2", base.Add(time.Minute),
					chat.Message{Role: chat.RoleUser, Content: "hello"},
					chat.Message{Role: chat.RoleAssistant, Content: "hey"},
				),
			}

			Expect(s.SaveSessions(ctx, sessions)).To(BeTrue())
			Expect(s.LoadSessions()).To(Equal(sessions))
		})

		It("survives a process restart (fresh store, same directory)", func() {
			s := newStore()
			base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
			sessions := map[string]session.Record{
				"s1": record("s1", base, chat.Message{Role: chat.RoleUser, Content: "persisted"}),
			}
			Expect(s.SaveSessions(ctx, sessions)).To(BeTrue())

			reopened := newStore()
			Expect(reopened.LoadSessions()).To(Equal(sessions))
		})
	})

	Describe("write-skip signature", func() {
		It("writes once for two identical saves", func() {
			s := newStore()
			sessions := map[string]session.Record{
				"s1": record("s1", time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
					chat.Message{Role: chat.RoleUser, Content: "same payload"},
				),
			}

			Expect(s.SaveSessions(ctx, sessions)).To(BeTrue())
			stat, err := os.Stat(s.Path())
			Expect(err).NotTo(HaveOccurred())
			firstWrite := stat.ModTime()

			Expect(s.SaveSessions(ctx, sessions)).To(BeTrue())
			Expect(publisher.events).To(HaveLen(1))

			stat, err = os.Stat(s.Path())
			Expect(err).NotTo(HaveOccurred())
			Expect(stat.ModTime()).To(Equal(firstWrite))
		})

		It("writes again when the payload changes", func() {
			s := newStore()
			base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
			sessions := map[string]session.Record{
				"s1": record("s1", base, chat.Message{Role: chat.RoleUser, Content: "v1"}),
			}

			Expect(s.SaveSessions(ctx, sessions)).To(BeTrue())

			rec := sessions["s1"]
			rec.Messages = append(rec.Messages, chat.Message{Role: chat.RoleAssistant, Content: "v2"})
			sessions["s1"] = rec

			Expect(s.SaveSessions(ctx, sessions)).To(BeTrue())
			Expect(publisher.events).To(HaveLen(2))
		})
	})

	Describe("count eviction", func() {
		It("keeps only the 10 most recently created of 15 sessions", func() {
			s := newStore()
			base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

			sessions := make(map[string]session.Record, 15)
			for i := 0; i < 15; i++ {
				id := fmt.Sprintf("s%02d", i)
				sessions[id] = record(id, base.Add(time.Duration(i)*time.Hour))
			}

			Expect(s.SaveSessions(ctx, sessions)).To(BeTrue())

			loaded := s.LoadSessions()
			Expect(loaded).To(HaveLen(10))
			for i := 5; i < 15; i++ {
				Expect(loaded).To(HaveKey(fmt.Sprintf("s%02d", i)))
			}
			for i := 0; i < 5; i++ {
				Expect(loaded).NotTo(HaveKey(fmt.Sprintf("s%02d", i)))
			}

			Expect(publisher.events).To(HaveLen(1))
			Expect(publisher.events[0].EvictedSessionIDs).To(HaveLen(5))
		})
	})

	Describe("byte budget truncation", func() {
		It("cuts oldest sessions first and keeps the newest intact", func() {
			s := newStore(store.WithMaxStorageBytes(2500))
			base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

			long := strings.Repeat("m", 100)
			msgs := func() []chat.Message {
				out := make([]chat.Message, 10)
				for i := range out {
					out[i] = chat.Message{Role: chat.RoleUser, Content: long}
				}
				return out
			}

			sessions := map[string]session.Record{
				"old": record("old", base, msgs()...),
				"mid": record("mid", base.Add(time.Hour), msgs()...),
				"new": record("new", base.Add(2*time.Hour), msgs()...),
			}

			Expect(s.SaveSessions(ctx, sessions)).To(BeTrue())

			stat, err := os.Stat(s.Path())
			Expect(err).NotTo(HaveOccurred())
			Expect(stat.Size()).To(BeNumerically("<=", 2500))

			loaded := s.LoadSessions()
			Expect(loaded["new"].Messages).To(HaveLen(10))
			Expect(len(loaded["old"].Messages)).To(BeNumerically("<=", len(loaded["mid"].Messages)))
			Expect(len(loaded["mid"].Messages)).To(BeNumerically("<=", len(loaded["new"].Messages)))

			Expect(publisher.events[0].TruncatedSessionIDs).NotTo(BeEmpty())
		})

		It("keeps newer message suffixes when cutting within a record", func() {
			s := newStore(store.WithMaxStorageBytes(1200))
			base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

			var msgs []chat.Message
			for i := 0; i < 8; i++ {
				msgs = append(msgs, chat.Message{
					Role:    chat.RoleUser,
					Content: fmt.Sprintf("%d-%s", i, strings.Repeat("x", 120)),
				})
			}

			sessions := map[string]session.Record{
				"only": record("only", base, msgs...),
			}

			Expect(s.SaveSessions(ctx, sessions)).To(BeTrue())

			loaded := s.LoadSessions()
			kept := loaded["only"].Messages
			Expect(len(kept)).To(BeNumerically("<", 8))
			if len(kept) > 0 {
				// Whatever survives is a suffix of the original list.
				Expect(kept[len(kept)-1].Content).To(HavePrefix("7-"))
			}
		})

		It("evicts whole sessions when metadata alone is over budget", func() {
			s := newStore(store.WithMaxStorageBytes(400))
			base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

			sessions := make(map[string]session.Record, 6)
			for i := 0; i < 6; i++ {
				id := fmt.Sprintf("s%d", i)
				rec := record(id, base.Add(time.Duration(i)*time.Hour))
				rec.Title = strings.Repeat("t", 80)
				sessions[id] = rec
			}

			Expect(s.SaveSessions(ctx, sessions)).To(BeTrue())

			stat, err := os.Stat(s.Path())
			Expect(err).NotTo(HaveOccurred())
			Expect(stat.Size()).To(BeNumerically("<=", 400))

			loaded := s.LoadSessions()
			Expect(len(loaded)).To(BeNumerically("<", 6))
			Expect(loaded).To(HaveKey("s5"))
			Expect(loaded).NotTo(HaveKey("s0"))
			Expect(publisher.events[0].EvictedSessionIDs).NotTo(BeEmpty())
		})

		It("returns false when the limit cannot hold even an empty file", func() {
			s := newStore(store.WithMaxStorageBytes(4))
			base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

			sessions := map[string]session.Record{
				"s1": record("s1", base, chat.Message{Role: chat.RoleUser, Content: "hi"}),
			}

			Expect(s.SaveSessions(ctx, sessions)).To(BeFalse())
			_, err := os.Stat(s.Path())
			Expect(os.IsNotExist(err)).To(BeTrue())
		})
	})

	Describe("LoadSessions degradation", func() {
		It("returns an empty map when no file exists", func() {
			Expect(newStore().LoadSessions()).To(BeEmpty())
		})

		It("treats a corrupt file as no prior data", func() {
			s := newStore()
			Expect(os.WriteFile(s.Path(), []byte("{not json"), 0o644)).To(Succeed())

			Expect(s.LoadSessions()).To(BeEmpty())
		})

		It("skips records without an ID", func() {
			s := newStore()
			Expect(os.WriteFile(s.Path(),
				[]byte(`{"sessions":[{"title":"no id"},{"id":"ok","title":"t","created_at":"2026-05-01T00:00:00Z","model":"m"}]}`),
				0o644,
			)).To(Succeed())

			loaded := s.LoadSessions()
			Expect(loaded).To(HaveLen(1))
			Expect(loaded).To(HaveKey("ok"))
		})
	})

	Describe("StorageInfo", func() {
		It("reports zeros before any save", func() {
			info := newStore().StorageInfo()
			Expect(info.SessionCount).To(BeZero())
			Expect(info.StorageBytes).To(BeZero())
			Expect(info.MaxConversations).To(Equal(store.DefaultMaxConversations))
			Expect(info.MaxStorageBytes).To(Equal(store.DefaultMaxStorageBytes))
		})

		It("reports counts and sizes after a save", func() {
			s := newStore()
			sessions := map[string]session.Record{
				"s1": record("s1", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)),
			}
			Expect(s.SaveSessions(ctx, sessions)).To(BeTrue())

			info := s.StorageInfo()
			Expect(info.SessionCount).To(Equal(1))
			Expect(info.StorageBytes).To(BeNumerically(">", 0))
		})
	})

	Describe("DeleteAllSessions", func() {
		It("removes the file and allows an identical re-save afterwards", func() {
			s := newStore()
			sessions := map[string]session.Record{
				"s1": record("s1", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
					chat.Message{Role: chat.RoleUser, Content: "hi"},
				),
			}

			Expect(s.SaveSessions(ctx, sessions)).To(BeTrue())
			Expect(s.DeleteAllSessions()).To(BeTrue())
			Expect(s.Path()).NotTo(BeAnExistingFile())

			// The signature reset means the same payload writes again.
			Expect(s.SaveSessions(ctx, sessions)).To(BeTrue())
			Expect(s.Path()).To(BeAnExistingFile())
		})

		It("succeeds when no file exists", func() {
			Expect(newStore().DeleteAllSessions()).To(BeTrue())
		})
	})
})
