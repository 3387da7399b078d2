package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reqvibe/reqvibe/pkg/chat"
	"github.com/reqvibe/reqvibe/pkg/llm"
)

var _ = Describe("Client", func() {
	var (
		ctx      context.Context
		server   *httptest.Server
		requests []*http.Request
		bodies   [][]byte
		respond  func(w http.ResponseWriter, r *http.Request)
	)

	BeforeEach(func() {
		ctx = context.Background()
		requests = nil
		bodies = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests = append(requests, r)
			body := make([]byte, r.ContentLength)
			if r.ContentLength > 0 {
				_, err := r.Body.Read(body)
				_ = err
			}
			bodies = append(bodies, body)
			respond(w, r)
		}))
		DeferCleanup(server.Close)
	})

	newClient := func() *llm.Client {
		return llm.New("test-key", llm.WithBaseURL(server.URL))
	}

	Describe("ChatCompletion", func() {
		It("sends the history and returns the first choice", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"id":    "cmpl-1",
					"model": "deepseek-chat",
					"choices": []map[string]any{{
						"index":         0,
						"message":       map[string]string{"role": "assistant", "content": "hello back"},
						"finish_reason": "stop",
					}},
					"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
				})
			}

			result, err := newClient().ChatCompletion(ctx, "deepseek-chat", []chat.Message{
				{Role: chat.RoleUser, Content: "hello"},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Message.Role).To(Equal(chat.RoleAssistant))
			Expect(result.Message.Content).To(Equal("hello back"))
			Expect(result.FinishReason).To(Equal("stop"))
			Expect(result.Usage.TotalTokens).To(Equal(15))

			Expect(requests).To(HaveLen(1))
			Expect(requests[0].URL.Path).To(Equal("/v1/chat/completions"))
			Expect(requests[0].Header.Get("Authorization")).To(Equal("Bearer test-key"))
		})

		It("rejects an empty history locally", func() {
			respond = func(http.ResponseWriter, *http.Request) {}
			_, err := newClient().ChatCompletion(ctx, "deepseek-chat", nil)
			Expect(err).To(HaveOccurred())
			Expect(requests).To(BeEmpty())
		})

		It("surfaces the provider error message", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"auth"}}`))
			}

			_, err := newClient().ChatCompletion(ctx, "deepseek-chat", []chat.Message{
				{Role: chat.RoleUser, Content: "hi"},
			})
			Expect(err).To(MatchError(ContainSubstring("invalid api key")))
		})

		It("errors when no choices come back", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"model":"deepseek-chat","choices":[]}`))
			}

			_, err := newClient().ChatCompletion(ctx, "deepseek-chat", []chat.Message{
				{Role: chat.RoleUser, Content: "hi"},
			})
			Expect(err).To(MatchError(ContainSubstring("no choices")))
		})
	})

	Describe("ListModels", func() {
		It("returns sorted model IDs and caches the listing", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"data":[{"id":"deepseek-reasoner"},{"id":"deepseek-chat"}]}`))
			}

			client := newClient()

			models, err := client.ListModels(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(models).To(HaveLen(2))
			Expect(models[0].ID).To(Equal("deepseek-chat"))
			Expect(models[1].ID).To(Equal("deepseek-reasoner"))

			_, err = client.ListModels(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(requests).To(HaveLen(1))
		})
	})

	Describe("Embed", func() {
		It("returns vectors in input order using the response indexes", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"data":[
					{"index":1,"embedding":[0.5,0.5]},
					{"index":0,"embedding":[1.0,0.0]}
				]}`))
			}

			vectors, err := newClient().Embed(ctx, "embed-model", []string{"first", "second"})
			Expect(err).NotTo(HaveOccurred())
			Expect(vectors).To(HaveLen(2))
			Expect(vectors[0]).To(Equal([]float32{1.0, 0.0}))
			Expect(vectors[1]).To(Equal([]float32{0.5, 0.5}))
		})

		It("short-circuits on empty input", func() {
			respond = func(http.ResponseWriter, *http.Request) {}
			vectors, err := newClient().Embed(ctx, "embed-model", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(vectors).To(BeNil())
			Expect(requests).To(BeEmpty())
		})

		It("errors on a vector count mismatch", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1]}]}`))
			}

			_, err := newClient().Embed(ctx, "embed-model", []string{"a", "b"})
			Expect(err).To(MatchError(ContainSubstring("1 vectors for 2 inputs")))
		})
	})
})

var _ = Describe("Summarizer", func() {
	It("wraps the transcript in a summary prompt", func() {
		var gotBody map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			_, _ = w.Write([]byte(`{"model":"deepseek-chat","choices":[{"index":0,"message":{"role":"assistant","content":" a tidy summary "},"finish_reason":"stop"}]}`))
		}))
		DeferCleanup(server.Close)

		client := llm.New("", llm.WithBaseURL(server.URL))
		s := llm.NewSummarizer(client, "deepseek-chat")

		summary, err := s.Summarize(context.Background(), []chat.Message{
			{Role: chat.RoleUser, Content: "the system shall log in users"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(summary).To(Equal("a tidy summary"))

		msgs, ok := gotBody["messages"].([]any)
		Expect(ok).To(BeTrue())
		Expect(msgs).To(HaveLen(2))
		first, ok := msgs[0].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(first["role"]).To(Equal("system"))
	})

	It("returns empty for an empty transcript without calling the API", func() {
		s := llm.NewSummarizer(llm.New(""), "deepseek-chat")
		summary, err := s.Summarize(context.Background(), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary).To(BeEmpty())
	})
})
