package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reqvibe/reqvibe/pkg/chat"
	"github.com/reqvibe/reqvibe/pkg/llm"
	"github.com/reqvibe/reqvibe/pkg/logger"
	"github.com/reqvibe/reqvibe/pkg/session"
)

// echoCompleter replies with a canned or reflected message.
type echoCompleter struct {
	reply string
	fail  bool
	calls []int
}

func (e *echoCompleter) ChatCompletion(_ context.Context, model string, msgs []chat.Message) (*llm.ChatResult, error) {
	e.calls = append(e.calls, len(msgs))
	if e.fail {
		return nil, errors.New("upstream unavailable")
	}

	reply := e.reply
	if reply == "" {
		reply = fmt.Sprintf("echo: %s", msgs[len(msgs)-1].Content)
	}
	return &llm.ChatResult{
		Model:   model,
		Message: chat.Message{Role: chat.RoleAssistant, Content: reply},
	}, nil
}

var _ = Describe("Server", func() {
	var (
		server    *Server
		registry  *session.Registry
		completer *echoCompleter
	)

	BeforeEach(func() {
		registry = session.NewRegistry(nil)
		completer = &echoCompleter{}
		server = NewServer(
			Config{ListenAddr: ":0", Model: "deepseek-chat"},
			registry,
			nil,
			completer,
			logger.Nop(),
			nil,
		)
	})

	get := func(path string) *http.Response {
		GinkgoHelper()
		req, err := http.NewRequest(http.MethodGet, path, nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	postJSON := func(path string, body any) *http.Response {
		GinkgoHelper()
		payload, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, out any) {
		GinkgoHelper()
		data, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(data, out)).To(Succeed())
	}

	Describe("GET /ping", func() {
		It("returns pong", func() {
			resp := get("/ping")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body string
			decode(resp, &body)
			Expect(body).To(Equal("pong"))
		})
	})

	Describe("GET /v1/sessions", func() {
		It("returns an empty list with no sessions", func() {
			resp := get("/v1/sessions")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body struct {
				Count    int              `json:"count"`
				Sessions []SessionSummary `json:"sessions"`
			}
			decode(resp, &body)
			Expect(body.Count).To(BeZero())
		})

		It("lists sessions with message counts", func() {
			ctx := context.Background()
			registry.NewSession(ctx)
			registry.AddMessage(ctx, chat.RoleUser, "hello")
			registry.AddMessage(ctx, chat.RoleAssistant, "hi")

			resp := get("/v1/sessions")
			var body struct {
				Count    int              `json:"count"`
				Sessions []SessionSummary `json:"sessions"`
			}
			decode(resp, &body)

			Expect(body.Count).To(Equal(1))
			Expect(body.Sessions[0].MessageCount).To(Equal(2))
			Expect(body.Sessions[0].Current).To(BeTrue())
			Expect(body.Sessions[0].Title).To(Equal("hello"))
		})
	})

	Describe("GET /v1/sessions/:id", func() {
		It("returns a session with messages", func() {
			ctx := context.Background()
			id := registry.NewSession(ctx)
			registry.AddMessage(ctx, chat.RoleUser, "show me")

			resp := get("/v1/sessions/" + id)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var rec session.Record
			decode(resp, &rec)
			Expect(rec.ID).To(Equal(id))
			Expect(rec.Messages).To(HaveLen(1))
		})

		It("returns 404 for unknown sessions", func() {
			resp := get("/v1/sessions/nope")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("DELETE /v1/sessions", func() {
		It("clears all sessions", func() {
			ctx := context.Background()
			registry.NewSession(ctx)

			req, err := http.NewRequest(http.MethodDelete, "/v1/sessions", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			Expect(registry.Sessions()).To(BeEmpty())
		})
	})

	Describe("GET /v1/storage", func() {
		It("returns 503 when persistence is not configured", func() {
			resp := get("/v1/storage")
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Describe("POST /v1/chat", func() {
		It("runs the message through memory and the model", func() {
			resp := postJSON("/v1/chat", ChatRequest{Message: "hello there"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body ChatResponse
			decode(resp, &body)
			Expect(body.Reply).To(Equal("echo: hello there"))
			Expect(body.Model).To(Equal("deepseek-chat"))
			Expect(body.SessionID).NotTo(BeEmpty())
			Expect(body.HistoryLength).To(Equal(2))
			Expect(body.ContextMessages).To(Equal(1))
		})

		It("accumulates history across requests", func() {
			postJSON("/v1/chat", ChatRequest{Message: "first"})
			resp := postJSON("/v1/chat", ChatRequest{Message: "second"})

			var body ChatResponse
			decode(resp, &body)
			Expect(body.HistoryLength).To(Equal(4))
			// Second request's context includes the first exchange.
			Expect(completer.calls[1]).To(Equal(3))
		})

		It("uses the model named in the request", func() {
			resp := postJSON("/v1/chat", ChatRequest{Message: "hi", Model: "deepseek-reasoner"})

			var body ChatResponse
			decode(resp, &body)
			Expect(body.Model).To(Equal("deepseek-reasoner"))
		})

		It("rejects an empty message", func() {
			resp := postJSON("/v1/chat", ChatRequest{Message: "   "})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("maps completion failures to 502 and keeps the history intact", func() {
			completer.fail = true
			resp := postJSON("/v1/chat", ChatRequest{Message: "doomed"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
		})

		It("returns 503 when no completer is configured", func() {
			bare := NewServer(Config{}, session.NewRegistry(nil), nil, nil, logger.Nop(), nil)
			payload, _ := json.Marshal(ChatRequest{Message: "hi"})
			req, _ := http.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			resp, err := bare.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		})
	})
})
