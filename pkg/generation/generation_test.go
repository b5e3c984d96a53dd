package generation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/medibot/pkg/logger"
)

// captured records the last request a fake provider saw.
type captured struct {
	path    string
	query   string
	headers http.Header
	body    []byte
}

func fakeProvider(status int, response string, got *captured) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		got.headers = r.Header.Clone()
		got.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
}

var _ = Describe("New", func() {
	It("falls back to ollama when no key is available", func() {
		GinkgoT().Setenv("OPENAI_API_KEY", "")
		c, err := New(Config{Provider: "openai", Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Provider()).To(Equal(ProviderOllama))
		Expect(c.Model()).To(Equal("llama3.2"))
	})

	It("defaults to gemini", func() {
		c, err := New(Config{APIKey: "k", Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Provider()).To(Equal(ProviderGemini))
		Expect(c.Model()).To(Equal("gemini-1.5-flash"))
	})

	It("reads keys from the environment", func() {
		GinkgoT().Setenv("ANTHROPIC_API_KEY", "env-key")
		c, err := New(Config{Provider: "anthropic", Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Provider()).To(Equal(ProviderAnthropic))
	})

	It("rejects unknown providers", func() {
		_, err := New(Config{Provider: "unsupported", APIKey: "key", Logger: logger.Nop()})
		Expect(errors.Is(err, ErrUnsupportedProvider)).To(BeTrue())
	})
})

var _ = Describe("Client", func() {
	var (
		ctx context.Context
		got captured
	)

	BeforeEach(func() {
		ctx = context.Background()
		got = captured{}
	})

	req := Request{System: "You are MediBot.", Prompt: "What helps a headache?"}

	It("calls Gemini generateContent with the system instruction", func() {
		server := fakeProvider(http.StatusOK,
			`{"candidates":[{"content":{"parts":[{"text":"Rest and "},{"text":"fluids."}]}}]}`, &got)
		defer server.Close()

		c, err := New(Config{Provider: "gemini", APIKey: "g-key", BaseURL: server.URL, Temperature: 0.3})
		Expect(err).NotTo(HaveOccurred())

		text, err := c.Generate(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("Rest and fluids."))

		Expect(got.path).To(Equal("/v1beta/models/gemini-1.5-flash:generateContent"))
		Expect(got.query).To(Equal("key=g-key"))

		var body geminiRequest
		Expect(json.Unmarshal(got.body, &body)).To(Succeed())
		Expect(body.SystemInstruction.Parts[0].Text).To(Equal("You are MediBot."))
		Expect(body.Contents[0].Parts[0].Text).To(Equal("What helps a headache?"))
		Expect(body.GenerationConfig.Temperature).To(Equal(0.3))
	})

	It("calls OpenAI chat completions with a system message", func() {
		server := fakeProvider(http.StatusOK,
			`{"choices":[{"message":{"role":"assistant","content":"Drink water."}}]}`, &got)
		defer server.Close()

		c, err := New(Config{Provider: "openai", APIKey: "test-key", BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		text, err := c.Generate(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("Drink water."))
		Expect(got.path).To(Equal("/v1/chat/completions"))
		Expect(got.headers.Get("Authorization")).To(Equal("Bearer test-key"))

		var body openAIRequest
		Expect(json.Unmarshal(got.body, &body)).To(Succeed())
		Expect(body.Messages).To(HaveLen(2))
		Expect(body.Messages[0].Role).To(Equal("system"))
	})

	It("calls Anthropic messages with version header", func() {
		server := fakeProvider(http.StatusOK,
			`{"content":[{"type":"text","text":"See a doctor if it persists."}]}`, &got)
		defer server.Close()

		c, err := New(Config{Provider: "anthropic", APIKey: "a-key", BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		text, err := c.Generate(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("See a doctor if it persists."))
		Expect(got.path).To(Equal("/v1/messages"))
		Expect(got.headers.Get("x-api-key")).To(Equal("a-key"))
		Expect(got.headers.Get("anthropic-version")).To(Equal("2023-06-01"))

		var body anthropicRequest
		Expect(json.Unmarshal(got.body, &body)).To(Succeed())
		Expect(body.System).To(Equal("You are MediBot."))
	})

	It("calls Ollama chat without streaming", func() {
		server := fakeProvider(http.StatusOK,
			`{"message":{"role":"assistant","content":"Rest."},"done":true}`, &got)
		defer server.Close()

		c, err := New(Config{Provider: "ollama", BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		text, err := c.Generate(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("Rest."))
		Expect(got.path).To(Equal("/api/chat"))

		var body ollamaChatRequest
		Expect(json.Unmarshal(got.body, &body)).To(Succeed())
		Expect(body.Stream).To(BeFalse())
	})

	It("reports provider errors with the status code", func() {
		server := fakeProvider(http.StatusTooManyRequests, `{"error":{"message":"quota"}}`, &got)
		defer server.Close()

		c, err := New(Config{Provider: "openai", APIKey: "k", BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = c.Generate(ctx, req)
		Expect(err).To(MatchError(ContainSubstring("status 429")))
	})

	It("treats blank completions as errors", func() {
		server := fakeProvider(http.StatusOK, `{"message":{"content":"   "}}`, &got)
		defer server.Close()

		c, err := New(Config{Provider: "ollama", BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = c.Generate(ctx, req)
		Expect(errors.Is(err, ErrEmptyCompletion)).To(BeTrue())
	})

	It("gives up after the timeout", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer server.Close()

		c, err := New(Config{Provider: "ollama", BaseURL: server.URL, Timeout: 50 * time.Millisecond})
		Expect(err).NotTo(HaveOccurred())

		_, err = c.Generate(ctx, req)
		Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
	})
})
