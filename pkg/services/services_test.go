package services_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/medibot/pkg/config"
	"github.com/papercomputeco/medibot/pkg/ingest"
	"github.com/papercomputeco/medibot/pkg/logger"
	"github.com/papercomputeco/medibot/pkg/pipeline"
	"github.com/papercomputeco/medibot/pkg/services"
)

// fakeOllama answers the embed and chat endpoints with fixed payloads.
func fakeOllama() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/embed":
			var req struct {
				Input any `json:"input"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			n := 1
			if list, ok := req.Input.([]any); ok {
				n = len(list)
			}
			vecs := make([][]float32, n)
			for i := range vecs {
				vecs[i] = []float32{0.1, 0.2, 0.3, 0.4}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vecs})
		case "/api/chat":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"message": map[string]string{"role": "assistant", "content": "Rest and drink plenty of fluids."},
				"done":    true,
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

var _ = Describe("Build", func() {
	var (
		ctx    context.Context
		dir    string
		server *httptest.Server
		cfg    *config.Config
		opts   services.Options
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		dir, err = os.MkdirTemp("", "medibot-services-*")
		Expect(err).NotTo(HaveOccurred())

		server = fakeOllama()

		cfg = config.NewDefaultConfig()
		cfg.Session.Backend = "memory"
		cfg.Retrieval.Provider = "sqlite"
		cfg.Retrieval.SQLitePath = ":memory:"
		cfg.Embedding.Provider = "ollama"
		cfg.Embedding.Target = server.URL
		cfg.Embedding.Dimensions = 4
		cfg.Generation.Provider = "ollama"
		cfg.Generation.Target = server.URL
		cfg.Generation.Model = "llama3.2"

		opts = services.Options{ConfigDir: dir, Logger: logger.Nop()}
	})

	AfterEach(func() {
		server.Close()
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	It("wires a pipeline that answers from ingested documents", func() {
		s, err := services.Build(ctx, cfg, opts)
		Expect(err).NotTo(HaveOccurred())
		defer func() { Expect(s.Close(ctx)).To(Succeed()) }()

		Expect(s.Pipeline).NotTo(BeNil())
		Expect(s.Ingester).NotTo(BeNil())
		Expect(s.Pipeline.Model()).To(Equal("llama3.2"))

		res, err := s.Ingester.IngestDocuments(ctx, []ingest.Document{{
			Text:   "Common cold.\n\nTREATMENT: rest and fluids.",
			Source: "cold.txt",
		}})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.DocumentsStored).To(BeNumerically(">", 0))

		out, err := s.Pipeline.Ask(ctx, pipeline.AskRequest{Query: "How do I treat a cold?"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Success).To(BeTrue())
		Expect(out.SessionID).NotTo(BeEmpty())
		Expect(out.Response).To(ContainSubstring("Rest and drink plenty of fluids."))
		Expect(out.Sources).To(ContainElement("cold.txt"))

		status := s.Pipeline.Status(ctx, out.SessionID)
		Expect(status.TurnCount).To(Equal(2))
	})

	It("resolves the file session store under the config directory", func() {
		cfg.Session.Backend = "file"
		cfg.Session.Path = "sessions"

		s, err := services.Build(ctx, cfg, opts)
		Expect(err).NotTo(HaveOccurred())

		id, err := s.Pipeline.CreateSession(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Close(ctx)).To(Succeed())

		entries, err := os.ReadDir(filepath.Join(dir, "sessions"))
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).NotTo(BeEmpty())
		Expect(id).NotTo(BeEmpty())
	})

	It("drains async session writes on close", func() {
		cfg.Session.AsyncWrites = true
		cfg.Session.Workers = 2

		s, err := services.Build(ctx, cfg, opts)
		Expect(err).NotTo(HaveOccurred())
		_, err = s.Pipeline.CreateSession(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Close(ctx)).To(Succeed())
	})

	It("reloads a watched vocabulary file", func() {
		path := filepath.Join(dir, "vocabulary.toml")
		Expect(os.WriteFile(path, []byte(`emergency = ["first"]`), 0o600)).To(Succeed())
		cfg.Vocabulary.Path = path
		cfg.Vocabulary.Watch = true

		s, err := services.Build(ctx, cfg, opts)
		Expect(err).NotTo(HaveOccurred())
		defer func() { Expect(s.Close(ctx)).To(Succeed()) }()

		Expect(s.Vocabulary.Get().Emergency).To(Equal([]string{"first"}))

		Expect(os.WriteFile(path, []byte(`emergency = ["second"]`), 0o600)).To(Succeed())
		Eventually(func() []string {
			return s.Vocabulary.Get().Emergency
		}, 5*time.Second, 50*time.Millisecond).Should(Equal([]string{"second"}))
	})

	It("rejects a malformed duration", func() {
		cfg.Session.MaxAge = "forever"
		_, err := services.Build(ctx, cfg, opts)
		Expect(err).To(MatchError(ContainSubstring("session.max_age")))
	})

	It("rejects an unknown event stream provider", func() {
		cfg.EventStream.Provider = "carrier-pigeon"
		_, err := services.Build(ctx, cfg, opts)
		Expect(err).To(MatchError(ContainSubstring("unsupported event stream provider")))
	})

	It("requires brokers for kafka", func() {
		cfg.EventStream.Provider = "kafka"
		cfg.EventStream.Brokers = nil
		_, err := services.Build(ctx, cfg, opts)
		Expect(err).To(HaveOccurred())
	})

	It("rejects an unknown session backend", func() {
		cfg.Session.Backend = "tape"
		_, err := services.Build(ctx, cfg, opts)
		Expect(err).To(MatchError(ContainSubstring("session storage")))
	})
})

var _ = Describe("BuildIngester", func() {
	It("builds an ingester without a language model", func() {
		cfg := config.NewDefaultConfig()
		cfg.Retrieval.Provider = "sqlite"
		cfg.Retrieval.SQLitePath = ":memory:"
		cfg.Embedding.Dimensions = 4
		cfg.Generation.Provider = "nonexistent"

		s, err := services.BuildIngester(context.Background(), cfg, services.Options{Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Ingester).NotTo(BeNil())
		Expect(s.Pipeline).To(BeNil())
		Expect(s.Close(context.Background())).To(Succeed())
	})

	It("rejects an unknown embedding provider", func() {
		cfg := config.NewDefaultConfig()
		cfg.Embedding.Provider = "abacus"

		_, err := services.BuildIngester(context.Background(), cfg, services.Options{Logger: logger.Nop()})
		Expect(err).To(MatchError(ContainSubstring("creating embedder")))
	})
})
