package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/medibot/api"
	"github.com/papercomputeco/medibot/pkg/answer"
	"github.com/papercomputeco/medibot/pkg/ingest"
	"github.com/papercomputeco/medibot/pkg/logger"
	"github.com/papercomputeco/medibot/pkg/pipeline"
	"github.com/papercomputeco/medibot/pkg/retrieval"
	"github.com/papercomputeco/medibot/pkg/session"
	"github.com/papercomputeco/medibot/pkg/storage"
	"github.com/papercomputeco/medibot/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/medibot/pkg/utils/test"
)

// unwritableDriver accepts reads but fails the health probe.
type unwritableDriver struct {
	*inmemory.Driver
}

func (unwritableDriver) Ping(context.Context) error {
	return errors.New("disk full")
}

var _ = Describe("Server", func() {
	var (
		ctx       context.Context
		driver    storage.Driver
		retriever *testutils.MockRetriever
		vectors   *testutils.MockVectorDriver
		server    *api.Server
	)

	newServer := func() {
		store, err := session.New(ctx, session.Config{Driver: driver, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())

		p, err := pipeline.New(pipeline.Config{
			Sessions:  store,
			Retriever: retriever,
			Assembler: answer.NewAssembler(answer.Config{
				Generator: testutils.NewMockGenerator("Drink fluids and rest."),
				Logger:    logger.Nop(),
			}),
			Logger: logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		ing, err := ingest.New(ingest.Config{
			Embedder: testutils.NewMockEmbedder(),
			Driver:   vectors,
			Logger:   logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		server, err = api.NewServer(api.Config{
			ListenAddr:     ":0",
			VectorDriver:   vectors,
			VectorProvider: "mock",
			Ingester:       ing,
		}, p, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		retriever = testutils.NewMockRetriever(retrieval.Chunk{
			Text:   "Fever is usually the body fighting an infection.",
			Score:  0.88,
			Source: "fever.json",
		})
		vectors = testutils.NewMockVectorDriver()
		newServer()
	})

	do := func(method, path, body string) (*http.Response, map[string]any) {
		var r io.Reader
		if body != "" {
			r = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, r)
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := server.App().Test(req, -1)
		Expect(err).NotTo(HaveOccurred())

		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		out := map[string]any{}
		_ = json.Unmarshal(raw, &out)
		return resp, out
	}

	It("requires a pipeline", func() {
		_, err := api.NewServer(api.Config{}, nil, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("turns handler panics into a JSON 500", func() {
		server.App().Get("/explode", func(*fiber.Ctx) error {
			panic("boom")
		})

		resp, body := do(http.MethodGet, "/explode", "")
		Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
		Expect(body["error"]).To(ContainSubstring("boom"))

		resp, _ = do(http.MethodGet, "/ping", "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("answers ping", func() {
		resp, _ := do(http.MethodGet, "/ping", "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	Describe("GET /health", func() {
		It("reports healthy storage", func() {
			resp, body := do(http.MethodGet, "/health", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["status"]).To(Equal("healthy"))
			Expect(body["session_storage"]).To(Equal("ok"))
		})

		It("reports degraded storage with 503", func() {
			driver = unwritableDriver{inmemory.NewDriver()}
			newServer()

			resp, body := do(http.MethodGet, "/health", "")
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
			Expect(body["status"]).To(Equal("degraded"))
			Expect(body["session_storage"]).To(Equal("disk full"))
		})
	})

	Describe("POST /api/chat", func() {
		It("answers and creates a session", func() {
			resp, body := do(http.MethodPost, "/api/chat", `{"query": "Why do I have a fever?"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["success"]).To(BeTrue())
			Expect(body["session_id"]).NotTo(BeEmpty())
			Expect(body["sources"]).To(ConsistOf("fever.json"))
			Expect(body["conversation_context_used"]).To(BeFalse())
			Expect(body["response"]).To(ContainSubstring(answer.Disclaimer))
		})

		It("uses context on the follow-up", func() {
			_, first := do(http.MethodPost, "/api/chat", `{"query": "Why do I have a fever?"}`)
			id := first["session_id"].(string)

			_, second := do(http.MethodPost, "/api/chat", `{"query": "Should I worry?", "session_id": "`+id+`"}`)
			Expect(second["session_id"]).To(Equal(id))
			Expect(second["conversation_context_used"]).To(BeTrue())
			Expect(second["session_status"]).To(Equal("resumed"))
		})

		It("returns a fallback with 200 when nothing is retrieved", func() {
			retriever.Chunks = nil

			resp, body := do(http.MethodPost, "/api/chat", `{"query": "What is a rash?"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["success"]).To(BeFalse())
			Expect(body["error"]).To(Equal(pipeline.ErrMsgNoEvidence))
			Expect(body["sources"]).To(BeEmpty())
		})

		It("rejects empty queries with 400", func() {
			resp, body := do(http.MethodPost, "/api/chat", `{"query": "  "}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(body["error"]).To(ContainSubstring("invalid query"))
		})

		It("rejects malformed bodies with 400", func() {
			resp, _ := do(http.MethodPost, "/api/chat", `{"query":`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("sessions", func() {
		var id string

		BeforeEach(func() {
			resp, body := do(http.MethodPost, "/api/sessions", "")
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			id = body["session_id"].(string)

			do(http.MethodPost, "/api/chat", `{"query": "Is a fever of 38C high?", "session_id": "`+id+`"}`)
		})

		It("returns the history", func() {
			resp, body := do(http.MethodGet, "/api/sessions/"+id, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["session_id"]).To(Equal(id))
			Expect(body["messages"]).To(HaveLen(2))
		})

		It("returns 404 for unknown sessions", func() {
			resp, _ := do(http.MethodGet, "/api/sessions/nope", "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			resp, _ = do(http.MethodPost, "/api/sessions/nope/clear", "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("reports status", func() {
			_, body := do(http.MethodGet, "/api/sessions/"+id+"/status", "")
			Expect(body["exists"]).To(BeTrue())
			Expect(body["message_count"]).To(BeNumerically("==", 2))

			_, body = do(http.MethodGet, "/api/sessions/nope/status", "")
			Expect(body["exists"]).To(BeFalse())
		})

		It("clears history but keeps the session", func() {
			resp, body := do(http.MethodPost, "/api/sessions/"+id+"/clear", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["success"]).To(BeTrue())

			_, status := do(http.MethodGet, "/api/sessions/"+id+"/status", "")
			Expect(status["exists"]).To(BeTrue())
			Expect(status["message_count"]).To(BeNumerically("==", 0))
		})

		It("deletes idempotently", func() {
			resp, body := do(http.MethodDelete, "/api/sessions/"+id, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["success"]).To(BeTrue())

			resp, body = do(http.MethodDelete, "/api/sessions/"+id, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["success"]).To(BeFalse())
		})
	})

	Describe("RAG", func() {
		It("reports the vector store", func() {
			resp, body := do(http.MethodGet, "/api/rag/status", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["vector_store"]).To(Equal("mock"))
			Expect(body["reachable"]).To(BeTrue())
			Expect(body["model"]).To(Equal("mock-model"))
		})

		It("ingests inline documents", func() {
			resp, body := do(http.MethodPost, "/api/rag/ingest",
				`{"documents": [{"content": "Hydration helps with fever.", "source": "notes"}]}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["success"]).To(BeTrue())
			Expect(body["documents_stored"]).To(BeNumerically("==", 1))
			Expect(vectors.Documents()).To(HaveLen(1))

			_, status := do(http.MethodGet, "/api/rag/status", "")
			Expect(status["document_count"]).To(BeNumerically("==", 1))
		})

		It("ingests server-side files", func() {
			p := filepath.Join(GinkgoT().TempDir(), "kb.txt")
			Expect(os.WriteFile(p, []byte("Cool compresses ease fever."), 0o600)).To(Succeed())

			resp, body := do(http.MethodPost, "/api/rag/ingest", `{"files": ["`+p+`"]}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["files_processed"]).To(BeNumerically("==", 1))
		})

		It("rejects empty ingest requests", func() {
			resp, _ := do(http.MethodPost, "/api/rag/ingest", `{}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			resp, _ = do(http.MethodPost, "/api/rag/ingest", `{"documents": [{"content": "  "}]}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})
})
