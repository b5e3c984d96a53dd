package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/medibot/pkg/embeddings/ollama"
	"github.com/papercomputeco/medibot/pkg/vector"
)

var _ = Describe("Embedder", func() {
	var (
		server   *httptest.Server
		lastBody map[string]any
		status   int
	)

	BeforeEach(func() {
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/embed" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			lastBody = map[string]any{}
			_ = json.NewDecoder(r.Body).Decode(&lastBody)
			if status != http.StatusOK {
				w.WriteHeader(status)
				_, _ = w.Write([]byte("boom"))
				return
			}

			n := 1
			if inputs, ok := lastBody["input"].([]any); ok {
				n = len(inputs)
			}
			vecs := make([][]float32, n)
			for i := range vecs {
				vecs[i] = []float32{float32(i), 0.5}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vecs})
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("embeds a single text with the default model", func() {
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		v, err := e.Embed(context.Background(), "fever")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal([]float32{0, 0.5}))
		Expect(lastBody["model"]).To(Equal(ollama.DefaultEmbeddingModel))
		Expect(lastBody["input"]).To(Equal("fever"))
	})

	It("embeds a batch in one request", func() {
		e, _ := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL, Model: "all-minilm"})

		vs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
		Expect(err).NotTo(HaveOccurred())
		Expect(vs).To(HaveLen(3))
		Expect(vs[2][0]).To(BeNumerically("==", 2))
		Expect(lastBody["model"]).To(Equal("all-minilm"))
	})

	It("wraps server errors with ErrEmbedding", func() {
		status = http.StatusInternalServerError
		e, _ := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})

		_, err := e.Embed(context.Background(), "fever")
		Expect(err).To(MatchError(vector.ErrEmbedding))
		Expect(err.Error()).To(ContainSubstring("boom"))
	})
})
