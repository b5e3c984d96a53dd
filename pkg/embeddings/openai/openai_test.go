package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/medibot/pkg/embeddings"
	"github.com/papercomputeco/medibot/pkg/embeddings/openai"
	"github.com/papercomputeco/medibot/pkg/vector"
)

var _ = Describe("Embedder", func() {
	var (
		server *httptest.Server
		auth   string
	)

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			if r.URL.Path != "/embeddings" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			var body struct {
				Input []string `json:"input"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)

			// Reply out of order to exercise index sorting.
			data := []map[string]any{}
			for i := len(body.Input) - 1; i >= 0; i-- {
				data = append(data, map[string]any{"index": i, "embedding": []float32{float32(i)}})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("sends the bearer token and orders results by index", func() {
		e, err := openai.NewEmbedder(openai.EmbedderConfig{BaseURL: server.URL, APIKey: "sk-test"})
		Expect(err).NotTo(HaveOccurred())

		vs, err := embeddings.EmbedAll(context.Background(), e, []string{"a", "b", "c"})
		Expect(err).NotTo(HaveOccurred())
		Expect(vs).To(Equal([][]float32{{0}, {1}, {2}}))
		Expect(auth).To(Equal("Bearer sk-test"))
	})

	It("wraps HTTP errors with ErrEmbedding", func() {
		e, _ := openai.NewEmbedder(openai.EmbedderConfig{BaseURL: server.URL + "/nope", APIKey: "k"})
		_, err := e.Embed(context.Background(), "x")
		Expect(err).To(MatchError(vector.ErrEmbedding))
	})
})
