package retrieval_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/medibot/pkg/logger"
	"github.com/papercomputeco/medibot/pkg/retrieval"
	testutils "github.com/papercomputeco/medibot/pkg/utils/test"
	"github.com/papercomputeco/medibot/pkg/vector"
)

var _ = Describe("VectorRetriever", func() {
	var (
		ctx      context.Context
		embedder *testutils.MockEmbedder
		driver   *testutils.MockVectorDriver
		r        *retrieval.VectorRetriever
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		driver = testutils.NewMockVectorDriver()

		var err error
		r, err = retrieval.NewVectorRetriever(retrieval.Config{
			Embedder: embedder,
			Driver:   driver,
			Logger:   logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires an embedder and a driver", func() {
		_, err := retrieval.NewVectorRetriever(retrieval.Config{Driver: driver})
		Expect(err).To(MatchError(retrieval.ErrNotConfigured))
	})

	It("returns chunks in store order, capped at k", func() {
		driver.SetResults(
			vector.QueryResult{Document: vector.Document{Text: "Migraines are recurrent headaches.", Source: "migraine.json"}, Score: 0.9},
			vector.QueryResult{Document: vector.Document{Text: "Hydration helps.", Source: "wellness.txt"}, Score: 0.7},
			vector.QueryResult{Document: vector.Document{Text: "Sleep matters.", Source: "wellness.txt"}, Score: 0.5},
		)

		chunks, err := r.Retrieve(ctx, "headache", 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(HaveLen(2))
		Expect(chunks[0]).To(Equal(retrieval.Chunk{
			Text:   "Migraines are recurrent headaches.",
			Score:  0.9,
			Source: "migraine.json",
		}))
	})

	It("treats an empty store as an empty result", func() {
		chunks, err := r.Retrieve(ctx, "anything", 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(BeEmpty())
	})

	It("skips results without text", func() {
		driver.SetResults(vector.QueryResult{Document: vector.Document{ID: "blank"}})
		chunks, err := r.Retrieve(ctx, "q", 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(BeEmpty())
	})

	It("wraps embedding failures", func() {
		embedder.FailOn = "bad query"
		_, err := r.Retrieve(ctx, "bad query", 3)
		Expect(errors.Is(err, vector.ErrEmbedding)).To(BeTrue())
	})

	It("surfaces store failures", func() {
		driver.FailQuery = true
		_, err := r.Retrieve(ctx, "q", 3)
		Expect(err).To(MatchError(ContainSubstring("querying vector store")))
	})

	It("gives up once the retrieval timeout elapses", func() {
		embedder.Block = true
		bounded, err := retrieval.NewVectorRetriever(retrieval.Config{
			Embedder: embedder,
			Driver:   driver,
			Timeout:  20 * time.Millisecond,
			Logger:   logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		start := time.Now()
		_, err = bounded.Retrieve(ctx, "slow query", 3)
		Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
		Expect(errors.Is(err, vector.ErrEmbedding)).To(BeTrue())
		Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))
	})
})

var _ = Describe("Sources", func() {
	It("deduplicates in first-seen order and drops blanks", func() {
		Expect(retrieval.Sources([]retrieval.Chunk{
			{Source: "b.json"}, {Source: ""}, {Source: "a.json"}, {Source: "b.json"},
		})).To(Equal([]string{"b.json", "a.json"}))
	})
})
