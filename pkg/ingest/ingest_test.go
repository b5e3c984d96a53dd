package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/medibot/pkg/ingest"
	"github.com/papercomputeco/medibot/pkg/logger"
	testutils "github.com/papercomputeco/medibot/pkg/utils/test"
	"github.com/papercomputeco/medibot/pkg/vector"
)

var _ = Describe("Ingester", func() {
	var (
		ctx      context.Context
		embedder *testutils.MockEmbedder
		driver   *testutils.MockVectorDriver
		ing      *ingest.Ingester
		dir      string
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		driver = testutils.NewMockVectorDriver()
		dir = GinkgoT().TempDir()

		var err error
		ing, err = ingest.New(ingest.Config{
			Embedder:  embedder,
			Driver:    driver,
			Chunking:  ingest.ChunkOptions{Size: 80, Separators: ingest.MedicalSeparators},
			BatchSize: 2,
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires an embedder and a store", func() {
		_, err := ingest.New(ingest.Config{Driver: driver})
		Expect(err).To(MatchError(ingest.ErrNotConfigured))
	})

	It("loads, chunks, embeds and stores files", func() {
		kb := filepath.Join(dir, "kb.json")
		Expect(os.WriteFile(kb, []byte(`[{"content": "Migraine causes throbbing pain.\n\nTREATMENT: rest in a dark room and take prescribed medication.", "condition": "migraine"}]`), 0o600)).To(Succeed())
		notes := filepath.Join(dir, "notes.txt")
		Expect(os.WriteFile(notes, []byte("Drink water."), 0o600)).To(Succeed())

		res, err := ing.IngestFiles(ctx, []string{kb, notes, filepath.Join(dir, "missing.txt")})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Success).To(BeTrue())
		Expect(res.FilesProcessed).To(Equal(2))
		Expect(res.DocumentsLoaded).To(Equal(2))
		Expect(res.ChunksCreated).To(Equal(3))
		Expect(res.DocumentsStored).To(Equal(3))
		Expect(res.Errors).To(HaveLen(1))

		docs := driver.Documents()
		Expect(docs).To(HaveLen(3))
		Expect(docs[1].Text).To(HavePrefix("TREATMENT:"))
		Expect(docs[1].Metadata).To(HaveKeyWithValue("condition", "migraine"))
		Expect(docs[1].Metadata).To(HaveKeyWithValue("chunk_id", "1"))
		Expect(docs[1].Metadata).To(HaveKeyWithValue("chunking_strategy", "medical"))
		Expect(docs[2].Source).To(Equal(notes))
		for _, d := range docs {
			Expect(d.Embedding).NotTo(BeEmpty())
		}
		Expect(embedder.Batches()).To(Equal(2))
		Expect(embedder.Texts()).To(HaveLen(3))
	})

	It("derives stable chunk ids", func() {
		docs := []ingest.Document{{Text: "Sleep well.", Source: "a.txt"}}

		_, err := ing.IngestDocuments(ctx, docs)
		Expect(err).NotTo(HaveOccurred())
		_, err = ing.IngestDocuments(ctx, docs)
		Expect(err).NotTo(HaveOccurred())

		stored := driver.Documents()
		Expect(stored).To(HaveLen(2))
		Expect(stored[0].ID).To(Equal(stored[1].ID))
	})

	It("fails when nothing loads", func() {
		res, err := ing.IngestFiles(ctx, []string{filepath.Join(dir, "nope.json")})
		Expect(err).To(MatchError(ingest.ErrNoDocuments))
		Expect(res.Success).To(BeFalse())
	})

	It("reports embedding failures", func() {
		embedder.FailOn = "Broken text."
		_, err := ing.IngestDocuments(ctx, []ingest.Document{{Text: "Broken text.", Source: "x"}})
		Expect(err).To(MatchError(vector.ErrEmbedding))
	})

	It("stores in batches", func() {
		var docs []ingest.Document
		for range 5 {
			docs = append(docs, ingest.Document{Text: strings.Repeat("a", 10), Source: "b.txt"})
		}
		res, err := ing.IngestDocuments(ctx, docs)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.DocumentsStored).To(Equal(5))
	})
})
