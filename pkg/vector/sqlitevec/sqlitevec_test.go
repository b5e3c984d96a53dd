package sqlitevec_test

import (
	"context"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/medibot/pkg/logger"
	"github.com/papercomputeco/medibot/pkg/vector"
	"github.com/papercomputeco/medibot/pkg/vector/sqlitevec"
)

var _ = Describe("Driver", func() {
	var log *slog.Logger

	BeforeEach(func() {
		log = logger.Nop()
	})

	Describe("NewDriver", func() {
		It("should return an error when DBPath is empty", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ""}, log)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database path is required"))
		})

		It("should create a driver with an in-memory database", func() {
			driver, err := sqlitevec.NewDriver(sqlitevec.Config{
				DBPath:     ":memory:",
				Dimensions: 4,
			}, log)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).NotTo(BeNil())
			Expect(driver.Close()).To(Succeed())
		})

		It("should error when dimension not specified", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{
				DBPath: ":memory:",
			}, log)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("documents", func() {
		var (
			ctx    context.Context
			driver *sqlitevec.Driver
		)

		BeforeEach(func() {
			ctx = context.Background()

			var err error
			driver, err = sqlitevec.NewDriver(sqlitevec.Config{
				DBPath:     ":memory:",
				Dimensions: 4,
			}, log)
			Expect(err).NotTo(HaveOccurred())

			Expect(driver.Add(ctx, []vector.Document{
				{
					ID:        "headache-1",
					Text:      "Tension headaches feel like a tight band.",
					Source:    "headache.json",
					Metadata:  map[string]string{"condition": "headache"},
					Embedding: []float32{1, 0, 0, 0},
				},
				{
					ID:        "fever-1",
					Text:      "A fever is a temporary rise in body temperature.",
					Source:    "fever.json",
					Embedding: []float32{0, 1, 0, 0},
				},
			})).To(Succeed())
		})

		AfterEach(func() {
			Expect(driver.Close()).To(Succeed())
		})

		It("should do nothing when given empty docs", func() {
			Expect(driver.Add(ctx, []vector.Document{})).To(Succeed())
		})

		It("returns the nearest chunk first with its text and source", func() {
			results, err := driver.Query(ctx, []float32{0.9, 0.1, 0, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].ID).To(Equal("headache-1"))
			Expect(results[0].Text).To(ContainSubstring("tight band"))
			Expect(results[0].Source).To(Equal("headache.json"))
			Expect(results[0].Metadata).To(HaveKeyWithValue("condition", "headache"))
			Expect(results[0].Score).To(BeNumerically(">", results[1].Score))
		})

		It("updates existing documents in place", func() {
			Expect(driver.Add(ctx, []vector.Document{{
				ID:        "fever-1",
				Text:      "Updated fever text.",
				Source:    "fever-v2.json",
				Embedding: []float32{0, 0, 1, 0},
			}})).To(Succeed())

			n, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))

			docs, err := driver.Get(ctx, []string{"fever-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Text).To(Equal("Updated fever text."))
			Expect(docs[0].Embedding).To(Equal([]float32{0, 0, 1, 0}))
		})

		It("deletes documents", func() {
			Expect(driver.Delete(ctx, []string{"headache-1"})).To(Succeed())

			n, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))

			results, err := driver.Query(ctx, []float32{1, 0, 0, 0}, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("fever-1"))
		})
	})
})
