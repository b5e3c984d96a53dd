package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/medibot/pkg/storage"
	"github.com/papercomputeco/medibot/pkg/storage/sqlite"
	"github.com/papercomputeco/medibot/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DescribeDriver(func() storage.Driver {
		d, err := sqlite.NewDriver(":memory:")
		Expect(err).NotTo(HaveOccurred())
		return d
	})

	Context("with a database file", func() {
		var dbPath string

		BeforeEach(func() {
			dbPath = filepath.Join(GinkgoT().TempDir(), "sessions.db")
		})

		It("creates the file", func() {
			d, err := sqlite.NewDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps sessions across reopen", func() {
			ctx := context.Background()
			updated := time.Now().UTC().Truncate(time.Second)

			d, err := sqlite.NewDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Put(ctx, storagetest.NewSession("kept", updated, 4))).To(Succeed())
			Expect(d.Close()).To(Succeed())

			d, err = sqlite.NewDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			got, err := d.Get(ctx, "kept")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Turns).To(HaveLen(4))
			Expect(got.UpdatedAt.Equal(updated)).To(BeTrue())
		})
	})
})
