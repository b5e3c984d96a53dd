// Package storagetest holds behavior shared by every storage.Driver test suite.
package storagetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/medibot/pkg/conversation"
	"github.com/papercomputeco/medibot/pkg/storage"
)

// NewSession builds a session with n alternating turns updated at updated.
func NewSession(id string, updated time.Time, n int) *conversation.Session {
	s := conversation.NewSession(id, updated.Add(-time.Hour))
	for i := range n {
		role := conversation.RoleUser
		if i%2 == 1 {
			role = conversation.RoleAssistant
		}
		s.Append(conversation.Turn{Role: role, Content: "turn", Timestamp: updated})
	}
	s.UpdatedAt = updated
	return s
}

// DescribeDriver registers the shared driver contract. newDriver is called
// before each spec and the driver is closed after it.
func DescribeDriver(newDriver func() storage.Driver) {
	var (
		ctx    context.Context
		driver storage.Driver
		now    time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
		now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("Put and Get", func() {
		It("round trips a session with turns and metadata", func() {
			s := NewSession("session-a", now, 2)
			s.Turns[0].Metadata = map[string]any{"sources": "guide"}
			Expect(driver.Put(ctx, s)).To(Succeed())

			got, err := driver.Get(ctx, "session-a")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal("session-a"))
			Expect(got.Turns).To(HaveLen(2))
			Expect(got.Turns[0].Role).To(Equal(conversation.RoleUser))
			Expect(got.Turns[1].Role).To(Equal(conversation.RoleAssistant))
			Expect(got.Turns[0].Metadata).To(HaveKeyWithValue("sources", "guide"))
			Expect(got.UpdatedAt.Equal(now)).To(BeTrue())
			Expect(got.Metadata).To(HaveKeyWithValue("source", "medibot"))
		})

		It("overwrites an existing record", func() {
			s := NewSession("session-a", now, 1)
			Expect(driver.Put(ctx, s)).To(Succeed())

			s.Append(conversation.Turn{Role: conversation.RoleAssistant, Content: "more", Timestamp: now.Add(time.Minute)})
			Expect(driver.Put(ctx, s)).To(Succeed())

			got, err := driver.Get(ctx, "session-a")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Turns).To(HaveLen(2))
		})

		It("returns NotFoundError for unknown ids", func() {
			_, err := driver.Get(ctx, "missing")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("Delete", func() {
		It("reports whether a record existed", func() {
			Expect(driver.Put(ctx, NewSession("session-a", now, 0))).To(Succeed())

			existed, err := driver.Delete(ctx, "session-a")
			Expect(err).NotTo(HaveOccurred())
			Expect(existed).To(BeTrue())

			existed, err = driver.Delete(ctx, "session-a")
			Expect(err).NotTo(HaveOccurred())
			Expect(existed).To(BeFalse())

			_, err = driver.Get(ctx, "session-a")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("ListRecent", func() {
		It("orders by last update and honors the limit", func() {
			Expect(driver.Put(ctx, NewSession("old", now.Add(-2*time.Hour), 0))).To(Succeed())
			Expect(driver.Put(ctx, NewSession("new", now, 0))).To(Succeed())
			Expect(driver.Put(ctx, NewSession("mid", now.Add(-time.Hour), 0))).To(Succeed())

			all, err := driver.ListRecent(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(3))
			Expect(all[0].ID).To(Equal("new"))
			Expect(all[1].ID).To(Equal("mid"))
			Expect(all[2].ID).To(Equal("old"))

			two, err := driver.ListRecent(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(two).To(HaveLen(2))
			Expect(two[0].ID).To(Equal("new"))
		})
	})

	Describe("Ping", func() {
		It("succeeds on a healthy backend", func() {
			Expect(driver.Ping(ctx)).To(Succeed())
		})
	})
}
