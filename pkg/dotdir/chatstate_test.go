package dotdir_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/medibot/pkg/dotdir"
)

var _ = Describe("dotdir.Manager chat state", func() {
	var (
		tmpDir string
		m      *dotdir.Manager
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		m = dotdir.NewManager()
	})

	It("returns nil when no chat state exists", func() {
		state, err := m.LoadChatState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(BeNil())
	})

	It("saves and loads chat state", func() {
		now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		Expect(m.SaveChatState(&dotdir.ChatState{
			SessionID: "abc",
			APITarget: "http://localhost:8000",
			UpdatedAt: now,
		}, tmpDir)).To(Succeed())

		state, err := m.LoadChatState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state.SessionID).To(Equal("abc"))
		Expect(state.APITarget).To(Equal("http://localhost:8000"))
		Expect(state.UpdatedAt.Equal(now)).To(BeTrue())
	})

	It("returns error for nil state", func() {
		Expect(m.SaveChatState(nil, tmpDir)).To(HaveOccurred())
	})

	It("returns error for invalid JSON", func() {
		Expect(os.WriteFile(filepath.Join(tmpDir, "chat.json"), []byte("{"), 0o600)).To(Succeed())
		_, err := m.LoadChatState(tmpDir)
		Expect(err).To(HaveOccurred())
	})

	It("clears chat state idempotently", func() {
		Expect(m.SaveChatState(&dotdir.ChatState{SessionID: "abc"}, tmpDir)).To(Succeed())
		Expect(m.ClearChatState(tmpDir)).To(Succeed())
		Expect(m.ClearChatState(tmpDir)).To(Succeed())

		state, err := m.LoadChatState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(BeNil())
	})
})
