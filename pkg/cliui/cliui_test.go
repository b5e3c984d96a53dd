package cliui_test

import (
	"bytes"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/medibot/pkg/cliui"
)

var _ = Describe("cliui", func() {
	It("formats short and long durations", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})

	It("marks success and failure", func() {
		Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
		Expect(cliui.Mark(errors.New("boom"))).To(Equal(cliui.FailMark))
	})

	It("passes the step error through and prints the message", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "loading knowledge base", func() error {
			return errors.New("missing file")
		})
		Expect(err).To(MatchError("missing file"))
		Expect(buf.String()).To(ContainSubstring("loading knowledge base"))
		Expect(buf.String()).To(ContainSubstring(cliui.FailMark))
	})

	It("writes a single line when the writer is not a terminal", func() {
		var buf bytes.Buffer
		Expect(cliui.Step(&buf, "embedding chunks", func() error {
			time.Sleep(200 * time.Millisecond)
			return nil
		})).To(Succeed())
		Expect(strings.Count(buf.String(), "embedding chunks")).To(Equal(1))
	})

	It("badges only elevated urgency", func() {
		Expect(cliui.UrgencyBadge("routine")).To(BeEmpty())
		Expect(cliui.UrgencyBadge("EMERGENCY")).To(ContainSubstring("EMERGENCY"))
		Expect(cliui.UrgencyBadge("high")).To(ContainSubstring("HIGH URGENCY"))
	})
})
