package memory_test

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/medibot/pkg/conversation"
	"github.com/papercomputeco/medibot/pkg/memory"
	"github.com/papercomputeco/medibot/pkg/vocab"
)

func sessionWith(turns ...conversation.Turn) *conversation.Session {
	s := conversation.NewSession("s", time.Now())
	for _, t := range turns {
		s.Append(t)
	}
	return s
}

func user(content string) conversation.Turn {
	return conversation.Turn{Role: conversation.RoleUser, Content: content, Timestamp: time.Now()}
}

func assistant(content string) conversation.Turn {
	return conversation.Turn{Role: conversation.RoleAssistant, Content: content, Timestamp: time.Now()}
}

var _ = Describe("Summarize", func() {
	It("renders an empty session as an empty string", func() {
		Expect(memory.Summarize(sessionWith(), memory.Options{})).To(BeEmpty())
		Expect(memory.Summarize(nil, memory.Options{})).To(BeEmpty())
	})

	It("renders turns oldest first with role prefixes", func() {
		s := sessionWith(user("I have a headache"), assistant("Rest and hydrate."))
		Expect(memory.Summarize(s, memory.Options{})).To(Equal(
			"User: I have a headache\nAssistant: Rest and hydrate."))
	})

	It("keeps only the most recent turns", func() {
		s := sessionWith(user("one"), assistant("two"), user("three"), assistant("four"))
		Expect(memory.Summarize(s, memory.Options{MaxTurns: 2})).To(Equal(
			"User: three\nAssistant: four"))
	})

	It("strips the footer from assistant turns", func() {
		s := sessionWith(assistant("Drink water.\n\n---\n*Sources: guide*"))
		Expect(memory.Summarize(s, memory.Options{})).To(Equal("Assistant: Drink water."))
	})

	It("truncates long assistant turns to 200 characters", func() {
		s := sessionWith(assistant(strings.Repeat("a", 300)))
		out := memory.Summarize(s, memory.Options{})
		Expect(out).To(Equal("Assistant: " + strings.Repeat("a", 200) + "..."))
	})

	It("does not truncate user turns individually", func() {
		long := strings.Repeat("b", 300)
		s := sessionWith(user(long))
		Expect(memory.Summarize(s, memory.Options{})).To(Equal("User: " + long))
	})

	It("bounds the whole summary by the character budget", func() {
		s := sessionWith(user(strings.Repeat("c", 100)), user(strings.Repeat("d", 100)))
		out := memory.Summarize(s, memory.Options{MaxChars: 50})
		Expect(out).To(HaveLen(53))
		Expect(out).To(HaveSuffix("..."))
	})

	It("is pure", func() {
		s := sessionWith(user("fever"), assistant("ok"))
		Expect(memory.Summarize(s, memory.Options{})).To(Equal(memory.Summarize(s, memory.Options{})))
	})
})

var _ = Describe("Augment", func() {
	keywords := vocab.Default().Keywords

	It("is a no-op for empty context", func() {
		Expect(memory.Augment("what now?", "", keywords)).To(Equal("what now?"))
		Expect(memory.Augment("what now?", "   ", keywords)).To(Equal("what now?"))
	})

	It("is a no-op when nothing matches", func() {
		Expect(memory.Augment("what now?", "User: hello there", keywords)).To(Equal("what now?"))
	})

	It("appends at most three keywords in vocabulary order", func() {
		ctx := "User: stress keeps me awake, my chest feels tight, fever and headache too"
		Expect(memory.Augment("what should I do?", ctx, keywords)).To(Equal(
			"what should I do? (context: headache fever chest)"))
	})

	It("extracts at most five keywords", func() {
		ctx := "headache fever pain symptoms diabetes pressure heart"
		Expect(memory.ExtractKeywords(ctx, keywords)).To(Equal(
			[]string{"headache", "fever", "pain", "symptoms", "diabetes"}))
	})
})
