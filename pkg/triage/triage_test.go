package triage_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/medibot/pkg/triage"
	"github.com/papercomputeco/medibot/pkg/vocab"
)

var _ = Describe("Classify", func() {
	v := vocab.Default()

	DescribeTable("tiers",
		func(query string, tier triage.Tier, emergency bool) {
			a := triage.Classify(query, v)
			Expect(a.Tier).To(Equal(tier))
			Expect(a.Emergency).To(Equal(emergency))
		},
		Entry("routine question", "How much water should I drink?", triage.TierRoutine, false),
		Entry("severity qualifier", "I have a severe headache and fever", triage.TierHigh, false),
		Entry("sudden onset", "Sudden dizziness when standing", triage.TierHigh, false),
		Entry("emergency term", "My father has chest pain and is sweating", triage.TierEmergency, true),
		Entry("emergency wins over severity", "severe difficulty breathing", triage.TierEmergency, true),
		Entry("self harm", "I want to end my life", triage.TierEmergency, true),
	)

	It("reports the matched terms", func() {
		a := triage.Classify("acute and severe pain", v)
		Expect(a.Matched).To(ConsistOf("severe", "acute"))
	})

	It("uses a custom vocabulary", func() {
		custom := &vocab.Vocabulary{Emergency: []string{"purple spots"}}
		Expect(triage.Classify("purple spots on my legs", custom).Tier).To(Equal(triage.TierEmergency))
		Expect(triage.Classify("severe itch", custom).Tier).To(Equal(triage.TierRoutine))
	})

	It("falls back to defaults for a nil vocabulary", func() {
		Expect(triage.Classify("severe cramps", nil).Tier).To(Equal(triage.TierHigh))
	})
})
