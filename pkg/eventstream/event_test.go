package eventstream_test

import (
	"encoding/json"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/medibot/pkg/eventstream"
)

var _ = Describe("Event", func() {
	It("marshals ExchangePersistedEvent with expected top-level keys", func() {
		now := time.Unix(1735689600, 0).UTC()
		event := eventstream.NewExchangePersistedEvent(now)
		event.Source.Model = "gemini-1.5-flash"
		event.Session = eventstream.SessionMeta{ID: "sess-1", Status: "resumed"}
		event.Timing = eventstream.TimingMeta{
			StartedAt:   now.Add(-2 * time.Second),
			CompletedAt: now,
			DurationMs:  2000,
		}
		event.Exchange = eventstream.ExchangeMeta{
			Query:    "What helps a headache?",
			Response: "Rest and fluids.",
			Success:  true,
			Urgency:  "routine",
			Sources:  []string{"headache.json"},
		}

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("source"))
		Expect(got).To(HaveKey("session"))
		Expect(got).To(HaveKey("timing"))
		Expect(got).To(HaveKey("exchange"))
		Expect(got["exchange"]).To(HaveKeyWithValue("success", true))
	})

	It("fills envelope fields", func() {
		event := eventstream.NewExchangePersistedEvent(time.Now())
		Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(event.EventType).To(Equal("medibot.exchange.persisted"))
		Expect(strings.HasPrefix(event.EventID, "evt_")).To(BeTrue())
		Expect(event.Source.Service).To(Equal("medibot"))
	})

	It("provides ErrNilEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilEvent).To(MatchError("nil exchange event"))
	})
})
