// Package triage assigns an urgency tier to a raw user query.
//
// Classification only ever looks at the query text. It never consults
// conversation history or retrieved material, so an earlier turn can neither
// mask nor downgrade the urgency of a later one.
package triage

import "github.com/papercomputeco/medibot/pkg/vocab"

// Tier is an urgency level.
type Tier string

const (
	TierRoutine   Tier = "routine"
	TierHigh      Tier = "high"
	TierEmergency Tier = "emergency"
)

// Assessment is the outcome of Classify.
type Assessment struct {
	Tier      Tier     `json:"tier"`
	Emergency bool     `json:"emergency"`
	Matched   []string `json:"matched,omitempty"`
}

// Classify scans query for emergency terms and severity qualifiers.
// Emergency terms win over severity qualifiers.
func Classify(query string, v *vocab.Vocabulary) Assessment {
	if v == nil {
		v = vocab.Default()
	}

	if found := vocab.Matches(query, v.Emergency); len(found) > 0 {
		return Assessment{Tier: TierEmergency, Emergency: true, Matched: found}
	}
	if found := vocab.Matches(query, v.Severity); len(found) > 0 {
		return Assessment{Tier: TierHigh, Matched: found}
	}
	return Assessment{Tier: TierRoutine}
}
