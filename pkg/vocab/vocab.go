// Package vocab holds the word lists that drive keyword extraction, urgency
// triage, template selection and output safety checks. The lists are plain
// data so they can be tuned from a TOML file without code changes.
package vocab

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"sync/atomic"

	"github.com/BurntSushi/toml"
)

// Vocabulary is a set of case-insensitive term lists.
type Vocabulary struct {
	// Keywords are domain terms folded into retrieval queries. Order matters:
	// matches are reported in list order.
	Keywords []string `toml:"keywords"`

	// Emergency terms mark a query as a medical emergency.
	Emergency []string `toml:"emergency"`

	// Severity qualifiers raise a query to the high urgency tier.
	Severity []string `toml:"severity"`

	// Unsafe phrases fail the output safety check when present in a response.
	Unsafe []string `toml:"unsafe"`

	// MetaCommentary phrases are stripped from generated text because they
	// reveal the retrieval machinery to the user.
	MetaCommentary []string `toml:"meta_commentary"`

	// Symptom and Treatment terms classify the intent of a question.
	Symptom   []string `toml:"symptom"`
	Treatment []string `toml:"treatment"`
}

// Default returns the built-in vocabulary.
func Default() *Vocabulary {
	return &Vocabulary{
		Keywords: []string{
			"headache", "fever", "pain", "symptoms", "diabetes", "pressure",
			"heart", "chest", "breathing", "cough", "throat", "stomach",
			"nausea", "dizzy", "fatigue", "tired", "sleep", "stress",
			"medication", "treatment", "doctor", "hospital", "emergency",
		},
		Emergency: []string{
			"chest pain", "heart attack", "stroke", "can't breathe", "cannot breathe",
			"difficulty breathing", "trouble breathing", "shortness of breath",
			"unconscious", "passed out", "seizure", "severe bleeding", "bleeding heavily",
			"overdose", "poisoning", "anaphylaxis", "allergic reaction", "choking",
			"suicide", "suicidal", "kill myself", "end my life", "self harm",
			"coughing blood", "vomiting blood", "slurred speech", "face drooping",
		},
		Severity: []string{
			"severe", "sudden", "acute", "intense", "unbearable", "worst",
			"excruciating", "extreme", "persistent", "high fever",
		},
		Unsafe: []string{
			"stop taking your medication", "stop your medication",
			"you don't need a doctor", "you do not need a doctor",
			"no need to see a doctor", "guaranteed cure", "100% cure",
			"double the dose", "double your dose", "ignore your doctor",
		},
		MetaCommentary: []string{
			"according to the provided documents",
			"according to the provided context",
			"according to the documents",
			"according to the context",
			"based on the provided context",
			"based on the provided documents",
			"based on the context provided",
			"the provided text mentions",
			"the text mentions",
			"the documents mention",
			"the context mentions",
		},
		Symptom: []string{
			"symptom", "feel", "feeling", "hurts", "ache", "pain", "sore",
		},
		Treatment: []string{
			"treatment", "treat", "cure", "medication", "medicine", "remedy", "therapy",
		},
	}
}

// Load reads a TOML vocabulary file. Lists absent from the file keep their
// built-in defaults. A missing file yields the defaults.
func Load(path string) (*Vocabulary, error) {
	v := Default()
	if path == "" {
		return v, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary %s: %w", path, err)
	}

	var file Vocabulary
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing vocabulary %s: %w", path, err)
	}
	v.merge(&file)
	return v, nil
}

func (v *Vocabulary) merge(o *Vocabulary) {
	pick := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = slices.Clone(src)
		}
	}
	pick(&v.Keywords, o.Keywords)
	pick(&v.Emergency, o.Emergency)
	pick(&v.Severity, o.Severity)
	pick(&v.Unsafe, o.Unsafe)
	pick(&v.MetaCommentary, o.MetaCommentary)
	pick(&v.Symptom, o.Symptom)
	pick(&v.Treatment, o.Treatment)
}

// Holder publishes the current vocabulary to concurrent readers.
type Holder struct {
	v atomic.Pointer[Vocabulary]
}

// NewHolder returns a holder seeded with v, or the defaults when v is nil.
func NewHolder(v *Vocabulary) *Holder {
	if v == nil {
		v = Default()
	}
	h := &Holder{}
	h.v.Store(v)
	return h
}

// Get returns the current vocabulary. Callers must not mutate it.
func (h *Holder) Get() *Vocabulary {
	return h.v.Load()
}

// Set swaps in a new vocabulary.
func (h *Holder) Set(v *Vocabulary) {
	if v != nil {
		h.v.Store(v)
	}
}
