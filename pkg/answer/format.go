package answer

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/papercomputeco/medibot/pkg/memory"
	"github.com/papercomputeco/medibot/pkg/vocab"
)

// Disclaimer is appended to every generated answer.
const Disclaimer = "**Disclaimer:** This is for informational purposes only and is not a substitute for professional medical advice. Always consult a healthcare provider for diagnosis and treatment."

var excessBlankLines = regexp.MustCompile(`\n{3,}`)

// CleanResponse strips meta-commentary phrases that expose retrieval and
// normalizes whitespace.
func CleanResponse(text string, v *vocab.Vocabulary) string {
	if v == nil {
		v = vocab.Default()
	}

	for _, phrase := range v.MetaCommentary {
		if phrase == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(phrase) + `[,:]?[ \t]*`)
		if err != nil {
			continue
		}
		text = re.ReplaceAllString(text, "")
	}

	text = excessBlankLines.ReplaceAllString(text, "\n\n")
	return capitalizeFirst(strings.TrimSpace(text))
}

func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// AppendDisclaimer adds Disclaimer on its own paragraph unless the text
// already carries it.
func AppendDisclaimer(text string) string {
	if strings.Contains(text, Disclaimer) {
		return text
	}
	return strings.TrimRight(text, "\n ") + "\n\n" + Disclaimer
}

// Metadata is the generation footer data.
type Metadata struct {
	Model     string
	Elapsed   time.Duration
	Timestamp time.Time
}

// FormatResponse appends a footer listing deduplicated sources and
// generation metadata after memory.FooterSeparator, so the context builder
// drops it from later prompts.
func FormatResponse(text string, sources []string, md Metadata) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(text, "\n "))
	sb.WriteString("\n\n")
	sb.WriteString(memory.FooterSeparator)
	sb.WriteString("\n")

	if deduped := dedupe(sources); len(deduped) > 0 {
		sb.WriteString("**Sources:** ")
		sb.WriteString(strings.Join(deduped, ", "))
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "*Model: %s | Response time: %.2fs | %s*",
		md.Model, md.Elapsed.Seconds(), md.Timestamp.UTC().Format(time.RFC3339))
	return sb.String()
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Safety is the outcome of ValidateSafety.
type Safety struct {
	Safe   bool     `json:"safe"`
	Issues []string `json:"issues,omitempty"`
}

// ValidateSafety scans the final text for unsafe advice and a missing
// disclaimer. It never alters the text.
func ValidateSafety(text string, v *vocab.Vocabulary) Safety {
	if v == nil {
		v = vocab.Default()
	}

	var issues []string
	for _, phrase := range vocab.Matches(text, v.Unsafe) {
		issues = append(issues, fmt.Sprintf("unsafe advice: %q", phrase))
	}
	if !strings.Contains(text, Disclaimer) {
		issues = append(issues, "missing disclaimer")
	}

	return Safety{Safe: len(issues) == 0, Issues: issues}
}
