package answer

import (
	"fmt"
	"strings"
)

const fallbackGreeting = "I understand we've been discussing your health concerns, and "

// Fallback renders the static apology used whenever the pipeline cannot
// produce a generated answer. hadHistory personalizes the opening.
func Fallback(query string, hadHistory bool, errMsg string) string {
	var sb strings.Builder
	if hadHistory {
		sb.WriteString(fallbackGreeting)
	}
	fmt.Fprintf(&sb, "I apologize, but I'm experiencing technical difficulties with your question about \"%s\".\n\n", query)
	sb.WriteString("**For your health needs:**\n")
	sb.WriteString("- **Urgent concerns:** Contact your healthcare provider immediately\n")
	sb.WriteString("- **Emergencies:** Call 911 or visit your nearest emergency room\n")
	sb.WriteString("- **General questions:** Try rephrasing your question or consult trusted medical websites\n\n")
	sb.WriteString("**Remember:** I provide educational health information only and cannot replace professional medical advice.\n\n")
	fmt.Fprintf(&sb, "*Technical note: %s*", errMsg)
	return sb.String()
}
