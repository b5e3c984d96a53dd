package vocab

import "strings"

// Matches returns the terms from list that occur in text, in list order.
// Matching is a case-insensitive substring test.
func Matches(text string, list []string) []string {
	if text == "" || len(list) == 0 {
		return nil
	}
	lower := strings.ToLower(text)

	var found []string
	for _, term := range list {
		if term == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(term)) {
			found = append(found, term)
		}
	}
	return found
}

// ContainsAny reports whether any term from list occurs in text.
func ContainsAny(text string, list []string) bool {
	lower := strings.ToLower(text)
	for _, term := range list {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
