package assembler

import (
	"regexp"
	"strings"
)

// capitalizedToken matches the same candidate-entity pattern as
// original_source/src/memory/context_assembler.py's
// _extract_entities_from_query: a leading-capital word of letters, digits,
// hyphens, and apostrophes.
var capitalizedToken = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9\-']+\b`)

// firstPersonWords are whole-word markers that make "User" a candidate
// subject even when the query never capitalizes it (§4.4 step 3's "the
// literal 'User' whenever the query is first-person or mentions
// 'project'").
var firstPersonWords = []string{"i", "me", "my", "mine", "myself"}

// extractEntityNames implements §4.4 step 3's graph-leg candidate
// extraction: capitalized tokens, plus the literal "User" when the query
// reads first-person or mentions "project".
func extractEntityNames(query string) []string {
	seen := make(map[string]bool)
	var out []string

	for _, tok := range capitalizedToken.FindAllString(query, -1) {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}

	if !seen["User"] && (mentionsFirstPerson(query) || strings.Contains(strings.ToLower(query), "project")) {
		out = append(out, "User")
	}

	return out
}

func mentionsFirstPerson(query string) bool {
	for _, word := range strings.Fields(strings.ToLower(query)) {
		word = strings.Trim(word, ".,!?;:'\"")
		for _, fp := range firstPersonWords {
			if word == fp {
				return true
			}
		}
	}
	return false
}
