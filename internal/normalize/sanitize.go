package normalize

import (
	"strings"
	"unicode"
)

const maxFieldLen = 64

// boilerplatePrefixes are confirmation-mail lead-ins stripped off the
// front of a candidate until none remain.
var boilerplatePrefixes = []string{
	"thank you for your ", "thank you for ", "thanks for ",
	"we received ", "we have received ", "we've received ",
	"re: ", "fwd: ", "fw: ",
}

// boilerplateTerms poison a candidate outright: a field containing one
// is template residue, not a name.
var boilerplateTerms = map[string]bool{
	"application": true, "applying": true, "apply": true,
	"thank": true, "thanks": true, "received": true,
	"update": true, "regarding": true, "submission": true,
	"confirmation": true, "unsubscribe": true,
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "at": true, "to": true,
	"for": true, "and": true, "of": true, "in": true, "on": true,
	"with": true, "your": true, "our": true, "you": true, "we": true,
	"is": true, "has": true, "been": true,
}

// CleanCompany sanitizes a company candidate. Empty means rejected.
func CleanCompany(s string) string {
	return cleanField(s, 5)
}

// CleanPosition sanitizes a job-title candidate. Empty means rejected.
func CleanPosition(s string) string {
	return cleanField(s, 6)
}

// cleanField is deterministic and a fixpoint: cleaning its own output
// changes nothing.
func cleanField(s string, maxTokens int) string {
	s = collapseSpace(s)
	for changed := true; changed; {
		changed = false
		low := strings.ToLower(s)
		for _, p := range boilerplatePrefixes {
			if strings.HasPrefix(low, p) {
				s = collapseSpace(s[len(p):])
				changed = true
				break
			}
		}
	}
	if i := strings.IndexAny(s, ".!?"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	s = strings.Trim(s, "\"'()[]{}<>*-: ")

	toks := strings.Fields(s)
	if len(toks) > 0 {
		switch strings.ToLower(toks[0]) {
		case "the", "a", "an":
			toks = toks[1:]
		}
	}
	if len(toks) == 0 {
		return ""
	}
	if len(toks) > maxTokens {
		toks = toks[:maxTokens]
	}

	allStop := true
	for i, t := range toks {
		if strings.Contains(t, "@") || strings.Contains(t, "://") {
			return ""
		}
		t = strings.TrimRight(t, ",;:-")
		if t == "" {
			return ""
		}
		lt := strings.ToLower(t)
		if boilerplateTerms[lt] {
			return ""
		}
		if !stopwords[lt] {
			allStop = false
		}
		toks[i] = upperFirst(t)
	}
	if allStop {
		return ""
	}

	out := strings.Join(toks, " ")
	if len(out) > maxFieldLen {
		return ""
	}
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// upperFirst capitalizes the first rune and leaves the rest alone so
// acronyms like IBM survive.
func upperFirst(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
