package normalize

import (
	"regexp"
	"strings"

	"jobtriage-engine/internal/domain"
)

// statusCues map subject phrasing onto an application status. Order is
// priority: an offer phrase wins over an interview phrase in the same
// subject.
var statusCues = []struct {
	Status domain.Status
	Tag    string
	Any    []string
}{
	{domain.StatusOffer, "status_offer_cue", []string{
		"pleased to offer", "offer of employment", "offer letter",
		"excited to offer", "extend an offer", "job offer",
	}},
	{domain.StatusDeclined, "status_declined_cue", []string{
		"regret to inform", "unfortunately", "not selected",
		"other candidates", "not be moving forward", "not moving forward",
		"pursue other applicants", "no longer under consideration",
	}},
	{domain.StatusInterview, "status_interview_cue", []string{
		"interview", "phone screen", "schedule a call", "schedule time",
		"next round", "meet the team",
	}},
	{domain.StatusApplied, "status_applied_cue", []string{
		"application received", "thank you for applying",
		"we received your application", "application was sent",
		"application has been received", "successfully submitted",
		"thank you for your application", "application confirmation",
	}},
}

// StatusFromSubject scans the subject against the ordered cue tables
// and reports the first status it recognizes plus its audit tag.
func StatusFromSubject(subject string) (domain.Status, string, bool) {
	low := strings.ToLower(subject)
	for _, cue := range statusCues {
		for _, needle := range cue.Any {
			if strings.Contains(low, needle) {
				return cue.Status, cue.Tag, true
			}
		}
	}
	return "", "", false
}

// companySubjectPatterns extract the company from templated subject
// lines. First match wins; captures run to the first clause break.
var companySubjectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)application (?:for|to) (?:the )?.+? at ([^,.!;\n]+)`),
	regexp.MustCompile(`(?i)thank you for (?:your |submitting your )?(?:recent )?application (?:to|at|with) ([^,.!;\n]+)`),
	regexp.MustCompile(`(?i)thank you for applying (?:to|at|with) ([^,.!;\n]+)`),
	regexp.MustCompile(`(?i)your application (?:to|at|with) ([^,.!;\n]+)`),
	regexp.MustCompile(`(?i)your interest in (?:joining |working at |working with )?([^,.!;\n]+)`),
	regexp.MustCompile(`^([A-Z][A-Za-z0-9&' -]{0,40})\. Your application`),
}

// positionSubjectPatterns extract the job title from templated subject
// lines.
var positionSubjectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:position|role)\s*:\s*([^,.!;\n]+)`),
	regexp.MustCompile(`(?i)(?:apply(?:ing)?|application) (?:for|to) (?:the )?([^,.!;\n]+?) (?:at|with) `),
	regexp.MustCompile(`(?i)\bthe ([^,.!;\n]+?) (?:position|role|opening)\b`),
}

// rePositionLabelLine recognizes "Position: X" style lines near the top
// of the body.
var rePositionLabelLine = regexp.MustCompile(`(?i)^\s*(?:position|role|job title)\s*[:\-]\s*(.+)$`)

// roleAnchors are title words that mark a clause as naming a job title.
var roleAnchors = map[string]bool{
	"engineer": true, "developer": true, "programmer": true,
	"manager": true, "analyst": true, "designer": true,
	"scientist": true, "architect": true, "consultant": true,
	"specialist": true, "coordinator": true, "director": true,
	"administrator": true,
}

// fillerBeforeRole are tokens dropped from the front of an anchored
// title candidate.
var fillerBeforeRole = map[string]bool{
	"for": true, "the": true, "a": true, "an": true, "our": true,
	"your": true, "as": true, "of": true, "to": true, "at": true,
	"with": true, "position": true, "role": true, "new": true,
	"open": true,
}

// roleAnchorTitle finds a job title by anchoring on a known title word
// and pulling in up to three preceding qualifier tokens, clause by
// clause so the candidate never spans punctuation.
func roleAnchorTitle(subject string) string {
	clauses := strings.FieldsFunc(subject, func(r rune) bool {
		switch r {
		case ',', '.', ':', ';', '!', '?', '(', ')', '[', ']', '|':
			return true
		}
		return false
	})
	for _, clause := range clauses {
		toks := strings.Fields(clause)
		for i, t := range toks {
			if !roleAnchors[strings.ToLower(strings.Trim(t, `"'`))] {
				continue
			}
			start := i - 3
			if start < 0 {
				start = 0
			}
			for start < i && fillerBeforeRole[strings.ToLower(toks[start])] {
				start++
			}
			return strings.Join(toks[start:i+1], " ")
		}
	}
	return ""
}
