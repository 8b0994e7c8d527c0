package normalize

import (
	"net/mail"
	"strings"

	"jobtriage-engine/internal/config"
	"jobtriage-engine/internal/domain"
)

// Evidence is the raw email material the rules run against.
type Evidence struct {
	Subject string
	Body    string
	From    string
}

// Engine applies the deterministic post-classification rules. It holds
// only immutable tables, so one Engine serves all workers.
type Engine struct {
	vendors       []vendor
	nonJobSenders []string
}

// defaultNonJobSenders match transactional senders that are never job
// mail no matter what a model said.
var defaultNonJobSenders = []string{
	"billing", "invoice", "receipt", "payments", "statement",
	"newsletter", "marketing",
}

// jobSubjectKeywords let a subject overrule the sender demotion.
var jobSubjectKeywords = []string{
	"application", "interview", "position", "recruit", "job",
	"career", "offer", "candidate", "talent", "hiring",
}

func New(cfg config.Config) *Engine {
	e := &Engine{
		vendors:       defaultVendors(),
		nonJobSenders: append([]string(nil), defaultNonJobSenders...),
	}
	for _, r := range cfg.Normalize.Vendors {
		e.vendors = append(e.vendors, vendorFromRule(r))
	}
	e.nonJobSenders = append(e.nonJobSenders, cfg.Normalize.NonJobSenders...)
	return e
}

// Normalize rewrites a raw classification using subject, sender, and
// body evidence. It is pure and idempotent: normalizing its own output
// with the same evidence returns it unchanged.
func (e *Engine) Normalize(ev Evidence, raw domain.Result) domain.Result {
	res := raw.WithStage("normalize")
	subject := collapseSpace(ev.Subject)
	lowSubject := strings.ToLower(subject)
	lowFrom := strings.ToLower(strings.TrimSpace(ev.From))

	// Transactional senders short-circuit everything below unless the
	// subject itself talks about a job.
	if e.isNonJobSender(lowFrom) && !containsAny(lowSubject, jobSubjectKeywords) {
		res.IsJobRelated = false
		res.Confidence = 0.2
		res.Company = CleanCompany(res.Company)
		res.Position = CleanPosition(res.Position)
		return res.WithStage("nonjob_sender").WithNote("nonjob_sender_demoted")
	}

	subjectEvidence := false

	if st, tag, ok := StatusFromSubject(subject); ok {
		if st != res.Status {
			res.Status = st
			if res.Confidence < 0.7 {
				res.Confidence = 0.7
			}
			res = res.WithStage("status_override").WithNote(tag)
		}
		subjectEvidence = true
	}

	vend, hasVendor := e.detectVendor(lowFrom)
	if hasVendor {
		res = res.WithNote("vendor_" + vend.name)
	}

	if company, src := e.extractCompany(subject, ev.From, lowFrom, vend, hasVendor); company != "" {
		res.Company = company
		res = res.WithStage("company_" + src).WithNote("company_from_" + src)
		if src == "subject" || src == "vendor" {
			subjectEvidence = true
		}
	}

	if pos, src := extractPosition(subject, ev.Body); pos != "" {
		res.Position = pos
		res = res.WithStage("position_" + src).WithNote("position_from_" + src)
		if src == "subject" {
			subjectEvidence = true
		}
	}

	// Whatever survived, model output included, must leave sanitized.
	res.Company = CleanCompany(res.Company)
	res.Position = CleanPosition(res.Position)

	if subjectEvidence {
		if res.Confidence < 0.8 {
			res.Confidence = 0.8
		}
		res = res.WithNote("subject_evidence")
	}

	res.Confidence = domain.ClampConfidence(res.Confidence)
	return res
}

func (e *Engine) isNonJobSender(lowFrom string) bool {
	for _, pat := range e.nonJobSenders {
		pat = strings.ToLower(strings.TrimSpace(pat))
		if pat != "" && strings.Contains(lowFrom, pat) {
			return true
		}
	}
	return false
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// extractCompany tries the sources in fixed precedence order and
// returns the first candidate that survives sanitization, tagged with
// where it came from.
func (e *Engine) extractCompany(subject, rawFrom, lowFrom string, vend vendor, hasVendor bool) (string, string) {
	for _, re := range companySubjectPatterns {
		if m := re.FindStringSubmatch(subject); m != nil {
			if c := CleanCompany(m[1]); c != "" {
				return c, "subject"
			}
		}
	}
	if hasVendor {
		if c := CleanCompany(vendorCompany(vend, lowFrom, subject)); c != "" {
			return c, "vendor"
		}
	}
	if c := CleanCompany(e.companyFromDisplayName(rawFrom)); c != "" {
		return c, "display_name"
	}
	if c := CleanCompany(e.companyFromDomain(lowFrom)); c != "" {
		return c, "domain"
	}
	return "", ""
}

// roleSuffixes are trailing team labels stripped from sender display
// names, longest first.
var roleSuffixes = []string{
	"talent acquisition team", "talent acquisition", "recruiting team",
	"recruitment team", "hiring team", "people team", "talent team",
	"careers team", "hr team", "recruiting", "recruitment", "careers",
	"talent", "hiring", "hr",
}

func (e *Engine) companyFromDisplayName(rawFrom string) string {
	addr, err := mail.ParseAddress(strings.TrimSpace(rawFrom))
	if err != nil || addr.Name == "" {
		return ""
	}
	name := collapseSpace(addr.Name)
	for changed := true; changed; {
		changed = false
		low := strings.ToLower(name)
		for _, suf := range roleSuffixes {
			if strings.HasSuffix(low, suf) {
				name = strings.TrimRight(strings.TrimSpace(name[:len(name)-len(suf)]), "-|,@/")
				name = strings.TrimSpace(name)
				changed = true
				break
			}
		}
	}
	return name
}

// genericMailDomains never identify an employer.
var genericMailDomains = map[string]bool{
	"gmail.com": true, "googlemail.com": true, "outlook.com": true,
	"hotmail.com": true, "yahoo.com": true, "icloud.com": true,
	"proton.me": true, "protonmail.com": true, "aol.com": true,
}

// mailInfraLabels are subdomain labels skipped when reducing a sending
// domain to an organization name.
var mailInfraLabels = map[string]bool{
	"mail": true, "smtp": true, "email": true, "e": true, "em": true,
	"mta": true, "bounce": true, "bounces": true, "send": true,
	"notify": true, "notifications": true, "news": true, "info": true,
	"hello": true, "updates": true, "careers": true, "jobs": true,
	"talent": true, "recruiting": true, "apply": true, "hire": true,
	"no-reply": true, "noreply": true,
}

func (e *Engine) companyFromDomain(lowFrom string) string {
	dom := addressDomain(lowFrom)
	if dom == "" || genericMailDomains[dom] {
		return ""
	}
	if _, isVendor := e.detectVendor(lowFrom); isVendor {
		return ""
	}
	labels := strings.Split(dom, ".")
	if len(labels) < 2 {
		return ""
	}
	// walk left to right past mail-infra labels, stop before the TLD
	for i := 0; i < len(labels)-1; i++ {
		if !mailInfraLabels[labels[i]] {
			return labelToName(labels[i])
		}
	}
	return ""
}

func extractPosition(subject, body string) (string, string) {
	for _, re := range positionSubjectPatterns {
		if m := re.FindStringSubmatch(subject); m != nil {
			if p := CleanPosition(m[1]); p != "" {
				return p, "subject"
			}
		}
	}
	if p := CleanPosition(roleAnchorTitle(subject)); p != "" {
		return p, "subject"
	}

	lines := strings.Split(body, "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}
	for _, line := range lines {
		if m := rePositionLabelLine.FindStringSubmatch(line); m != nil {
			if p := CleanPosition(m[1]); p != "" {
				return p, "body"
			}
		}
	}
	return "", ""
}
