package normalize

import (
	"regexp"
	"strings"

	"jobtriage-engine/internal/config"
)

// vendor is a known applicant-tracking platform. companyFrom names the
// strategy used to recover the hiring company hidden behind the
// vendor's sending domain.
type vendor struct {
	name        string
	domains     []string
	companyFrom string
}

func defaultVendors() []vendor {
	return []vendor{
		{name: "greenhouse", domains: []string{"greenhouse.io", "greenhouse-mail.io"}, companyFrom: "subject_prefix"},
		{name: "lever", domains: []string{"lever.co", "hire.lever.co"}, companyFrom: "local_part"},
		{name: "workday", domains: []string{"myworkday.com", "myworkdayjobs.com"}, companyFrom: "subdomain"},
		{name: "smartrecruiters", domains: []string{"smartrecruiters.com"}, companyFrom: "subject_prefix"},
		{name: "icims", domains: []string{"icims.com", "talent.icims.com"}, companyFrom: "subdomain"},
		{name: "ashby", domains: []string{"ashbyhq.com"}, companyFrom: "subject_prefix"},
		{name: "jobvite", domains: []string{"jobvite.com"}, companyFrom: "subject_prefix"},
		{name: "breezy", domains: []string{"breezy.hr"}, companyFrom: "subdomain"},
		{name: "workable", domains: []string{"workable.com"}, companyFrom: "subject_prefix"},
	}
}

func vendorFromRule(r config.VendorRule) vendor {
	return vendor{name: r.Name, domains: r.Domains, companyFrom: r.CompanyFrom}
}

// detectVendor matches the sender's domain against the vendor table.
// Subdomains of a vendor domain count as that vendor.
func (e *Engine) detectVendor(lowFrom string) (vendor, bool) {
	dom := addressDomain(lowFrom)
	if dom == "" {
		return vendor{}, false
	}
	for _, v := range e.vendors {
		for _, d := range v.domains {
			if dom == d || strings.HasSuffix(dom, "."+d) {
				return v, true
			}
		}
	}
	return vendor{}, false
}

var reVendorSubjectCompany = regexp.MustCompile(`(?i)(?:applying to|application to|application for|application with|position at|interest in) ([^,.!;\n]+)`)

// genericLocalParts never name a company.
var genericLocalParts = map[string]bool{
	"no-reply": true, "noreply": true, "donotreply": true, "do-not-reply": true,
	"notifications": true, "notification": true, "notify": true,
	"jobs": true, "careers": true, "talent": true, "recruiting": true,
	"mail": true, "hello": true, "info": true, "support": true,
}

// vendorCompany applies the vendor's configured extraction strategy.
func vendorCompany(v vendor, lowFrom, subject string) string {
	switch v.companyFrom {
	case "subdomain":
		dom := addressDomain(lowFrom)
		for _, d := range v.domains {
			if strings.HasSuffix(dom, "."+d) {
				prefix := strings.TrimSuffix(dom, "."+d)
				labels := strings.Split(prefix, ".")
				return labelToName(labels[len(labels)-1])
			}
		}
	case "local_part":
		local := addressLocalPart(lowFrom)
		if i := strings.IndexByte(local, '+'); i >= 0 {
			local = local[:i]
		}
		if local != "" && !genericLocalParts[local] {
			return labelToName(local)
		}
	case "subject_prefix":
		if m := reVendorSubjectCompany.FindStringSubmatch(subject); m != nil {
			return m[1]
		}
	}
	return ""
}

// addressDomain pulls the lowercase domain out of a From header value,
// tolerating both bare addresses and "Name <addr>" forms.
func addressDomain(lowFrom string) string {
	addr := bareAddress(lowFrom)
	i := strings.LastIndexByte(addr, '@')
	if i < 0 || i == len(addr)-1 {
		return ""
	}
	return addr[i+1:]
}

func addressLocalPart(lowFrom string) string {
	addr := bareAddress(lowFrom)
	i := strings.LastIndexByte(addr, '@')
	if i <= 0 {
		return ""
	}
	return addr[:i]
}

func bareAddress(from string) string {
	if i := strings.LastIndexByte(from, '<'); i >= 0 {
		from = from[i+1:]
	}
	return strings.Trim(strings.TrimSpace(from), "<> ")
}

var reCamelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// labelToName turns a DNS label or mailbox name into a display name:
// "acme-corp" and "acmeCorp" both become "Acme Corp".
func labelToName(label string) string {
	label = strings.NewReplacer("-", " ", "_", " ", ".", " ").Replace(label)
	label = reCamelBoundary.ReplaceAllString(label, "$1 $2")
	toks := strings.Fields(label)
	for i, t := range toks {
		toks[i] = upperFirst(t)
	}
	return strings.Join(toks, " ")
}
