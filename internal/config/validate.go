package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

var knownProviders = map[string]bool{
	"two_stage":    true,
	"single_stage": true,
	"keyword":      true,
	"baseline":     true,
}

// NormalizeAndValidate returns a normalized copy plus everything a
// careful operator should know before the engine starts.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Classify.ProviderOrder = trimList(out.Classify.ProviderOrder)
	out.Normalize.NonJobSenders = trimList(out.Normalize.NonJobSenders)

	// ---- Defaults ----

	if len(out.Classify.ProviderOrder) == 0 {
		out.Classify.ProviderOrder = []string{"two_stage", "single_stage", "keyword", "baseline"}
	}
	if out.Classify.ProviderTimeoutSeconds <= 0 {
		out.Classify.ProviderTimeoutSeconds = 10
	}
	if out.Review.Threshold == 0 {
		out.Review.Threshold = 0.8
	}
	if out.Ingest.SubBatchSize <= 0 {
		out.Ingest.SubBatchSize = 50
	}
	if out.Ingest.Workers <= 0 {
		out.Ingest.Workers = 4
	}
	if out.Ingest.IntervalSeconds <= 0 {
		out.Ingest.IntervalSeconds = 300
	}
	if out.Email.MaxFetch <= 0 {
		out.Email.MaxFetch = 50
	}
	if out.Email.SinceDays <= 0 {
		out.Email.SinceDays = 90
	}

	// ---- Validation rules ----

	for _, p := range out.Classify.ProviderOrder {
		if !knownProviders[p] {
			res.addErr("classify.provider_order contains unknown provider %q", p)
		}
	}
	if last := out.Classify.ProviderOrder[len(out.Classify.ProviderOrder)-1]; last != "baseline" {
		res.addWarn("classify.provider_order does not end with baseline; it will be appended so classification stays total.")
	}

	if out.Review.Threshold < 0 || out.Review.Threshold > 1 {
		res.addErr("review.threshold must be within [0,1], got %v", out.Review.Threshold)
	}

	if out.Ingest.SubBatchSize > 1000 {
		res.addWarn("ingest.sub_batch_size is %d; large sub-batches widen the crash-loss window.", out.Ingest.SubBatchSize)
	}

	// email required fields if enabled (password lives in keychain or env)
	if out.Email.Enabled {
		if strings.TrimSpace(out.Email.IMAPHost) == "" {
			res.addErr("email.imap_host is required when email.enabled=true")
		}
		if strings.TrimSpace(out.Email.Username) == "" {
			res.addErr("email.username is required when email.enabled=true")
		}
		if strings.TrimSpace(out.Email.Mailbox) == "" {
			out.Email.Mailbox = "INBOX"
		}
		if strings.TrimSpace(out.Email.AccountID) == "" {
			out.Email.AccountID = out.Email.Username
		}
	}

	for _, v := range out.Normalize.Vendors {
		if strings.TrimSpace(v.Name) == "" || len(v.Domains) == 0 {
			res.addErr("normalize.vendors entries need a name and at least one domain")
		}
		switch v.CompanyFrom {
		case "", "subdomain", "local_part", "subject_prefix":
		default:
			res.addErr("normalize.vendors[%s].company_from %q is not a known strategy", v.Name, v.CompanyFrom)
		}
	}

	return out, res
}
