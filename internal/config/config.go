package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Rule is a keyword table entry: any listed needle matching the email
// text counts as a hit for the rule's tag.
type Rule struct {
	Tag string   `yaml:"tag"`
	Any []string `yaml:"any"`
}

// VendorRule describes an applicant-tracking-system sender signature
// and the strategy used to recover the company name from its mail.
type VendorRule struct {
	Name    string   `yaml:"name"`
	Domains []string `yaml:"domains"`
	// CompanyFrom selects the extraction strategy:
	// subdomain | local_part | subject_prefix
	CompanyFrom string `yaml:"company_from"`
}

type Config struct {
	App struct {
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Email struct {
		Enabled   bool   `yaml:"enabled"`
		IMAPHost  string `yaml:"imap_host"`
		IMAPPort  int    `yaml:"imap_port"`
		Username  string `yaml:"username"`
		Mailbox   string `yaml:"mailbox"`
		AccountID string `yaml:"account_id"`
		MaxFetch  int    `yaml:"max_fetch"`
		SinceDays int    `yaml:"since_days"`
	} `yaml:"email"`

	Classify struct {
		// ProviderOrder is the fallback priority list, highest tier first.
		// Known names: two_stage, single_stage, keyword, baseline.
		ProviderOrder          []string `yaml:"provider_order"`
		ProviderTimeoutSeconds int      `yaml:"provider_timeout_seconds"`

		LLM struct {
			Model             string  `yaml:"model"`
			MaxTokens         int     `yaml:"max_tokens"`
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"llm"`

		JobKeywords    []Rule `yaml:"job_keywords"`
		NonJobKeywords []Rule `yaml:"non_job_keywords"`
	} `yaml:"classify"`

	Normalize struct {
		Vendors       []VendorRule `yaml:"vendors"`
		NonJobSenders []string     `yaml:"non_job_senders"`
	} `yaml:"normalize"`

	Review struct {
		Threshold float64 `yaml:"threshold"`
	} `yaml:"review"`

	Ingest struct {
		SubBatchSize    int `yaml:"sub_batch_size"`
		Workers         int `yaml:"workers"`
		IntervalSeconds int `yaml:"interval_seconds"`
	} `yaml:"ingest"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}
