package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsApplied(t *testing.T) {
	out, res := NormalizeAndValidate(Config{})
	require.True(t, res.OK())

	require.Equal(t, []string{"two_stage", "single_stage", "keyword", "baseline"}, out.Classify.ProviderOrder)
	require.Equal(t, 10, out.Classify.ProviderTimeoutSeconds)
	require.Equal(t, 0.8, out.Review.Threshold)
	require.Equal(t, 50, out.Ingest.SubBatchSize)
	require.Equal(t, 4, out.Ingest.Workers)
	require.Equal(t, 50, out.Email.MaxFetch)
	require.Equal(t, 90, out.Email.SinceDays)
}

func TestUnknownProviderRejected(t *testing.T) {
	var cfg Config
	cfg.Classify.ProviderOrder = []string{"two_stage", "psychic"}
	_, res := NormalizeAndValidate(cfg)
	require.False(t, res.OK())
}

func TestThresholdBounds(t *testing.T) {
	var cfg Config
	cfg.Review.Threshold = 1.5
	_, res := NormalizeAndValidate(cfg)
	require.False(t, res.OK())
}

func TestEmailRequiredFieldsWhenEnabled(t *testing.T) {
	var cfg Config
	cfg.Email.Enabled = true
	_, res := NormalizeAndValidate(cfg)
	require.False(t, res.OK())

	cfg.Email.IMAPHost = "imap.example.com"
	cfg.Email.Username = "user@example.com"
	out, res := NormalizeAndValidate(cfg)
	require.True(t, res.OK())
	require.Equal(t, "INBOX", out.Email.Mailbox)
	require.Equal(t, "user@example.com", out.Email.AccountID)
}

func TestVendorStrategyValidated(t *testing.T) {
	var cfg Config
	cfg.Normalize.Vendors = []VendorRule{{Name: "x", Domains: []string{"x.io"}, CompanyFrom: "magic"}}
	_, res := NormalizeAndValidate(cfg)
	require.False(t, res.OK())
}
