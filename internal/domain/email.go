package domain

import "time"

// EmailInput is one raw mail record handed to the pipeline.
// Immutable once fetched; identified by (ProviderMessageID, AccountID).
type EmailInput struct {
	Subject           string
	BodyPlaintext     string
	FromAddress       string
	ReceivedAt        time.Time
	ProviderMessageID string
	AccountID         string
}

// DedupKey is the identity used by the sync-marker log.
func (e EmailInput) DedupKey() string {
	return e.ProviderMessageID + "|" + e.AccountID
}
