package mailsource

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBatchAckAndCloseWithoutSession(t *testing.T) {
	var b *Batch
	require.NoError(t, b.Ack([]string{"m1|acct"}))
	b.Close()

	b2 := &Batch{}
	require.NoError(t, b2.Ack([]string{"m1|acct"}))
	b2.Close()
}

func TestNewSourceDefaultsPort(t *testing.T) {
	s := New("imap.example.com", 0, "u", "p", "INBOX", nil)
	require.Equal(t, "imap.example.com:993", s.Addr)
}
