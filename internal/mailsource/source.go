package mailsource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"jobtriage-engine/internal/domain"
	"jobtriage-engine/internal/events"
)

// Source fetches unseen mail over IMAP and turns it into pipeline
// inputs. One Source maps to one mailbox on one account.
type Source struct {
	Addr     string
	Username string
	Password string
	Mailbox  string
	Hub      *events.Hub
}

func New(host string, port int, username, password, mailbox string, hub *events.Hub) *Source {
	if port <= 0 {
		port = 993
	}
	return &Source{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: username,
		Password: password,
		Mailbox:  mailbox,
		Hub:      hub,
	}
}

// Batch is one fetched set of unseen mail plus the live session needed
// to acknowledge it. Messages keep their unseen flag on the server
// until Ack runs, so a crash or a failed write leaves them eligible
// for the next fetch cycle.
type Batch struct {
	Inputs []domain.EmailInput

	c    *imapclient.Client
	uids map[string][]imap.UID
}

// FetchBatch connects, pulls up to max unseen messages newer than
// since, and parses them. Nothing is flagged \Seen here; the caller
// acknowledges persisted messages through Batch.Ack and then closes
// the session with Batch.Close.
func (s *Source) FetchBatch(ctx context.Context, accountID string, since time.Time, max int) (*Batch, error) {
	c, err := dialAndLogin(ctx, s.Addr, s.Username, s.Password)
	if err != nil {
		return nil, err
	}

	if err := selectMailbox(c, s.Mailbox); err != nil {
		logoutAndClose(c)
		return nil, err
	}

	if s.Hub != nil {
		s.Hub.Publish(events.MakeEvent("", events.TypeFetchStarted, 1, map[string]any{
			"account": accountID,
		}))
	}

	msgs, err := fetchUnseen(ctx, c, since, max)
	if err != nil {
		logoutAndClose(c)
		return nil, err
	}

	b := &Batch{
		Inputs: make([]domain.EmailInput, 0, len(msgs)),
		c:      c,
		uids:   make(map[string][]imap.UID, len(msgs)),
	}

	for _, m := range msgs {
		messageID, plain, htmlBody, subject := parseRFC822(m.RawMessage, m.Subject)
		if messageID == "" {
			// some senders omit Message-Id; derive a stable stand-in
			messageID = "derived:" + hashString(m.From+"|"+subject+"|"+m.Date.UTC().Format(time.RFC3339))
		}

		body := strings.TrimSpace(plain)
		if body == "" && htmlBody != "" {
			body = htmlToText(htmlBody)
		}

		in := domain.EmailInput{
			Subject:           subject,
			BodyPlaintext:     body,
			FromAddress:       m.From,
			ReceivedAt:        m.Date,
			ProviderMessageID: messageID,
			AccountID:         accountID,
		}
		b.Inputs = append(b.Inputs, in)
		b.uids[in.DedupKey()] = append(b.uids[in.DedupKey()], m.UID)
	}

	if s.Hub != nil {
		s.Hub.Publish(events.MakeEvent("", events.TypeParseDone, 1, map[string]any{
			"account": accountID,
			"count":   len(b.Inputs),
		}))
	}

	return b, nil
}

// Ack flags the messages behind the given dedup keys \Seen. Call it
// only with keys the pipeline reports as durably stored; everything
// else stays unseen and is served again next cycle. Unknown keys are
// ignored.
func (b *Batch) Ack(keys []string) error {
	if b == nil || b.c == nil || len(keys) == 0 {
		return nil
	}
	var uids []imap.UID
	for _, k := range keys {
		uids = append(uids, b.uids[k]...)
	}
	return markSeen(b.c, uids)
}

// Close logs out of the IMAP session. Safe to call after Ack and on a
// nil batch.
func (b *Batch) Close() {
	if b == nil || b.c == nil {
		return
	}
	logoutAndClose(b.c)
	b.c = nil
}
