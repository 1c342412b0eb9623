package utils

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"coldreach/models"
	"coldreach/outreach"
)

// SMTPTransport sends sequence emails through a sender account's own SMTP
// server using gomail. It satisfies outreach.Transport.
type SMTPTransport struct {
	Logger *log.Logger
}

func NewSMTPTransport(logger *log.Logger) *SMTPTransport {
	return &SMTPTransport{Logger: logger}
}

func (t *SMTPTransport) Send(ctx context.Context, account *models.SenderAccount, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	password, err := Decrypt(account.SMTPPassword)
	if err != nil {
		return fmt.Errorf("failed to decrypt SMTP password: %w", err)
	}

	dialer := gomail.NewDialer(account.SMTPHost, account.SMTPPort, account.SMTPUsername, password)
	dialer.TLSConfig = &tls.Config{ServerName: account.SMTPHost}

	fromName := account.FromName
	if fromName == "" {
		fromName = account.Email
	}

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", fromName, account.Email))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), emailDomain(account.Email)))
	m.SetBody("text/plain", body)

	if err := dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}

	t.Logger.Printf("sent %q to %s via %s", subject, to, account.Email)
	return nil
}

// TestConnection dials the account's SMTP server and authenticates without
// sending anything. Used by the account test endpoint.
func (t *SMTPTransport) TestConnection(account *models.SenderAccount) error {
	password, err := Decrypt(account.SMTPPassword)
	if err != nil {
		return fmt.Errorf("failed to decrypt SMTP password: %w", err)
	}

	dialer := gomail.NewDialer(account.SMTPHost, account.SMTPPort, account.SMTPUsername, password)
	dialer.TLSConfig = &tls.Config{ServerName: account.SMTPHost}

	closer, err := dialer.Dial()
	if err != nil {
		return fmt.Errorf("SMTP connection failed: %w", err)
	}
	return closer.Close()
}

func emailDomain(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[i+1:]
	}
	return "localhost"
}

// IMAPInbox lists unread messages over IMAP. It satisfies
// outreach.InboxSource. Messages are fetched with BODY.PEEK so mail the
// reply listener does not care about stays unread for other handling.
type IMAPInbox struct {
	Logger *log.Logger
}

func NewIMAPInbox(logger *log.Logger) *IMAPInbox {
	return &IMAPInbox{Logger: logger}
}

func (ib *IMAPInbox) PollUnread(ctx context.Context, account *models.SenderAccount) ([]outreach.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	username := account.IMAPUsername
	if username == "" {
		username = account.SMTPUsername
	}
	encrypted := account.IMAPPassword
	if encrypted == "" {
		encrypted = account.SMTPPassword
	}
	password, err := Decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt IMAP password: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", account.IMAPHost, account.IMAPPort)
	imapClient, err := client.DialTLS(addr, &tls.Config{ServerName: account.IMAPHost})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer imapClient.Logout()

	if err := imapClient.Login(username, password); err != nil {
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	mailbox := account.IMAPMailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := imapClient.Select(mailbox, false); err != nil {
		return nil, fmt.Errorf("failed to select mailbox: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := imapClient.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	// Peek so the messages stay unread for whatever other handling the
	// mailbox has.
	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- imapClient.Fetch(seqset,
			[]imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	var result []outreach.RawMessage
	for msg := range messages {
		raw, err := ib.parseMessage(msg, section)
		if err != nil {
			ib.Logger.Printf("failed to parse message %d: %v", msg.SeqNum, err)
			continue
		}
		result = append(result, raw)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("error during fetch: %w", err)
	}
	return result, nil
}

func (ib *IMAPInbox) parseMessage(msg *imap.Message, section *imap.BodySectionName) (outreach.RawMessage, error) {
	raw := outreach.RawMessage{}

	if msg.Envelope != nil {
		raw.Subject = msg.Envelope.Subject
		if len(msg.Envelope.From) > 0 {
			raw.From = msg.Envelope.From[0].Address()
		}
	}

	literal := msg.GetBody(section)
	if literal == nil {
		return raw, fmt.Errorf("message body not found")
	}

	mr, err := mail.CreateReader(literal)
	if err != nil {
		return raw, fmt.Errorf("failed to create message reader: %w", err)
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return raw, fmt.Errorf("failed to read next part: %w", err)
		}

		if h, ok := p.Header.(*mail.InlineHeader); ok {
			contentType, _, _ := h.ContentType()
			if strings.Contains(contentType, "text/plain") {
				b, err := io.ReadAll(p.Body)
				if err != nil {
					return raw, fmt.Errorf("failed to read body: %w", err)
				}
				raw.Body = string(b)
			}
		}
	}
	return raw, nil
}

// Ensure implementations keep matching their contracts.
var (
	_ outreach.Transport   = (*SMTPTransport)(nil)
	_ outreach.InboxSource = (*IMAPInbox)(nil)
)
