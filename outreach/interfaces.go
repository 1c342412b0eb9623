package outreach

import (
	"context"

	"coldreach/models"
)

// Transport delivers a rendered message through a sender account.
// Implementations must only return nil once the upstream server has
// accepted the message; sequence state is advanced on that signal alone.
type Transport interface {
	Send(ctx context.Context, account *models.SenderAccount, to, subject, body string) error
}

// RawMessage is one unread inbound message, reduced to the fields the
// reply listener needs.
type RawMessage struct {
	From    string
	Subject string
	Body    string
}

// InboxSource lists the unread messages in an account's inbox.
type InboxSource interface {
	PollUnread(ctx context.Context, account *models.SenderAccount) ([]RawMessage, error)
}

// ReplyAnalysis is the classification of an inbound reply.
type ReplyAnalysis struct {
	Intent    string `json:"intent"`    // Interested, Not Interested, OOO, Other
	Sentiment string `json:"sentiment"` // Positive, Negative, Neutral
	Summary   string `json:"summary"`
}

// DefaultReplyAnalysis is the degraded classification used when the
// upstream classifier fails or returns something unparseable.
func DefaultReplyAnalysis() ReplyAnalysis {
	return ReplyAnalysis{Intent: "Other", Sentiment: "Neutral"}
}

// Classifier turns a reply body into a ReplyAnalysis. Implementations
// should degrade to DefaultReplyAnalysis rather than fail the caller.
type Classifier interface {
	Classify(ctx context.Context, body string) ReplyAnalysis
}

// Personalizer produces a one-line opener for a contact. The returned text
// is advisory: it may be an apology from the model or an error description,
// and callers must treat it as plain text either way.
type Personalizer interface {
	Personalize(ctx context.Context, contact *models.Contact) (string, error)
}

// ContactCandidate is a discovered prospect before it becomes a Contact.
type ContactCandidate struct {
	Email       string
	Name        string
	Company     string
	Website     string
	LinkedIn    string
	Description string
}

// DiscoveryProvider finds new contact candidates for a set of queries.
// Web discovery itself lives outside this repository; this is the seam.
type DiscoveryProvider interface {
	Discover(ctx context.Context, queries []string) ([]ContactCandidate, error)
}
