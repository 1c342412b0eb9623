package outreach

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"coldreach/models"
)

// fakeInbox serves canned unread messages keyed by account email.
type fakeInbox struct {
	unread map[string][]RawMessage
	fail   map[string]error
	polled []string
}

func (f *fakeInbox) PollUnread(_ context.Context, account *models.SenderAccount) ([]RawMessage, error) {
	f.polled = append(f.polled, account.Email)
	if err, ok := f.fail[account.Email]; ok {
		return nil, err
	}
	return f.unread[account.Email], nil
}

type fakeClassifier struct {
	analysis ReplyAnalysis
	bodies   []string
}

func (f *fakeClassifier) Classify(_ context.Context, body string) ReplyAnalysis {
	f.bodies = append(f.bodies, body)
	return f.analysis
}

func TestReplyHaltsSequenceAndRecordsEvent(t *testing.T) {
	db := testDB(t)
	user := seedUser(t, db)

	account := seedAccount(t, db, user.ID, "sender@example.com", 50, nil)
	db.Model(account).Update("imap_host", "imap.example.com")

	seq := NewSequencer(db, testLogger())
	campaign := seedCampaign(t, seq, user.ID, "Reply Check")
	contact := seedContact(t, db, user.ID, "ada@example.com")
	if _, err := seq.EnrollContacts(campaign.ID, 10); err != nil {
		t.Fatalf("EnrollContacts: %v", err)
	}

	inbox := &fakeInbox{unread: map[string][]RawMessage{
		"sender@example.com": {
			{From: "Ada@Example.com", Subject: "Re: Hello", Body: "Sounds interesting, let's talk."},
		},
	}}
	classifier := &fakeClassifier{analysis: ReplyAnalysis{Intent: "Interested", Sentiment: "Positive", Summary: "wants a call"}}

	rw := NewReplyWorker(db, seq, inbox, classifier, testLogger())
	if err := rw.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass: %v", err)
	}

	got := reloadContact(t, db, contact.ID)
	if got.Status != models.ContactStatusReplied {
		t.Fatalf("status = %s, want Replied", got.Status)
	}
	if got.CampaignID != nil {
		t.Fatal("reply did not detach the contact from its campaign")
	}
	if got.ReplyIntent != "Interested" {
		t.Fatalf("reply_intent = %q", got.ReplyIntent)
	}

	var events []models.ReplyEvent
	if err := db.Find(&events).Error; err != nil {
		t.Fatalf("loading reply events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("%d reply events, want 1", len(events))
	}
	event := events[0]
	if event.ContactID != contact.ID || event.AccountID != account.ID {
		t.Fatalf("event attribution wrong: %+v", event)
	}
	if event.Subject != "Re: Hello" || event.Intent != "Interested" {
		t.Fatalf("event content wrong: %+v", event)
	}
	// The halt cleared contact.campaign_id above, so the campaign must be
	// recoverable from the event itself.
	if event.CampaignID == nil || *event.CampaignID != campaign.ID {
		t.Fatalf("event campaign attribution wrong: %+v", event.CampaignID)
	}
}

func TestClipBodyRespectsRuneBoundaries(t *testing.T) {
	if got := clipBody("short", 1000); got != "short" {
		t.Errorf("got %q", got)
	}
	// Cutting inside the two-byte "é" must back up to the previous rune.
	if got := clipBody("héllo", 2); got != "h" {
		t.Errorf("got %q, want %q", got, "h")
	}
	if got := clipBody("日本語", 4); !utf8.ValidString(got) || got != "日" {
		t.Errorf("got %q, want %q", got, "日")
	}
}

func TestReplyFromUnknownSenderIsIgnored(t *testing.T) {
	db := testDB(t)
	user := seedUser(t, db)

	account := seedAccount(t, db, user.ID, "sender@example.com", 50, nil)
	db.Model(account).Update("imap_host", "imap.example.com")

	seq := NewSequencer(db, testLogger())
	inbox := &fakeInbox{unread: map[string][]RawMessage{
		"sender@example.com": {
			{From: "newsletter@randomsite.com", Subject: "Weekly digest", Body: "..."},
		},
	}}
	classifier := &fakeClassifier{analysis: ReplyAnalysis{Intent: "Interested"}}

	rw := NewReplyWorker(db, seq, inbox, classifier, testLogger())
	if err := rw.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass: %v", err)
	}

	if len(classifier.bodies) != 0 {
		t.Fatal("classified mail that is not from a known contact")
	}
	var count int64
	db.Model(&models.ReplyEvent{}).Count(&count)
	if count != 0 {
		t.Fatalf("%d reply events recorded for unknown sender", count)
	}
}

func TestReplyPassSurvivesOneBrokenInbox(t *testing.T) {
	db := testDB(t)
	user := seedUser(t, db)

	broken := seedAccount(t, db, user.ID, "broken@example.com", 50, nil)
	db.Model(broken).Update("imap_host", "imap.example.com")
	healthy := seedAccount(t, db, user.ID, "healthy@example.com", 50, nil)
	db.Model(healthy).Update("imap_host", "imap.example.com")

	// No IMAP host: must not be polled at all.
	seedAccount(t, db, user.ID, "smtponly@example.com", 50, nil)

	seq := NewSequencer(db, testLogger())
	campaign := seedCampaign(t, seq, user.ID, "Partial Outage")
	contact := seedContact(t, db, user.ID, "ada@example.com")
	if _, err := seq.EnrollContacts(campaign.ID, 10); err != nil {
		t.Fatalf("EnrollContacts: %v", err)
	}

	inbox := &fakeInbox{
		fail: map[string]error{"broken@example.com": errors.New("LOGIN failed")},
		unread: map[string][]RawMessage{
			"healthy@example.com": {
				{From: "ada@example.com", Subject: "Re: Hi", Body: "stop emailing me"},
			},
		},
	}
	classifier := &fakeClassifier{analysis: ReplyAnalysis{Intent: "Not Interested", Sentiment: "Negative"}}

	rw := NewReplyWorker(db, seq, inbox, classifier, testLogger())
	if err := rw.RunPass(context.Background()); err != nil {
		t.Fatalf("one broken inbox must not fail the pass: %v", err)
	}

	if len(inbox.polled) != 2 {
		t.Fatalf("polled %v, want both IMAP accounts and nothing else", inbox.polled)
	}
	if got := reloadContact(t, db, contact.ID); got.Status != models.ContactStatusReplied {
		t.Fatalf("reply through healthy inbox not processed: status=%s", got.Status)
	}
}
