package outreach

import (
	"context"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"coldreach/models"
)

// ReplyWorker polls each active account's inbox on its own cadence,
// independent of the send sweep. When an unread message comes from a known
// contact, the contact's sequence is halted for good; mail from anyone
// else is left untouched for whatever other handling the mailbox has.
type ReplyWorker struct {
	DB         *gorm.DB
	Sequencer  *Sequencer
	Inbox      InboxSource
	Classifier Classifier
	Logger     *log.Logger

	Interval time.Duration
}

func NewReplyWorker(db *gorm.DB, seq *Sequencer, inbox InboxSource, classifier Classifier, logger *log.Logger) *ReplyWorker {
	return &ReplyWorker{
		DB:         db,
		Sequencer:  seq,
		Inbox:      inbox,
		Classifier: classifier,
		Logger:     logger,
		Interval:   10 * time.Minute,
	}
}

func (rw *ReplyWorker) Start(ctx context.Context) {
	time.Sleep(15 * time.Second)

	rw.Logger.Println("Reply worker started")

	ticker := time.NewTicker(rw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rw.Logger.Println("Reply worker shutting down...")
			return
		case <-ticker.C:
			if err := rw.RunPass(ctx); err != nil {
				rw.Logger.Printf("reply pass failed: %v", err)
			}
		}
	}
}

// RunPass checks every pollable account once. A connection failure on one
// account is logged and the pass moves on; the next cadence retries.
func (rw *ReplyWorker) RunPass(ctx context.Context) error {
	var accounts []models.SenderAccount
	err := rw.DB.
		Where("status = ? AND imap_host IS NOT NULL AND imap_host != ''", models.AccountStatusActive).
		Find(&accounts).Error
	if err != nil {
		return err
	}

	for i := range accounts {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := rw.processAccount(ctx, &accounts[i]); err != nil {
			rw.Logger.Printf("inbox poll failed for %s: %v", accounts[i].Email, err)
		}
	}
	return nil
}

func (rw *ReplyWorker) processAccount(ctx context.Context, account *models.SenderAccount) error {
	messages, err := rw.Inbox.PollUnread(ctx, account)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	rw.Logger.Printf("checking %d unread message(s) for %s", len(messages), account.Email)

	for _, msg := range messages {
		sender := strings.ToLower(strings.TrimSpace(msg.From))
		if sender == "" {
			continue
		}

		var contact models.Contact
		err := rw.DB.
			Where("user_id = ? AND lower(email) = ?", account.UserID, sender).
			First(&contact).Error
		if err == gorm.ErrRecordNotFound {
			// Not one of ours; leave it for normal mail handling.
			continue
		}
		if err != nil {
			return err
		}

		rw.Logger.Printf("detected reply from contact %s", contact.Email)

		analysis := rw.Classifier.Classify(ctx, clipBody(msg.Body, 1000))

		// The halt clears the contact's campaign association, so grab it
		// first for the event's attribution.
		campaignID := contact.CampaignID

		if err := rw.Sequencer.MarkReplied(contact.ID, analysis); err != nil {
			rw.Logger.Printf("failed to halt sequence for contact %d: %v", contact.ID, err)
			continue
		}

		event := models.ReplyEvent{
			UserID:     account.UserID,
			ContactID:  contact.ID,
			AccountID:  account.ID,
			CampaignID: campaignID,
			FromEmail:  contact.Email,
			Subject:    msg.Subject,
			Body:       msg.Body,
			Intent:     analysis.Intent,
			Sentiment:  analysis.Sentiment,
			Summary:    analysis.Summary,
		}
		if err := rw.DB.Create(&event).Error; err != nil {
			rw.Logger.Printf("failed to record reply event: %v", err)
		}
	}
	return nil
}

// clipBody bounds how much reply text is handed to the classifier. The cut
// backs up to a rune boundary so a multi-byte character is never split.
func clipBody(body string, max int) string {
	if len(body) <= max {
		return body
	}
	for max > 0 && !utf8.RuneStart(body[max]) {
		max--
	}
	return body[:max]
}
