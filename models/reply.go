package models

import (
	"gorm.io/gorm"
)

// ReplyEvent records an inbound reply that halted a contact's sequence.
// Kept separate from the contact so the reply history survives re-enrollment.
type ReplyEvent struct {
	gorm.Model
	UserID    uint `gorm:"not null;index" json:"user_id"`
	ContactID uint `gorm:"not null;index" json:"contact_id"`
	AccountID uint `gorm:"not null;index" json:"account_id"`

	// CampaignID is captured from the contact before the halt clears its
	// association, so per-campaign reply attribution survives the detach.
	// Nil when the reply came from a contact that was not enrolled.
	CampaignID *uint `gorm:"index" json:"campaign_id"`

	FromEmail string `gorm:"not null" json:"from_email"`
	Subject   string `json:"subject"`
	Body      string `gorm:"type:text" json:"body"`

	Intent    string `json:"intent"`
	Sentiment string `json:"sentiment"`
	Summary   string `gorm:"type:text" json:"summary"`

	// Relations
	Contact Contact       `json:"-"`
	Account SenderAccount `json:"-"`
}
