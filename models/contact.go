package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Contact statuses. Replied, Bounced and Completed are terminal: a contact
// in one of these states is never selected for sending again.
const (
	ContactStatusNew       = "New"
	ContactStatusContacted = "Contacted"
	ContactStatusReplied   = "Replied"
	ContactStatusBounced   = "Bounced"
	ContactStatusCompleted = "Completed"
)

// Contact represents a single outreach target
type Contact struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Email    string `gorm:"not null;index" json:"email"`
	Name     string `json:"name"`
	Company  string `json:"company"`
	Role     string `json:"role"`
	Website  string `json:"website"`
	LinkedIn string `json:"linkedin"`
	Notes    string `gorm:"type:text" json:"notes"`

	// AI-generated opening line used by the {{personalization}} placeholder
	PersonalizationLine string `gorm:"type:text" json:"personalization_line"`

	// Status tracking
	Status string `gorm:"default:'New';index" json:"status"`

	// Reply analysis, populated when the reply listener halts the sequence
	ReplyIntent    string `json:"reply_intent"`    // Interested, Not Interested, OOO, Other
	ReplySentiment string `json:"reply_sentiment"` // Positive, Negative, Neutral
	ReplySummary   string `gorm:"type:text" json:"reply_summary"`

	// Sequence tracking. CampaignID is nil when the contact is not enrolled
	// or its sequence has been halted; NextActionAt is nil when no further
	// action is scheduled.
	CampaignID      *uint      `gorm:"index" json:"campaign_id"`
	CurrentStep     int        `gorm:"default:0" json:"current_step"` // 0 = not enrolled
	NextActionAt    *time.Time `gorm:"index" json:"next_action_at"`
	LastContactedAt *time.Time `json:"last_contacted_at"`

	// Relations
	Campaign *Campaign `json:"-"`
}

// Terminal reports whether the contact's sequence can make further progress.
func (c *Contact) Terminal() bool {
	switch c.Status {
	case ContactStatusReplied, ContactStatusBounced, ContactStatusCompleted:
		return true
	}
	return false
}

// FirstName returns the contact's first name, falling back to a friendly
// default so rendered templates never read "Hi ,".
func (c *Contact) FirstName() string {
	if fields := strings.Fields(c.Name); len(fields) > 0 {
		return fields[0]
	}
	return "there"
}
