package models

import (
	"time"

	"gorm.io/gorm"
)

// Sender account statuses
const (
	AccountStatusActive = "Active"
	AccountStatusError  = "Error"
	AccountStatusPaused = "Paused"
)

// SenderAccount holds sending and receiving credentials for one mailbox in
// the rotation pool. Invariant: sent_today never exceeds daily_limit.
type SenderAccount struct {
	gorm.Model
	UserID uint `gorm:"not null;index:idx_accounts_user_email,unique" json:"user_id"`

	Email    string `gorm:"not null;index:idx_accounts_user_email,unique" json:"email"`
	FromName string `json:"from_name"`

	// ========= SMTP Configuration =========
	SMTPHost     string `gorm:"not null" json:"smtp_host"`
	SMTPPort     int    `gorm:"not null" json:"smtp_port"`
	SMTPUsername string `gorm:"not null" json:"smtp_username"`
	SMTPPassword string `gorm:"not null" json:"-"` // Encrypted in application layer

	// ========= IMAP Configuration =========
	IMAPHost     string `json:"imap_host"`
	IMAPPort     int    `json:"imap_port" gorm:"default:993"`
	IMAPUsername string `json:"imap_username"`
	IMAPPassword string `json:"-"` // Encrypted in application layer
	IMAPMailbox  string `json:"imap_mailbox" gorm:"default:'INBOX'"`

	// ========= Status =========
	Status       string     `gorm:"default:'Active';index" json:"status"`
	LastError    *string    `json:"last_error"`
	LastTestedAt *time.Time `json:"last_tested_at"`

	// ========= Usage Metrics =========
	DailyLimit   int        `gorm:"default:50" json:"daily_limit"`
	SentToday    int        `gorm:"default:0" json:"sent_today"`
	TotalSent    int        `gorm:"default:0" json:"total_sent"`
	FailureCount int        `gorm:"default:0" json:"failure_count"`
	LastUsedAt   *time.Time `gorm:"index" json:"last_used_at"`
}

// Sanitize clears credential fields before the account is serialized out.
func (a *SenderAccount) Sanitize() {
	a.SMTPPassword = ""
	a.IMAPPassword = ""
}

// HasIMAP reports whether the account can be polled for replies.
func (a *SenderAccount) HasIMAP() bool {
	return a.IMAPHost != ""
}
