package models

import (
	"gorm.io/gorm"
)

// Campaign statuses
const (
	CampaignStatusActive    = "Active"
	CampaignStatusPaused    = "Paused"
	CampaignStatusCompleted = "Completed"
)

// Campaign represents an ordered multi-step email sequence
type Campaign struct {
	gorm.Model
	UserID uint `gorm:"not null;index:idx_campaigns_user_name,unique" json:"user_id"`

	Name   string `gorm:"not null;index:idx_campaigns_user_name,unique" json:"name"`
	Status string `gorm:"default:'Active'" json:"status"`

	// Relations
	Steps    []CampaignStep `gorm:"foreignKey:CampaignID" json:"steps,omitempty"`
	Contacts []Contact      `gorm:"foreignKey:CampaignID" json:"-"`
}

// CampaignStep is one timed step of a campaign. Steps are numbered 1..N and
// are treated as immutable once contacts have been enrolled against them.
type CampaignStep struct {
	gorm.Model
	CampaignID uint `gorm:"not null;index" json:"campaign_id"`

	StepNumber int `gorm:"not null" json:"step_number"`
	DelayDays  int `gorm:"default:0" json:"delay_days"` // days since the previous step, 0 for step 1

	SubjectTemplate string `gorm:"type:text" json:"subject_template"`
	BodyTemplate    string `gorm:"type:text" json:"body_template"`

	// Relations
	Campaign Campaign `json:"-"`
}
