package models

import (
	"gorm.io/gorm"
)

// User represents an operator account in the system
type User struct {
	gorm.Model

	// Authentication fields
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	// Profile information
	Name    *string `json:"name,omitempty"`
	Company *string `json:"company,omitempty"`

	// Account status
	IsActive bool `gorm:"default:true" json:"is_active"`

	// Relations
	Accounts  []SenderAccount `gorm:"foreignKey:UserID" json:"accounts,omitempty"`
	Campaigns []Campaign      `gorm:"foreignKey:UserID" json:"campaigns,omitempty"`
	Contacts  []Contact       `gorm:"foreignKey:UserID" json:"contacts,omitempty"`
}
