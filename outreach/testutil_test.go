package outreach

import (
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"coldreach/config"
	"coldreach/models"
)

// testDB opens a fresh in-memory database migrated with the production
// schema. Each test gets its own named memory database so state never
// leaks between tests.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := config.MigrateDB(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := models.User{
		Email:        fmt.Sprintf("owner-%s@example.com", t.Name()),
		PasswordHash: "x",
		IsActive:     true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return &user
}

func seedAccount(t *testing.T, db *gorm.DB, userID uint, email string, dailyLimit int, lastUsed *time.Time) *models.SenderAccount {
	t.Helper()
	account := models.SenderAccount{
		UserID:       userID,
		Email:        email,
		SMTPHost:     "smtp.example.com",
		SMTPPort:     587,
		SMTPUsername: email,
		SMTPPassword: "secret",
		Status:       models.AccountStatusActive,
		DailyLimit:   dailyLimit,
		LastUsedAt:   lastUsed,
	}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("failed to seed account %s: %v", email, err)
	}
	return &account
}

func seedContact(t *testing.T, db *gorm.DB, userID uint, email string) *models.Contact {
	t.Helper()
	contact := models.Contact{
		UserID: userID,
		Email:  email,
		Name:   "Ada Lovelace",
		Status: models.ContactStatusNew,
	}
	if err := db.Create(&contact).Error; err != nil {
		t.Fatalf("failed to seed contact %s: %v", email, err)
	}
	return &contact
}

func seedCampaign(t *testing.T, seq *Sequencer, userID uint, name string, steps ...StepInput) *models.Campaign {
	t.Helper()
	if len(steps) == 0 {
		steps = []StepInput{{DelayDays: 0, Subject: "Hello {{first_name}}", Body: "Quick question about {{company}}"}}
	}
	campaign, err := seq.CreateCampaign(userID, name, steps)
	if err != nil {
		t.Fatalf("failed to seed campaign %s: %v", name, err)
	}
	return campaign
}

func reloadContact(t *testing.T, db *gorm.DB, id uint) *models.Contact {
	t.Helper()
	var contact models.Contact
	if err := db.First(&contact, id).Error; err != nil {
		t.Fatalf("failed to reload contact %d: %v", id, err)
	}
	return &contact
}

func reloadAccount(t *testing.T, db *gorm.DB, id uint) *models.SenderAccount {
	t.Helper()
	var account models.SenderAccount
	if err := db.First(&account, id).Error; err != nil {
		t.Fatalf("failed to reload account %d: %v", id, err)
	}
	return &account
}
