package controller

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"coldreach/config"
	"coldreach/models"
	"coldreach/outreach"
)

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

// statsApp wires the stats route behind a stub auth middleware that
// injects the given user, the way the JWT middleware does in production.
func statsApp(cc *CampaignController, user *models.User) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", user)
		return c.Next()
	})
	app.Get("/campaigns/:id/stats", cc.CampaignStats)
	return app
}

func getStats(t *testing.T, app *fiber.App, campaignID uint) (int, map[string]json.RawMessage) {
	t.Helper()

	req := httptest.NewRequest(fiber.MethodGet, fmt.Sprintf("/campaigns/%d/stats", campaignID), nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp.StatusCode, body
}

func TestCampaignStatsRepliesStayWithTheirCampaign(t *testing.T) {
	db := testDB(t)

	user := models.User{Email: "owner@example.com", PasswordHash: "x", IsActive: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	account := models.SenderAccount{
		UserID:       user.ID,
		Email:        "sender@example.com",
		SMTPHost:     "smtp.example.com",
		SMTPPort:     587,
		SMTPUsername: "sender@example.com",
		SMTPPassword: "secret",
		Status:       models.AccountStatusActive,
		DailyLimit:   50,
	}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("seeding account: %v", err)
	}

	seq := outreach.NewSequencer(db, testLogger())
	steps := []outreach.StepInput{{DelayDays: 0, Subject: "Hi", Body: "b"}}
	active, err := seq.CreateCampaign(user.ID, "Active", steps)
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}
	idle, err := seq.CreateCampaign(user.ID, "Idle", steps)
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}

	// A contact that replied out of the active campaign. The halt detaches
	// the contact, so the event carries the campaign id.
	contact := models.Contact{
		UserID: user.ID,
		Email:  "ada@example.com",
		Status: models.ContactStatusReplied,
	}
	if err := db.Create(&contact).Error; err != nil {
		t.Fatalf("seeding contact: %v", err)
	}
	event := models.ReplyEvent{
		UserID:     user.ID,
		ContactID:  contact.ID,
		AccountID:  account.ID,
		CampaignID: &active.ID,
		FromEmail:  contact.Email,
		Subject:    "Re: Hi",
		Intent:     "Interested",
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("seeding reply event: %v", err)
	}

	cc := NewCampaignController(db, testLogger(), seq, nil)
	app := statsApp(cc, &user)

	status, body := getStats(t, app, active.ID)
	if status != fiber.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if got := string(body["replies"]); got != "1" {
		t.Fatalf("active campaign replies = %s, want 1", got)
	}

	status, body = getStats(t, app, idle.ID)
	if status != fiber.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if got := string(body["replies"]); got != "0" {
		t.Fatalf("idle campaign counted another campaign's reply: replies = %s", got)
	}
}
