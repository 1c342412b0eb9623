package controller

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"coldreach/models"
	"coldreach/outreach"
)

type ReplyController struct {
	DB          *gorm.DB
	Logger      *log.Logger
	ReplyWorker *outreach.ReplyWorker
}

func NewReplyController(db *gorm.DB, logger *log.Logger, rw *outreach.ReplyWorker) *ReplyController {
	return &ReplyController{
		DB:          db,
		Logger:      logger,
		ReplyWorker: rw,
	}
}

func (rc *ReplyController) ListReplies(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	query := rc.DB.Where("user_id = ?", user.ID)
	if intent := c.Query("intent"); intent != "" {
		query = query.Where("intent = ?", intent)
	}

	var replies []models.ReplyEvent
	if err := query.Order("created_at DESC").Limit(200).Find(&replies).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch replies",
		})
	}

	return c.JSON(replies)
}

// TriggerReplyPass polls all inboxes once, outside the normal cadence.
func (rc *ReplyController) TriggerReplyPass(c *fiber.Ctx) error {
	go func() {
		if err := rc.ReplyWorker.RunPass(context.Background()); err != nil {
			rc.Logger.Printf("triggered reply pass failed: %v", err)
		}
	}()

	return c.JSON(fiber.Map{
		"message": "Reply check started in background",
	})
}
