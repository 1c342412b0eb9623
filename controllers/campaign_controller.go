package controller

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"coldreach/models"
	"coldreach/outreach"
	"coldreach/utils"
)

type CampaignController struct {
	DB         *gorm.DB
	Logger     *log.Logger
	Sequencer  *outreach.Sequencer
	SendWorker *outreach.SendWorker
}

func NewCampaignController(db *gorm.DB, logger *log.Logger, seq *outreach.Sequencer, sw *outreach.SendWorker) *CampaignController {
	return &CampaignController{
		DB:         db,
		Logger:     logger,
		Sequencer:  seq,
		SendWorker: sw,
	}
}

type CreateCampaignRequest struct {
	Name  string               `json:"name" validate:"required,max=200"`
	Steps []outreach.StepInput `json:"steps" validate:"required,min=1,dive"`
}

func (cc *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	campaign, err := cc.Sequencer.CreateCampaign(user.ID, req.Name, req.Steps)
	if err != nil {
		if err == outreach.ErrCampaignExists {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "A campaign with this name already exists",
			})
		}
		cc.Logger.Printf("failed to create campaign: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create campaign",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(campaign)
}

func (cc *CampaignController) ListCampaigns(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaigns []models.Campaign
	if err := cc.DB.Where("user_id = ?", user.ID).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_number ASC")
		}).
		Find(&campaigns).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch campaigns",
		})
	}

	return c.JSON(campaigns)
}

type EnrollRequest struct {
	Limit int `json:"limit" validate:"omitempty,gt=0"`
}

func (cc *CampaignController) EnrollContacts(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	campaignID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid campaign id",
		})
	}

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", campaignID, user.ID).First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	var req EnrollRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Limit <= 0 {
		req.Limit = 50
	}

	count, err := cc.Sequencer.EnrollContacts(campaign.ID, req.Limit)
	if err != nil {
		cc.Logger.Printf("enrollment failed for campaign %d: %v", campaign.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to enroll contacts",
		})
	}

	return c.JSON(fiber.Map{
		"enrolled": count,
	})
}

func (cc *CampaignController) CampaignStats(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	campaignID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid campaign id",
		})
	}

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", campaignID, user.ID).First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	stats, err := cc.Sequencer.CampaignStats(campaign.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute stats",
		})
	}

	// Replied contacts detach from the campaign on halt, so replies are
	// attributed through the campaign id captured on the event.
	var replies int64
	cc.DB.Model(&models.ReplyEvent{}).Where("campaign_id = ?", campaign.ID).Count(&replies)

	return c.JSON(fiber.Map{
		"campaign": campaign.Name,
		"status":   campaign.Status,
		"contacts": stats,
		"replies":  replies,
	})
}

// TriggerSweep runs one send sweep in the background, outside the normal
// cadence. Useful from the UI after enrolling a fresh batch.
func (cc *CampaignController) TriggerSweep(c *fiber.Ctx) error {
	go func() {
		if _, err := cc.SendWorker.RunSweep(context.Background()); err != nil {
			cc.Logger.Printf("triggered sweep failed: %v", err)
		}
	}()

	return c.JSON(fiber.Map{
		"message": "Send sweep started in background",
	})
}
