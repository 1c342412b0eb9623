package controller

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"coldreach/models"
	"coldreach/outreach"
	"coldreach/utils"
)

type ContactController struct {
	DB           *gorm.DB
	Logger       *log.Logger
	Personalizer outreach.Personalizer
	Discovery    outreach.DiscoveryProvider
}

func NewContactController(db *gorm.DB, logger *log.Logger, personalizer outreach.Personalizer, discovery outreach.DiscoveryProvider) *ContactController {
	return &ContactController{
		DB:           db,
		Logger:       logger,
		Personalizer: personalizer,
		Discovery:    discovery,
	}
}

type CreateContactRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"omitempty,max=200"`
	Company  string `json:"company" validate:"omitempty,max=200"`
	Role     string `json:"role" validate:"omitempty,max=200"`
	Website  string `json:"website" validate:"omitempty,max=500"`
	LinkedIn string `json:"linkedin" validate:"omitempty,max=500"`
	Notes    string `json:"notes"`
}

func (cc *ContactController) CreateContact(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req CreateContactRequest
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

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := checkmail.ValidateFormat(email); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid email address",
		})
	}
	if ok, err := utils.ValidateMXRecords(email); err != nil || !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email domain cannot receive mail",
		})
	}

	var existing models.Contact
	if err := cc.DB.Where("user_id = ? AND lower(email) = ?", user.ID, email).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Contact already exists",
		})
	}

	contact := models.Contact{
		UserID:   user.ID,
		Email:    email,
		Name:     req.Name,
		Company:  req.Company,
		Role:     req.Role,
		Website:  req.Website,
		LinkedIn: req.LinkedIn,
		Notes:    req.Notes,
		Status:   models.ContactStatusNew,
	}
	if err := cc.DB.Create(&contact).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create contact",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(contact)
}

func (cc *ContactController) ListContacts(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	query := cc.DB.Where("user_id = ?", user.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if campaignID := c.QueryInt("campaign_id"); campaignID > 0 {
		query = query.Where("campaign_id = ?", campaignID)
	}

	var contacts []models.Contact
	if err := query.Order("created_at DESC").Limit(500).Find(&contacts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch contacts",
		})
	}

	return c.JSON(contacts)
}

// PersonalizeContact generates and stores the one-line opener used by the
// {{personalization}} placeholder. The generated text overwrites any
// previous line.
func (cc *ContactController) PersonalizeContact(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	if cc.Personalizer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "No AI provider configured",
		})
	}

	contactID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid contact id",
		})
	}

	var contact models.Contact
	if err := cc.DB.Where("id = ? AND user_id = ?", contactID, user.ID).First(&contact).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Contact not found",
		})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 30*time.Second)
	defer cancel()

	line, err := cc.Personalizer.Personalize(ctx, &contact)
	if err != nil {
		cc.Logger.Printf("personalization failed for contact %d: %v", contact.ID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Personalization failed",
		})
	}

	if err := cc.DB.Model(&contact).Update("personalization_line", line).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save personalization",
		})
	}

	return c.JSON(fiber.Map{
		"personalization_line": line,
	})
}

type DiscoverRequest struct {
	Queries []string `json:"queries" validate:"required,min=1,max=10,dive,required"`
}

// DiscoverContacts runs the configured discovery provider in the background
// and stores any candidates that are not already known. Discovery can take
// minutes, so the request returns immediately.
func (cc *ContactController) DiscoverContacts(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	if cc.Discovery == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "No discovery provider configured",
		})
	}

	var req DiscoverRequest
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

	userID := user.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		candidates, err := cc.Discovery.Discover(ctx, req.Queries)
		if err != nil {
			cc.Logger.Printf("discovery failed for user %d: %v", userID, err)
			return
		}

		saved := 0
		for _, cand := range candidates {
			email := strings.ToLower(strings.TrimSpace(cand.Email))
			if checkmail.ValidateFormat(email) != nil {
				continue
			}
			if ok, _ := utils.ValidateMXRecords(email); !ok {
				continue
			}
			var existing models.Contact
			if err := cc.DB.Where("user_id = ? AND lower(email) = ?", userID, email).First(&existing).Error; err == nil {
				continue
			}
			contact := models.Contact{
				UserID:   userID,
				Email:    email,
				Name:     cand.Name,
				Company:  cand.Company,
				Website:  cand.Website,
				LinkedIn: cand.LinkedIn,
				Notes:    cand.Description,
				Status:   models.ContactStatusNew,
			}
			if err := cc.DB.Create(&contact).Error; err != nil {
				cc.Logger.Printf("failed to save discovered contact %s: %v", email, err)
				continue
			}
			saved++
		}
		cc.Logger.Printf("discovery for user %d saved %d of %d candidate(s)", userID, saved, len(candidates))
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Discovery started in background",
	})
}
