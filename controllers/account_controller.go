package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"coldreach/models"
	"coldreach/outreach"
	"coldreach/utils"
)

type AccountController struct {
	DB        *gorm.DB
	Logger    *log.Logger
	Pool      *outreach.AccountPool
	Transport *utils.SMTPTransport
}

func NewAccountController(db *gorm.DB, logger *log.Logger, pool *outreach.AccountPool, transport *utils.SMTPTransport) *AccountController {
	return &AccountController{
		DB:        db,
		Logger:    logger,
		Pool:      pool,
		Transport: transport,
	}
}

type UpsertAccountRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FromName string `json:"from_name" validate:"omitempty,max=100"`

	SMTPHost     string `json:"smtp_host" validate:"required,hostname"`
	SMTPPort     int    `json:"smtp_port" validate:"required,gt=0,lte=65535"`
	SMTPUsername string `json:"smtp_username" validate:"required"`
	SMTPPassword string `json:"smtp_password" validate:"required"`

	IMAPHost     string `json:"imap_host" validate:"omitempty,hostname"`
	IMAPPort     int    `json:"imap_port" validate:"omitempty,gt=0,lte=65535"`
	IMAPUsername string `json:"imap_username"`
	IMAPPassword string `json:"imap_password"`
	IMAPMailbox  string `json:"imap_mailbox"`

	DailyLimit int `json:"daily_limit" validate:"omitempty,gt=0,lte=500"`
}

// UpsertAccount adds a mailbox to the rotation pool or refreshes its
// connection settings. Passwords are encrypted before they touch the
// database; counters on an existing account are left alone.
func (ac *AccountController) UpsertAccount(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req UpsertAccountRequest
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

	encryptedSMTP, err := utils.Encrypt(req.SMTPPassword)
	if err != nil {
		utils.LogError("encryption_failed", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to secure credentials",
		})
	}

	var encryptedIMAP string
	if req.IMAPPassword != "" {
		encryptedIMAP, err = utils.Encrypt(req.IMAPPassword)
		if err != nil {
			utils.LogError("encryption_failed", err, map[string]interface{}{
				"user_id": user.ID,
			})
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to secure credentials",
			})
		}
	}

	if req.DailyLimit == 0 {
		req.DailyLimit = 50
	}

	account := models.SenderAccount{
		UserID:       user.ID,
		Email:        req.Email,
		FromName:     req.FromName,
		SMTPHost:     req.SMTPHost,
		SMTPPort:     req.SMTPPort,
		SMTPUsername: req.SMTPUsername,
		SMTPPassword: encryptedSMTP,
		IMAPHost:     req.IMAPHost,
		IMAPPort:     req.IMAPPort,
		IMAPUsername: req.IMAPUsername,
		IMAPPassword: encryptedIMAP,
		IMAPMailbox:  req.IMAPMailbox,
		DailyLimit:   req.DailyLimit,
	}

	if err := ac.Pool.RegisterOrUpdate(&account); err != nil {
		utils.LogError("account_upsert_failed", err, map[string]interface{}{
			"user_id": user.ID,
			"email":   req.Email,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save account",
		})
	}

	utils.LogEvent("account_upserted", map[string]interface{}{
		"user_id": user.ID,
		"email":   req.Email,
	})

	account.Sanitize()
	return c.Status(fiber.StatusCreated).JSON(account)
}

func (ac *AccountController) ListAccounts(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var accounts []models.SenderAccount
	if err := ac.DB.Where("user_id = ?", user.ID).
		Order("created_at ASC").
		Find(&accounts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch accounts",
		})
	}

	for i := range accounts {
		accounts[i].Sanitize()
	}
	return c.JSON(accounts)
}

// TestAccount opens a real SMTP connection with the stored credentials.
// Rate limited upstream; a failing test records the error but leaves the
// account's status for the operator to change.
func (ac *AccountController) TestAccount(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	accountID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid account id",
		})
	}

	var account models.SenderAccount
	if err := ac.DB.Where("id = ? AND user_id = ?", accountID, user.ID).First(&account).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Account not found",
		})
	}

	now := time.Now().UTC()
	testErr := ac.Transport.TestConnection(&account)

	updates := map[string]interface{}{
		"last_tested_at": now,
	}
	if testErr != nil {
		updates["last_error"] = testErr.Error()
	} else {
		updates["last_error"] = nil
	}
	if err := ac.DB.Model(&account).Updates(updates).Error; err != nil {
		ac.Logger.Printf("failed to record test result for account %d: %v", account.ID, err)
	}

	if testErr != nil {
		utils.LogError("smtp_test_failed", testErr, map[string]interface{}{
			"user_id":    user.ID,
			"account_id": account.ID,
			"smtp_host":  account.SMTPHost,
		})
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success":   false,
			"error":     testErr.Error(),
			"tested_at": now,
		})
	}

	utils.LogEvent("smtp_test_passed", map[string]interface{}{
		"user_id":    user.ID,
		"account_id": account.ID,
	})

	return c.JSON(fiber.Map{
		"success":   true,
		"tested_at": now,
	})
}

type UpdateAccountStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Active Paused"`
}

// UpdateAccountStatus pauses or resumes an account. Error status is set by
// the operator through the same endpoint flow after reviewing failures.
func (ac *AccountController) UpdateAccountStatus(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	accountID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid account id",
		})
	}

	var req UpdateAccountStatusRequest
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

	result := ac.DB.Model(&models.SenderAccount{}).
		Where("id = ? AND user_id = ?", accountID, user.ID).
		Update("status", req.Status)
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update account",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Account not found",
		})
	}

	return c.JSON(fiber.Map{
		"status": req.Status,
	})
}

func (ac *AccountController) DeleteAccount(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	accountID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid account id",
		})
	}

	result := ac.DB.Where("id = ? AND user_id = ?", accountID, user.ID).
		Delete(&models.SenderAccount{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete account",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Account not found",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
