package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"

	controller "coldreach/controllers"
	"coldreach/middleware"
	"coldreach/outreach"
	"coldreach/utils"
)

// Dependencies carries the shared services main wires up. Controllers get
// the pieces they need; nothing here is constructed inside routes.
type Dependencies struct {
	DB           *gorm.DB
	Pool         *outreach.AccountPool
	Sequencer    *outreach.Sequencer
	SendWorker   *outreach.SendWorker
	ReplyWorker  *outreach.ReplyWorker
	Transport    *utils.SMTPTransport
	Personalizer outreach.Personalizer
	Discovery    outreach.DiscoveryProvider
}

func SetupAuthRoutes(app *fiber.App) {
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints (no authentication required)
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Get("/me", controller.GetCurrentUser)
}

func SetupAPIRoutes(app *fiber.App, deps Dependencies) {
	accountController := controller.NewAccountController(deps.DB, log.New(os.Stdout, "ACCOUNT: ", log.LstdFlags), deps.Pool, deps.Transport)
	campaignController := controller.NewCampaignController(deps.DB, log.New(os.Stdout, "CAMPAIGN: ", log.LstdFlags), deps.Sequencer, deps.SendWorker)
	contactController := controller.NewContactController(deps.DB, log.New(os.Stdout, "CONTACT: ", log.LstdFlags), deps.Personalizer, deps.Discovery)
	replyController := controller.NewReplyController(deps.DB, log.New(os.Stdout, "REPLY: ", log.LstdFlags), deps.ReplyWorker)

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Sender account routes; the connectivity test opens real SMTP
	// connections so it carries its own rate limit.
	account := api.Group("/accounts")
	account.Post("/", accountController.UpsertAccount)
	account.Get("/", accountController.ListAccounts)
	account.Post("/:id/test", middleware.AccountTestRateLimiter(), accountController.TestAccount)
	account.Patch("/:id/status", accountController.UpdateAccountStatus)
	account.Delete("/:id", accountController.DeleteAccount)

	// Campaign routes
	campaign := api.Group("/campaigns")
	campaign.Post("/", campaignController.CreateCampaign)
	campaign.Get("/", campaignController.ListCampaigns)
	campaign.Post("/:id/enroll", campaignController.EnrollContacts)
	campaign.Get("/:id/stats", campaignController.CampaignStats)

	// Contact routes
	contact := api.Group("/contacts")
	contact.Post("/", contactController.CreateContact)
	contact.Get("/", contactController.ListContacts)
	contact.Post("/discover", contactController.DiscoverContacts)
	contact.Post("/:id/personalize", contactController.PersonalizeContact)

	// Reply routes
	reply := api.Group("/replies")
	reply.Get("/", replyController.ListReplies)

	// Manual triggers for the background workers
	trigger := api.Group("/trigger")
	trigger.Post("/sweep", campaignController.TriggerSweep)
	trigger.Post("/replies", replyController.TriggerReplyPass)

	log.Println("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupAuthRoutes(app)
	SetupAPIRoutes(app, deps)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
