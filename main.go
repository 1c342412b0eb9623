package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"coldreach/config"
	"coldreach/middleware"
	"coldreach/models"
	"coldreach/outreach"
	"coldreach/routes"
	"coldreach/utils"
)

func main() {
	logger := log.New(os.Stdout, "SERVER: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	if dsn := config.AppConfig.SentryDSN; dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Core services
	pool := outreach.NewAccountPool(config.DB, log.New(os.Stdout, "POOL: ", log.LstdFlags))
	sequencer := outreach.NewSequencer(config.DB, log.New(os.Stdout, "SEQUENCER: ", log.LstdFlags))
	transport := utils.NewSMTPTransport(log.New(os.Stdout, "SMTP: ", log.LstdFlags))
	inbox := utils.NewIMAPInbox(log.New(os.Stdout, "IMAP: ", log.LstdFlags))

	// AI features degrade rather than block: without a provider the
	// personalize endpoint is unavailable and replies get the neutral
	// classification, but sending and reply detection keep working.
	var (
		personalizer outreach.Personalizer
		classifier   outreach.Classifier = utils.StaticClassifier{}
	)
	if gen, err := utils.NewGenerator(config.AppConfig.AI); err != nil {
		logger.Printf("AI provider unavailable: %v", err)
	} else {
		personalizer = utils.NewAIPersonalizer(gen, log.New(os.Stdout, "AI: ", log.LstdFlags))
		classifier = utils.NewAIClassifier(gen, log.New(os.Stdout, "AI: ", log.LstdFlags))
	}

	// Send worker
	sendWorker := outreach.NewSendWorker(pool, sequencer, transport, log.New(os.Stdout, "SENDER: ", log.LstdFlags))
	sendWorker.Interval = config.AppConfig.SweepInterval
	sendWorker.SendDelay = config.AppConfig.SendDelay
	sendWorker.Bootstrap = bootstrapSender(config.DB, logger)

	// Reply worker
	replyWorker := outreach.NewReplyWorker(config.DB, sequencer, inbox, classifier, log.New(os.Stdout, "REPLY: ", log.LstdFlags))
	replyWorker.Interval = config.AppConfig.ReplyPollInterval

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sendWorker.Start(ctx)
	go replyWorker.Start(ctx)

	// Create Fiber app
	app := fiber.New()
	app.Use(middleware.CORS())

	routes.SetupRoutes(app, routes.Dependencies{
		DB:           config.DB,
		Pool:         pool,
		Sequencer:    sequencer,
		SendWorker:   sendWorker,
		ReplyWorker:  replyWorker,
		Transport:    transport,
		Personalizer: personalizer,
	})

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}

// bootstrapSender turns the env-configured SMTP identity into a pool
// account. The account is attached to the first registered user; if no
// user exists yet the env identity is skipped until the next restart.
func bootstrapSender(db *gorm.DB, logger *log.Logger) *models.SenderAccount {
	cfg := config.AppConfig.SMTP
	if cfg.Username == "" || cfg.Password == "" {
		return nil
	}

	var user models.User
	if err := db.Order("id ASC").First(&user).Error; err != nil {
		logger.Println("SMTP account configured but no user registered yet, skipping bootstrap")
		return nil
	}

	encrypted, err := utils.Encrypt(cfg.Password)
	if err != nil {
		logger.Printf("failed to encrypt configured SMTP password: %v", err)
		return nil
	}

	email := cfg.FromEmail
	if email == "" {
		email = cfg.Username
	}

	return &models.SenderAccount{
		UserID:       user.ID,
		Email:        email,
		FromName:     cfg.FromName,
		SMTPHost:     cfg.Host,
		SMTPPort:     cfg.Port,
		SMTPUsername: cfg.Username,
		SMTPPassword: encrypted,
		IMAPHost:     cfg.IMAPHost,
		IMAPPort:     cfg.IMAPPort,
		IMAPUsername: cfg.Username,
		IMAPPassword: encrypted,
		DailyLimit:   cfg.DailyLimit,
	}
}
