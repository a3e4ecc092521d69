package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"alfredoptarigan/job-orchestrator/internal/config"
	"alfredoptarigan/job-orchestrator/internal/handlers"
	"alfredoptarigan/job-orchestrator/internal/repositories"
	"alfredoptarigan/job-orchestrator/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Println("✅ Config loaded successfully")

	if cfg.Server.AutomationSecret == "" {
		log.Println("⚠️  AUTOMATION_SECRET is empty, every webhook call will be rejected")
	}

	// Initialize database
	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// Initialize repositories
	tenantRepo := repositories.NewTenantRepository(db)
	credRepo := repositories.NewCredentialRepository(db)
	jobRepo := repositories.NewJobRepository(db)
	appRepo := repositories.NewApplicationRepository(db)
	dispatchRepo := repositories.NewDispatchRepository(db)
	inboundRepo := repositories.NewInboundRepository(db)
	interviewRepo := repositories.NewInterviewRepository(db)
	auditRepo := repositories.NewAuditRepository(db)
	log.Println("✅ Repositories initialized successfully")

	// Initialize infrastructure services
	storageService := services.NewStorageService(cfg.Storage.UploadPath, cfg.Storage.MaxFileSize)
	if err := storageService.EnsureUploadDir(); err != nil {
		log.Fatalf("❌ Failed to create upload directory: %v", err)
	}

	extractionService := services.NewExtractionService(cfg.Services)
	scraperService := services.NewScraperService(cfg.Services)
	notifier := services.NewNotifier(cfg.Telegram)
	auditLogger := services.NewAuditLogger(auditRepo)
	credentialService := services.NewCredentialService(credRepo, cfg.OAuth)
	mailProvider := services.NewMailProvider(cfg.OAuth.Timeout)
	calendarProvider := services.NewCalendarProvider(cfg.OAuth.Timeout)
	log.Println("✅ Services initialized successfully")

	// Initialize LLM backends
	var geminiService services.GeminiService
	if cfg.Gemini.APIKey != "" {
		geminiService, err = services.NewGeminiService(cfg.Gemini, cfg.Completion)
		if err != nil {
			log.Fatalf("❌ Failed to initialize Gemini AI: %v", err)
		}
		log.Println("✅ Gemini AI initialized successfully")
	}

	var completionService services.CompletionService
	if strings.EqualFold(cfg.Completion.Provider, "gemini") && geminiService != nil {
		completionService = geminiService
	} else {
		completionService, err = services.NewCompletionService(cfg)
		if err != nil {
			log.Fatalf("❌ Failed to initialize completion service: %v", err)
		}
	}
	log.Printf("✅ Completion service ready (%s, %s)", cfg.Completion.Provider, cfg.Completion.Model)

	// Initialize dispatch index
	var embedder services.Embedder
	if geminiService != nil {
		embedder = geminiService
	}
	dispatchIndex, err := services.NewDispatchIndex(cfg.Qdrant, embedder)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant: %v", err)
	}
	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	if err := dispatchIndex.InitCollection(initCtx); err != nil {
		log.Printf("⚠️  Dispatch index unavailable, matching falls back to headers only: %v", err)
	}
	cancelInit()

	// Initialize modules
	dispatchService := services.NewDispatchService(
		dispatchRepo,
		appRepo,
		jobRepo,
		credentialService,
		mailProvider,
		dispatchIndex,
		auditLogger,
	)
	tailoringService := services.NewTailoringService(
		appRepo,
		completionService,
		dispatchService,
		notifier,
		auditLogger,
	)
	jobAnalysisService := services.NewJobAnalysisService(
		jobRepo,
		scraperService,
		completionService,
		tailoringService,
		auditLogger,
	)
	resumeService := services.NewResumeService(
		tenantRepo,
		extractionService,
		completionService,
		storageService,
		auditLogger,
	)
	interviewService := services.NewInterviewService(
		interviewRepo,
		jobRepo,
		credentialService,
		calendarProvider,
		completionService,
		dispatchService,
		notifier,
		auditLogger,
	)
	inboundService := services.NewInboundService(
		inboundRepo,
		dispatchRepo,
		jobRepo,
		dispatchIndex,
		completionService,
		dispatchService,
		interviewService,
		notifier,
		auditLogger,
	)
	exportService := services.NewExportService(appRepo)

	router := services.NewDefaultRouter(services.Modules{
		Resume:   resumeService,
		Jobs:     jobAnalysisService,
		Dispatch: dispatchService,
		Inbound:  inboundService,
	})
	authGate := services.NewAuthGate(cfg.Server.AutomationSecret, tenantRepo)
	log.Println("✅ Modules initialized")

	// Initialize inbound worker and poller
	worker := services.NewWorker(inboundService, cfg.Worker.Concurrency, cfg.Pipeline.RequestTimeout)
	poller := services.NewInboundPoller(
		credRepo,
		tenantRepo,
		credentialService,
		mailProvider,
		worker,
		cfg.Worker.PollSchedule,
	)

	ctx := context.Background()
	if cfg.Worker.Enabled {
		worker.Start(ctx)
		if err := poller.Start(); err != nil {
			log.Fatalf("❌ Failed to start inbound poller: %v", err)
		}
	} else {
		log.Println("⏸️  Inbound polling disabled")
	}

	reaper := services.NewLedgerReaper(dispatchRepo, cfg.Ledger.StaleAfter, cfg.Ledger.ReapSchedule)
	reaping := cfg.Ledger.StaleAfter > 0
	if reaping {
		if err := reaper.Start(); err != nil {
			log.Fatalf("❌ Failed to start ledger reaper: %v", err)
		}
	}

	// Initialize Handlers
	webhookHandler := handlers.NewWebhookHandler(authGate, router, cfg.Pipeline.RequestTimeout)
	exportHandler := handlers.NewExportHandler(authGate, exportService)
	log.Println("✅ Handlers initialized")

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Job Application Orchestrator",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Pipeline.RequestTimeout + 30*time.Second,
		BodyLimit:    int(cfg.Storage.MaxFileSize) * 2,
		ErrorHandler: handlers.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, X-Automation-Secret, X-Tenant-Id, X-Tenant-Api-Key",
	}))

	// Routes
	api := app.Group("/api/v1")
	handlers.RegisterRoutes(api, webhookHandler, exportHandler)

	// Root route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Job Application Orchestrator",
			"version": "1.0.0",
			"endpoints": []string{
				"GET /api/v1/health",
				"POST /api/v1/webhook",
				"GET /api/v1/applications/export",
			},
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("\n🛑 Shutting down server...")
		if cfg.Worker.Enabled {
			poller.Stop()
			worker.Stop()
		}
		if reaping {
			reaper.Stop()
		}
		if err := app.Shutdown(); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("🚀 Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
