package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "tourdesk/api/swagger" // swagger docs
	"tourdesk/internal/config"
	"tourdesk/internal/database"
	"tourdesk/internal/handler"
	"tourdesk/internal/mailer"
	"tourdesk/internal/middleware"
	"tourdesk/internal/payment"
	"tourdesk/internal/queue"
	"tourdesk/internal/repository"
	"tourdesk/internal/scheduler"
	"tourdesk/internal/sequence"
	"tourdesk/internal/service"
	"tourdesk/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Tourdesk API
// @version         1.0
// @description     Back office for tour operators: agents, pricing, bookings, availability and invoicing.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()
	gin.SetMode(cfg.Env)

	db, err := database.NewConnection(cfg.DSN())
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(cfg.CORSOrigins...)
	go wsHub.Run(ctx)

	// Repositories
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	agentRepo := repository.NewAgentRepository(db)
	programRepo := repository.NewProgramRepository(db)
	pricingRepo := repository.NewAgentPricingRepository(db)
	availRepo := repository.NewAvailabilityRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	statsRepo := repository.NewStatisticsRepository(db)

	// Integrations; each falls back to a local stand-in when unconfigured
	var counter sequence.Counter = sequence.NewDBCounter(db, sequence.MaxIssued(invoiceRepo))
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("WARNING: Redis unavailable (%v), numbering invoices from the database", err)
		} else {
			counter = sequence.NewRedisCounter(client, sequence.MaxIssued(invoiceRepo))
			log.Println("Invoice numbering through Redis.")
		}
	}

	var sender mailer.Sender = mailer.Disabled{}
	if cfg.SMTP.Enabled() {
		sender = mailer.SMTP{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}
	} else {
		log.Println("SMTP not configured; outbound email is disabled.")
	}

	var publisher queue.Publisher = queue.Noop{}
	if cfg.RabbitMQURL != "" {
		publisher = queue.NewAMQPPublisher(cfg.RabbitMQURL)
	}

	gateway := payment.NewMidtrans(cfg.MidtransServerKey, cfg.MidtransClientKey, cfg.MidtransUseProd)

	// Services
	userService := service.NewUserService(userRepo, companyRepo, agentRepo, auditRepo, txManager, cfg.JWTSecret)
	settingsService := service.NewSettingsService(companyRepo, auditRepo, txManager)
	agentService := service.NewAgentService(agentRepo, bookingRepo, invoiceRepo, pricingRepo, auditRepo, txManager)
	programService := service.NewProgramService(programRepo)
	pricingService := service.NewPricingService(agentRepo, programRepo, pricingRepo, auditRepo, txManager)
	availabilityService := service.NewAvailabilityService(availRepo, programRepo, auditRepo, txManager)
	bookingService := service.NewBookingService(bookingRepo, programRepo, agentRepo, availRepo, companyRepo, auditRepo, txManager, publisher, wsHub)
	publicService := service.NewPublicBookingService(companyRepo, programRepo, agentRepo, bookingRepo, availRepo, auditRepo, txManager, gateway, publisher, wsHub, time.Now)
	invoiceService := service.NewInvoiceService(invoiceRepo, bookingRepo, agentRepo, pricingRepo, companyRepo, auditRepo, txManager, counter, wsHub)
	notificationService := service.NewNotificationService(sender, companyRepo, bookingRepo)
	dashboardService := service.NewDashboardService(statsRepo)
	auditService := service.NewAuditService(auditRepo)

	// Background work
	if cfg.RabbitMQURL != "" {
		go queue.NewConsumer(cfg.RabbitMQURL, notificationService.SendBookingConfirmation).Run(ctx)
	}
	jobs := scheduler.New(companyRepo, invoiceService, notificationService)
	if err := jobs.Start(cfg.OverdueCron, cfg.OPReportCron); err != nil {
		log.Fatalf("Scheduler failed: %v", err)
	}
	defer jobs.Stop()

	if err := handler.RegisterValidators(); err != nil {
		log.Fatalf("Validator registration failed: %v", err)
	}
	auth := middleware.NewAuth(cfg.JWTSecret, cfg.Env == gin.ReleaseMode)

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService, auth, cfg.DefaultTimezone)
	settingsHandler := handler.NewSettingsHandler(settingsService, notificationService, auth)
	agentHandler := handler.NewAgentHandler(agentService, pricingService, auth)
	programHandler := handler.NewProgramHandler(programService, availabilityService, auth)
	bookingHandler := handler.NewBookingHandler(bookingService, notificationService, auth)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, auth)
	reportHandler := handler.NewReportHandler(notificationService, dashboardService, auditService, auth)
	publicHandler := handler.NewPublicHandler(publicService)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, auth.CompanyOf)
	})

	// API Routing
	userHandler.RegisterRoutes(router.Group(""))
	settingsHandler.RegisterRoutes(router.Group(""))
	agentHandler.RegisterRoutes(router.Group(""))
	programHandler.RegisterRoutes(router.Group(""))
	bookingHandler.RegisterRoutes(router.Group(""))
	invoiceHandler.RegisterRoutes(router.Group(""))
	reportHandler.RegisterRoutes(router.Group(""))
	publicHandler.RegisterRoutes(router.Group(""))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Server stopped gracefully")
}
