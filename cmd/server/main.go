package main

import (
	"context"
	"time"

	"quote_manager/internal/config"
	"quote_manager/internal/database"
	"quote_manager/internal/handlers"
	"quote_manager/internal/migrations"
	"quote_manager/internal/redis"
	"quote_manager/internal/repository"
	"quote_manager/internal/services"
	"quote_manager/pkg/whatsapp"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)

	// Initialize database
	db, err := database.Initialize(database.Options{
		Driver:   cfg.DatabaseDriver,
		URL:      cfg.DatabaseURL,
		LogLevel: cfg.DatabaseLogLevel,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	if cfg.AutoMigrate {
		if err := migrations.RunMigrations(context.Background(), db, false, logger); err != nil {
			logger.WithError(err).Fatal("failed to migrate database")
		}
	}

	// Initialize Redis
	var cache *redis.Client
	if cfg.CacheEnabled() {
		cache, err = redis.Initialize(cfg.RedisURL, time.Duration(cfg.CacheTTL)*time.Second)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to Redis")
		}
		defer cache.Close()
	}

	// Initialize WhatsApp notifier
	var notifier services.Notifier
	if cfg.NotificationsEnabled() {
		client := whatsapp.NewClient(cfg.WhatsAppAPIURL, cfg.WhatsAppUsername, cfg.WhatsAppPassword, cfg.WhatsAppPath)
		notifier = services.NewWhatsAppNotifier(client)
	}

	// Initialize repositories
	transactor := repository.NewTransactor(db)
	quoteRepo := repository.NewQuoteRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	productRepo := repository.NewProductRepository(db)
	settingRepo := repository.NewPricingSettingRepository(db)

	// Initialize services
	quoteService := services.NewQuoteService(transactor, quoteRepo, customerRepo, productRepo, settingRepo, cache, notifier, logger)
	customerService := services.NewCustomerService(customerRepo)
	productService := services.NewProductService(productRepo)

	// Initialize handlers
	apiHandler := handlers.NewAPIHandler(quoteService, customerService, productService, logger)

	gin.SetMode(cfg.GinMode)
	router := gin.Default()
	apiHandler.RegisterRoutes(router)

	// Start server
	logger.WithField("port", cfg.ServerPort).Info("server starting")
	if err := router.Run(":" + cfg.ServerPort); err != nil {
		logger.WithError(err).Fatal("failed to start server")
	}
}
