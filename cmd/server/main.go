package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/ngmgroup/ngm-hub-core/internal/api"
	"github.com/ngmgroup/ngm-hub-core/internal/autoauth"
	"github.com/ngmgroup/ngm-hub-core/internal/config"
	"github.com/ngmgroup/ngm-hub-core/internal/dispatcher"
	"github.com/ngmgroup/ngm-hub-core/internal/export"
	"github.com/ngmgroup/ngm-hub-core/internal/lifecycle"
	"github.com/ngmgroup/ngm-hub-core/internal/notify"
	"github.com/ngmgroup/ngm-hub-core/internal/ocr"
	"github.com/ngmgroup/ngm-hub-core/internal/repository"
	"github.com/ngmgroup/ngm-hub-core/internal/scan"
	"github.com/ngmgroup/ngm-hub-core/internal/service"
	"github.com/ngmgroup/ngm-hub-core/internal/storage"
	"github.com/ngmgroup/ngm-hub-core/pkg/database"
	"github.com/ngmgroup/ngm-hub-core/pkg/utils"
)

func main() {
	// Local .env is optional; real deployments set the environment directly
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting NGM HUB expense core",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	if err := database.NewMigrator(db, logger).Run(); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	expenseRepo := repository.NewExpenseRepository(db.DB, logger)
	statusLogRepo := repository.NewStatusLogRepository(db.DB, logger)
	changeLogRepo := repository.NewChangeLogRepository(db.DB, logger)
	billRepo := repository.NewBillRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	metricsRepo := repository.NewMetricsRepository(db.DB, logger)

	// Event dispatcher carries all background work
	events := dispatcher.New(logger)
	defer events.Close()

	// Lifecycle and services
	rules := lifecycle.Default(userRepo, cfg.AutoAuth.ReviewerRoles)
	statusSvc := service.NewStatusService(db, expenseRepo, statusLogRepo, rules, events, logger)
	expenseSvc := service.NewExpenseService(db, expenseRepo, statusLogRepo, changeLogRepo, statusSvc, events, logger)

	// Receipt scan pipeline
	extractor := scan.NewOpenAIExtractor(cfg.OpenAI.APIKey, cfg.OpenAI.Model, logger)
	ocrEngine := ocr.NewTesseractEngine(cfg.OCR.Languages, logger)
	pipeline := scan.NewPipeline(
		scan.NewPDFTextTier(logger),
		scan.NewLocalOCRTier(ocrEngine, logger),
		extractor,
		metricsRepo,
		scan.Timeouts{
			NativeText: cfg.Scan.NativeTextTimeout,
			LocalOCR:   cfg.Scan.LocalOCRTimeout,
			Vision:     cfg.Scan.VisionTimeout,
		},
		logger,
	)

	// Background subscribers
	if cfg.AutoAuth.Enabled {
		policy := autoauth.NewWeightedPolicy(autoauth.WeightedPolicyConfig{
			AmountTolerance: cfg.AutoAuth.AmountTolerance,
			DateWindowDays:  cfg.AutoAuth.DateWindowDays,
			Threshold:       cfg.AutoAuth.MatchThreshold,
		})
		autoauth.NewEngine(expenseRepo, billRepo, statusSvc, policy, logger).Register(events)
	}
	notify.NewBudgetWatcher(notify.NewLoggingBudgetChecker(logger), logger).Register(events)

	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "ngm-hub-core",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	receipts := storage.NewLocalReceiptStore(cfg.Storage.ReceiptsDir, logger)
	handler := api.NewHandler(expenseSvc, statusSvc, pipeline, export.NewAuditExporter(logger), receipts, metricsRepo, logger)
	handler.Register(router.Group("/api/v1"))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
