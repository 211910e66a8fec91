package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourorg/course-template-service/internal/app"
	"github.com/yourorg/course-template-service/internal/config"
	"github.com/yourorg/course-template-service/internal/handler"
	"github.com/yourorg/course-template-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up logger
	logger, err := app.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Connect to database
	db, err := app.ConnectDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	a, err := app.New(cfg, db, logger, app.Options{})
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer a.Close()

	// Initialize handlers
	templateHandler := handler.NewTemplateHandler(a.TemplateService, a.ArchiveService, logger)
	courseHandler := handler.NewCourseHandler(a.CourseService, logger)
	fileHandler := handler.NewFileHandler(a.TemplateService, logger)

	router := setupRouter(templateHandler, courseHandler, fileHandler, db, cfg.Auth.JWTSecret, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Restores can take a while; give them time to finish
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited properly")
}

func setupRouter(
	templateHandler *handler.TemplateHandler,
	courseHandler *handler.CourseHandler,
	fileHandler *handler.FileHandler,
	db *sqlx.DB,
	jwtSecret string,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()

	// Use middlewares
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// API routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(jwtSecret, logger))
	{
		// Template routes
		templates := v1.Group("/templates")
		{
			templates.GET("", templateHandler.ListTemplates)
			templates.GET("/:id", templateHandler.GetTemplate)

			// Template management is restricted to admins
			admin := templates.Group("")
			admin.Use(middleware.RequireAdmin(logger))
			admin.POST("", templateHandler.CreateTemplate)
			admin.PUT("/:id", templateHandler.UpdateTemplate)
			admin.DELETE("/:id", templateHandler.DeleteTemplate)
			admin.POST("/:id/screenshot", templateHandler.UploadScreenshot)
			admin.POST("/:id/archive", templateHandler.EnsureArchive)
		}

		v1.GET("/tags", templateHandler.ListTags)
		v1.GET("/pluginfile/:area/:id/*path", fileHandler.ServeFile)

		// Course routes
		courses := v1.Group("/courses")
		{
			courses.POST("", courseHandler.CreateCourse)
			courses.POST("/:id/import", courseHandler.ImportIntoCourse)
		}
	}

	return router
}
