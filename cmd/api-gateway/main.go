package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/fieldmed/medrep-api/api/swagger"
	"github.com/fieldmed/medrep-api/internal/handler"
	"github.com/fieldmed/medrep-api/internal/middleware"
	"github.com/fieldmed/medrep-api/internal/models"
	"github.com/fieldmed/medrep-api/internal/repository"
	"github.com/fieldmed/medrep-api/internal/service"
	"github.com/fieldmed/medrep-api/pkg/cache"
	"github.com/fieldmed/medrep-api/pkg/config"
	"github.com/fieldmed/medrep-api/pkg/database"
	"github.com/fieldmed/medrep-api/pkg/export"
	"github.com/fieldmed/medrep-api/pkg/logger"
	"github.com/fieldmed/medrep-api/pkg/mailer"
	corsmiddleware "github.com/fieldmed/medrep-api/pkg/middleware/cors"
	reqidmiddleware "github.com/fieldmed/medrep-api/pkg/middleware/requestid"
)

// @title MedRep Field Reporting API
// @version 1.0.0
// @description Field-sales reporting backend for medical representatives
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Dashboards fall back to direct queries when Redis is unavailable.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var mailSender mailer.Sender
	if cfg.SMTP.Enabled {
		mailSender = mailer.NewSMTPSender(cfg.SMTP)
	} else {
		mailSender = mailer.NopSender{}
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	mrRequestRepo := repository.NewMRRequestRepository(db)
	doctorRepo := repository.NewDoctorRepository(db)
	productRepo := repository.NewProductRepository(db)
	visitRepo := repository.NewVisitRepository(db)
	targetRepo := repository.NewTargetRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsService := service.NewMetricsService()
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "medrep-api",
	})
	userService := service.NewUserService(userRepo, validate, logr)
	mrRequestService := service.NewMRRequestService(mrRequestRepo, userRepo, mailSender, validate, cacheService, logr)
	doctorService := service.NewDoctorService(doctorRepo, validate, logr)
	productService := service.NewProductService(productRepo, sequenceRepo, validate, logr)
	visitService := service.NewVisitService(visitRepo, doctorRepo, productRepo, validate, cacheService, logr)
	targetService := service.NewTargetService(targetRepo, visitRepo, doctorRepo, sequenceRepo, validate, logr)
	dashboardService := service.NewDashboardService(visitRepo, userRepo, doctorRepo, productRepo, mrRequestRepo, targetService, cacheService, cfg.Dashboard.CacheTTL, logr)
	exportService := service.NewExportService(visitRepo, export.NewCSVExporter(), export.NewPDFExporter(), cfg.Exports.MaxRows, logr)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	mrRequestHandler := handler.NewMRRequestHandler(mrRequestService)
	doctorHandler := handler.NewDoctorHandler(doctorService)
	productHandler := handler.NewProductHandler(productService)
	visitHandler := handler.NewVisitHandler(visitService, exportService)
	targetHandler := handler.NewTargetHandler(targetService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	metricsRoutes := r.Group("/metrics", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin))
	metricsRoutes.GET("", metricsHandler.Prometheus)
	metricsRoutes.GET("/snapshot", metricsHandler.Snapshot)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.POST("/mr-requests", mrRequestHandler.Submit)

	authed := api.Group("", middleware.JWT(authService))
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.POST("/auth/change-password", authHandler.ChangePassword)
		authed.GET("/auth/me", authHandler.Me)

		authed.GET("/visits", visitHandler.List)
		authed.GET("/visits/export", visitHandler.Export)
		authed.GET("/visits/:id", visitHandler.Get)

		authed.POST("/doctors", doctorHandler.Create)
		authed.GET("/doctors", doctorHandler.List)
		authed.GET("/doctors/:id", doctorHandler.Get)
		authed.PUT("/doctors/:id", doctorHandler.Update)
		authed.DELETE("/doctors/:id", doctorHandler.Delete)

		authed.GET("/products", productHandler.List)
		authed.GET("/products/:id", productHandler.Get)

		authed.GET("/targets/:mrId", targetHandler.ListForMR)
	}

	mrOnly := authed.Group("", middleware.RequireRoles(models.RoleMR))
	{
		mrOnly.POST("/visits", visitHandler.Create)
		mrOnly.GET("/dashboard/mr", dashboardHandler.MRStats)
	}

	admin := authed.Group("", middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/mr-requests", mrRequestHandler.List)
		admin.POST("/mr-requests/:id/approve", mrRequestHandler.Approve)
		admin.POST("/mr-requests/:id/reject", mrRequestHandler.Reject)
		admin.DELETE("/mr-requests/:id", mrRequestHandler.Delete)

		admin.GET("/users", userHandler.List)
		admin.POST("/users", userHandler.Create)
		admin.GET("/users/:id", userHandler.Get)
		admin.PUT("/users/:id", userHandler.Update)
		admin.DELETE("/users/:id", userHandler.Delete)

		admin.POST("/products", productHandler.Create)
		admin.PUT("/products/:id", productHandler.Update)
		admin.DELETE("/products/:id", productHandler.Delete)
		admin.POST("/products/backfill-codes", productHandler.BackfillCodes)
		admin.POST("/products/import", productHandler.Import)

		admin.PATCH("/visits/:id/status", visitHandler.UpdateStatus)
		admin.PATCH("/visits/:id/orders", visitHandler.ReplaceOrders)
		admin.PUT("/visits/:id/orders/:orderId/status", visitHandler.UpdateOrderStatus)

		admin.POST("/targets", targetHandler.Create)
		admin.PATCH("/targets/:id/status", targetHandler.UpdateStatus)

		admin.GET("/dashboard/stats", dashboardHandler.AdminStats)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
