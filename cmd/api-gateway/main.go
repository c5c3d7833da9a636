package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/holiday-tracker-api/api/swagger"
	"github.com/noah-isme/holiday-tracker-api/internal/handler"
	internalmiddleware "github.com/noah-isme/holiday-tracker-api/internal/middleware"
	"github.com/noah-isme/holiday-tracker-api/internal/models"
	"github.com/noah-isme/holiday-tracker-api/internal/repository"
	"github.com/noah-isme/holiday-tracker-api/internal/service"
	"github.com/noah-isme/holiday-tracker-api/pkg/cache"
	"github.com/noah-isme/holiday-tracker-api/pkg/config"
	"github.com/noah-isme/holiday-tracker-api/pkg/database"
	"github.com/noah-isme/holiday-tracker-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/holiday-tracker-api/pkg/middleware/cors"
	"github.com/noah-isme/holiday-tracker-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/holiday-tracker-api/pkg/middleware/requestid"
)

// @title Holiday Tracker API
// @version 1.0.0
// @description Holiday request validation, approval and visibility service
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	cacheEnabled := cfg.Holidays.CacheEnabled
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, holiday list cache disabled", zap.Error(err))
		cacheEnabled = false
		redisClient = redis.NewClient(cache.Options(cfg.Redis))
	}
	defer redisClient.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	holidayRepo := repository.NewHolidayRepository(db)
	configurationRepo := repository.NewConfigurationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Holidays.CacheTTL, logr, cacheEnabled)
	configurationSvc := service.NewConfigurationService(configurationRepo, auditRepo, cacheSvc, validate, logr, service.ConfigurationServiceConfig{
		Defaults: map[string]string{
			models.ConfigKeyVisibilityMode:          cfg.Holidays.DefaultVisibilityMode,
			models.ConfigKeyDefaultHolidayAllowance: fmt.Sprintf("%d", cfg.Holidays.DefaultAllowance),
		},
	})
	authSvc := service.NewAuthService(userRepo, auditRepo, departmentRepo, configurationSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "holiday-tracker-api",
	})
	userSvc := service.NewUserService(userRepo, departmentRepo, configurationSvc, auditRepo, cacheSvc, validate, logr)
	holidaySvc := service.NewHolidayService(holidayRepo, userRepo, configurationSvc, auditRepo, cacheSvc, metricsSvc, validate, logr, service.HolidayServiceConfig{
		Location: cfg.Location(),
		CacheTTL: cfg.Holidays.CacheTTL,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	holidayHandler := handler.NewHolidayHandler(holidaySvc)
	configurationHandler := handler.NewConfigurationHandler(configurationSvc)
	departmentHandler := handler.NewDepartmentHandler(departmentRepo)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.ReadinessCheck{
		"database": db.PingContext,
		"redis":    cacheRepo.Ping,
	}, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.WithResponseMeta())

	authLimiter := ratelimit.NewKeyedLimiter(cfg.RateLimit.LoginRPS, cfg.RateLimit.LoginBurst)
	auth := api.Group("/auth")
	auth.POST("/register", ratelimit.ByIP(authLimiter), authHandler.Register)
	auth.POST("/login", ratelimit.ByIP(authLimiter), authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	api.GET("/departments", departmentHandler.List)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))

	secured.POST("/auth/logout", authHandler.Logout)
	secured.POST("/auth/change-password", authHandler.ChangePassword)
	secured.GET("/auth/me", authHandler.Me)

	adminOnly := internalmiddleware.RequireRoles(models.RoleAdmin)

	holidays := secured.Group("/holidays")
	holidays.POST("", holidayHandler.Create)
	holidays.GET("", holidayHandler.List)
	holidays.GET("/balance", holidayHandler.Balance)
	holidays.GET("/export",
		internalmiddleware.Audit(auditRepo, logr, models.AuditActionHolidayExport, models.AuditResourceHoliday),
		holidayHandler.Export)
	holidays.GET("/:id", holidayHandler.Get)
	holidays.PUT("/:id", holidayHandler.Update)
	holidays.POST("/:id/decision", adminOnly, holidayHandler.Decide)
	holidays.POST("/:id/cancel", holidayHandler.Cancel)
	holidays.GET("/:id/history", holidayHandler.History)

	users := secured.Group("/users")
	users.GET("", adminOnly, userHandler.List)
	users.POST("", adminOnly, userHandler.Create)
	users.GET("/:id", internalmiddleware.RBAC(string(models.RoleAdmin), internalmiddleware.SelfRole), userHandler.Get)
	users.PUT("/:id", adminOnly, userHandler.Update)
	users.POST("/:id/activate", adminOnly, userHandler.Activate)
	users.DELETE("/:id", adminOnly, userHandler.Delete)

	secured.GET("/settings/visibility", configurationHandler.Visibility)
	configuration := secured.Group("/configuration", adminOnly)
	configuration.GET("", configurationHandler.List)
	configuration.PUT("/bulk", configurationHandler.BulkUpdate)
	configuration.GET("/:key", configurationHandler.Get)
	configuration.PUT("/:key", configurationHandler.Update)

	secured.GET("/metrics/summary", adminOnly, metricsHandler.Summary)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "timezone", cfg.Location().String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
