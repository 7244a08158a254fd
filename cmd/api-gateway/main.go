package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/classbook/classbook-api/api/swagger"
	"github.com/classbook/classbook-api/internal/handler"
	"github.com/classbook/classbook-api/internal/middleware"
	"github.com/classbook/classbook-api/internal/repository"
	"github.com/classbook/classbook-api/internal/service"
	"github.com/classbook/classbook-api/pkg/cache"
	"github.com/classbook/classbook-api/pkg/config"
	"github.com/classbook/classbook-api/pkg/database"
	"github.com/classbook/classbook-api/pkg/logger"
	corsmiddleware "github.com/classbook/classbook-api/pkg/middleware/cors"
	reqidmiddleware "github.com/classbook/classbook-api/pkg/middleware/requestid"
	"github.com/classbook/classbook-api/pkg/occtoken"
)

// @title Classbook API
// @version 1.0.0
// @description Class catalog and occurrence booking service
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		if err := database.Migrate(ctx, db, cfg.Database.MigrationsDir); err != nil {
			cancel()
			logr.Sugar().Fatalw("failed to apply migrations", "error", err)
		}
		cancel()
	}

	location, err := time.LoadLocation(cfg.Booking.Timezone)
	if err != nil {
		logr.Sugar().Fatalw("invalid booking timezone", "timezone", cfg.Booking.Timezone, "error", err)
	}

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	cacheEnabled := false
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, continuing without occurrence cache", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			cacheEnabled = true
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cacheEnabled)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	ruleRepo := repository.NewScheduleRuleRepository(db)
	bookingRepo := repository.NewBookingRepository(db)

	codec := occtoken.NewCodec(cfg.Booking.TokenSecret,
		occtoken.WithSalt(cfg.Booking.TokenSalt),
		occtoken.WithGrace(cfg.Booking.TokenGrace),
		occtoken.WithHorizon(cfg.Booking.Horizon),
	)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	scheduleSvc := service.NewScheduleService(ruleRepo, codec, cacheSvc, location, cfg.Booking.SessionDuration, logr)
	classSvc := service.NewClassService(classRepo, ruleRepo, scheduleSvc, cacheSvc, validate, logr)
	bookingSvc := service.NewBookingService(bookingRepo, codec, cfg.Booking.AdmissionGrace, metricsSvc, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	classHandler := handler.NewClassHandler(classSvc, scheduleSvc, cfg.Booking.DefaultWindow)

	var bookingHandler *handler.BookingHandler
	if cfg.Exports.Enabled {
		exportSvc := service.NewExportService(bookingRepo, cfg.Exports.CalendarName, logr)
		bookingHandler = handler.NewBookingHandler(bookingSvc, classSvc, exportSvc)
	} else {
		bookingHandler = handler.NewBookingHandler(bookingSvc, classSvc, nil)
	}

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

		api.GET("/classes", classHandler.List)
		api.GET("/classes/:slug", classHandler.Detail)
		api.GET("/classes/:slug/occurrences", classHandler.Occurrences)

		protected := api.Group("", middleware.JWT(authSvc))
		protected.POST("/classes", classHandler.Create)
		protected.POST("/classes/:slug/rules", classHandler.CreateRule)
		protected.PUT("/rules/:id", classHandler.UpdateRule)
		protected.DELETE("/rules/:id", classHandler.DeleteRule)

		protected.POST("/classes/:slug/bookings", bookingHandler.Create)
		protected.GET("/bookings", bookingHandler.List)
		protected.GET("/bookings/export", bookingHandler.Export)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
