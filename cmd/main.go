package main

// @title Conciliation Service API
// @version 1.0
// @description Reconciles card terminal (maquininha) sales against bank receipts
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/limistah/conciliation-service/docs"
	"github.com/limistah/conciliation-service/internal/auth"
	"github.com/limistah/conciliation-service/internal/config"
	"github.com/limistah/conciliation-service/internal/database"
	"github.com/limistah/conciliation-service/internal/locking"
	"github.com/limistah/conciliation-service/internal/logger"
	"github.com/limistah/conciliation-service/internal/matching"
	"github.com/limistah/conciliation-service/internal/metrics"
	"github.com/limistah/conciliation-service/internal/middleware"
	"github.com/limistah/conciliation-service/internal/repositories"
	"github.com/limistah/conciliation-service/internal/routes"
	"github.com/limistah/conciliation-service/internal/scheduler"
	"github.com/limistah/conciliation-service/internal/usecases"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load environment variables
	envErr := godotenv.Load()
	cfg := config.LoadConfig()

	log := logger.New(cfg.App.LogLevel)
	if envErr != nil {
		log.Info("No .env file found, using environment variables")
	}
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Initialize(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.WithError(err).Fatal("Failed to get database instance")
	}

	locker, closeLocker := newLocker(cfg, log)
	defer closeLocker()

	repos := repositories.NewRepositories(db)
	useCases := usecases.NewUseCases(repos, locker, cfg.Reconciliation, log)

	jwtService := auth.NewJWTService(cfg.App.JWTSecret, "conciliation-service")

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log), metrics.GinMiddleware())
	docs.SwaggerInfo.BasePath = "/api/v1"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.SetupRoutes(router, routes.Dependencies{
		UseCases:   useCases,
		JWTService: jwtService,
		Tolerance: matching.Tolerance{
			Amount: cfg.Reconciliation.AmountTolerance,
			Days:   cfg.Reconciliation.DayTolerance,
		},
		DB: sqlDB,
	})

	var jobs *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		jobs = scheduler.New(useCases.Terminal, useCases.User, useCases.Reconciliation, cfg.Reconciliation.DayTolerance, log)
		if err := jobs.Start(cfg.Scheduler.Cron); err != nil {
			log.WithError(err).Fatal("Failed to start scheduler")
		}
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"addr": server.Addr,
			"env":  cfg.App.Environment,
		}).Info("Server starting")
		log.Infof("Swagger UI available at: http://%s:%s/swagger/index.html", cfg.Server.Host, cfg.Server.Port)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if jobs != nil {
		if err := jobs.Stop(ctx); err != nil {
			log.WithError(err).Warn("Scheduled run still in progress at shutdown")
		}
	}
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shut down")
	}
	if err := sqlDB.Close(); err != nil {
		log.WithError(err).Error("Failed to close database")
	}
}

// newLocker uses Redis when configured so concurrent instances share run locks.
func newLocker(cfg *config.Config, log logrus.FieldLogger) (locking.Locker, func()) {
	if cfg.Redis.Address == "" {
		log.Info("REDIS_ADDRESS not set, using in-process reconciliation locks")
		return locking.NewMemoryLocker(), func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}

	log.WithField("addr", cfg.Redis.Address).Info("Using Redis reconciliation locks")
	return locking.NewRedisLocker(rdb, cfg.Reconciliation.LockTTL), func() {
		if err := rdb.Close(); err != nil {
			log.WithError(err).Error("Failed to close Redis client")
		}
	}
}
