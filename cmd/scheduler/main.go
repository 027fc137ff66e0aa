package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/segyhp/loan-servicing/internal/cache"
	"github.com/segyhp/loan-servicing/internal/config"
	"github.com/segyhp/loan-servicing/internal/repository"
	"github.com/segyhp/loan-servicing/internal/service"
	"github.com/segyhp/loan-servicing/pkg/logger"
)

// refreshTimeout bounds a single status refresh run
const refreshTimeout = 30 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err = logger.Init(cfg.Logging.Level, cfg.GetLogFormat()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting loan status scheduler")

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Fatal("failed to initialize database", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	loanService := service.NewLoanService(
		repository.NewCompanyRepository(db),
		repository.NewCustomerRepository(db),
		repository.NewLoanRepository(db),
		repository.NewPaymentRepository(db),
		cache.NewCompanyCache(redisClient, cfg.GetCompanyCacheTTL()),
		cfg,
	)

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logger.Fatal("invalid scheduler timezone", err, zap.String("timezone", cfg.Scheduler.Timezone))
	}

	// Initialize cron scheduler
	c := cron.New(cron.WithSeconds(), cron.WithLocation(location))

	if err = setupCronJobs(c, cfg, loanService); err != nil {
		logger.Fatal("failed to schedule jobs", err)
	}

	c.Start()
	logger.Info("scheduler started", zap.String("status_refresh", cfg.Scheduler.StatusRefreshSpec))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	logger.Info("scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, loanService *service.LoanService) error {
	// Nightly: settle fully paid loans and report the overdue ones
	_, err := c.AddFunc(cfg.Scheduler.StatusRefreshSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		if _, err := loanService.RefreshStatuses(ctx, time.Time{}); err != nil {
			logger.Error("loan status refresh failed", err)
		}
	})
	return err
}
