package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"ms-booking/internal/booking"
	"ms-booking/internal/booking/booking_api"
	bookingsdb "ms-booking/internal/bookings/db"
	"ms-booking/internal/config"
	"ms-booking/internal/database"
	"ms-booking/internal/database/migrations"
	eventsdb "ms-booking/internal/events/db"
	"ms-booking/internal/kafka"
	"ms-booking/internal/locks"
	"ms-booking/internal/logger"
)

type publisher interface {
	booking.Publisher
	Close() error
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(logger.Options{
		Service: cfg.Log.Service,
		Dir:     cfg.Log.Dir,
		Level:   logger.ParseLevel(cfg.Log.Level),
		NoColor: cfg.Log.NoColor,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	log.Info("APP", "Starting event booking service")

	ctx := context.Background()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Migrations.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
			MigrationsDir: cfg.Migrations.Dir,
			AutoMigrate:   true,
			SeedData:      cfg.Migrations.SeedData,
		}, log)
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
		if err := runner.Close(); err != nil {
			log.Warn("MIGRATE", err.Error())
		}
	}

	// The in-process lock always runs; Redis extends it across instances.
	var locker locks.Locker = locks.NewKeyedMutex()
	if cfg.Redis.Enabled {
		redisClient, err := database.NewRedisClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal("REDIS", err.Error())
		}
		defer redisClient.Close()
		locker = locks.Chain{
			locker,
			locks.NewRedisLocker(redisClient, cfg.Lock.TTL, cfg.Lock.Wait, cfg.Lock.RetryInterval, log),
		}
		log.Info("REDIS", "Distributed booking lock enabled")
	}

	var kafkaProducer publisher = kafka.NoopPublisher{}
	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.Events, cfg.Kafka.Topics.Bookings}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		kafkaProducer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		log.Info("KAFKA", "Kafka producer initialized successfully")
	}
	defer kafkaProducer.Close()

	service := booking.NewService(
		&eventsdb.DB{Bun: bunDB},
		&bookingsdb.DB{Bun: bunDB},
		bookingsdb.NewTxManager(bunDB, locker),
		kafkaProducer,
		log,
	)
	handler := booking_api.NewHandler(service, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(booking_api.RequestLogger(log))
	r.Use(middleware.Recoverer)
	handler.RegisterRoutes(r)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Event booking service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Event booking service shutdown complete")
	}
}
