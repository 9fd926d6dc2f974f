package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go-event-admission/config"
	"go-event-admission/internal/cache"
	"go-event-admission/internal/database"
	"go-event-admission/internal/handler"
	"go-event-admission/internal/notifier"
	"go-event-admission/internal/queue"
	"go-event-admission/internal/repository"
	"go-event-admission/internal/service"
	"go-event-admission/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()

	pool, err := database.InitDatabase(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer pool.Close()

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to initialize redis: %v", err)
	}
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessionRepo := repository.NewSessionRepository(pool)
	registrationRepo := repository.NewRegistrationRepository(pool)
	waitlistRepo := repository.NewWaitlistRepository(pool)

	notificationQueue, err := queue.NewRedisStreamNotificationQueue(rdb, "", nil)
	if err != nil {
		log.Fatalf("Failed to initialize notification queue: %v", err)
	}

	retryStore := notifier.NewRetryStore(pool)
	sink := notifier.NewLogSink()
	dispatcher := notifier.NewDispatcher(notificationQueue, retryStore, cfg.Notifier.InitialBackoff)

	notificationWorker := worker.NewNotificationWorker(notificationQueue, sink, retryStore, cfg.Notifier.InitialBackoff)
	if err := notificationWorker.Start(ctx); err != nil {
		log.Fatalf("Failed to start notification worker: %v", err)
	}

	sweeper := notifier.NewRetrySweeper(pool, retryStore, sink, &notifier.SweeperConfig{
		SweepInterval:  cfg.Notifier.SweepInterval,
		InitialBackoff: cfg.Notifier.InitialBackoff,
		MaxAttempts:    cfg.Notifier.MaxAttempts,
	})
	sweeper.Start(ctx)

	seatCache := cache.NewRedisSeatStatusCache(rdb)
	issuer := service.NewCredentialIssuer()
	admissionService := service.NewAdmissionService(
		pool, sessionRepo, registrationRepo, waitlistRepo,
		issuer, dispatcher, seatCache,
	)

	router := gin.Default()
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	registrationHandler := handler.NewRegistrationHandler(admissionService)
	registrationHandler.RegisterRoutes(router)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
