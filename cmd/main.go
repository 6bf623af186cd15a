package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avelari/workbase-backend/internal/data/aggregates"
	"github.com/avelari/workbase-backend/internal/data/repos"
	"github.com/avelari/workbase-backend/internal/db"
	"github.com/avelari/workbase-backend/internal/handlers"
	"github.com/avelari/workbase-backend/internal/middleware"
	"github.com/avelari/workbase-backend/internal/platform/envutil"
	"github.com/avelari/workbase-backend/internal/platform/logger"
	"github.com/avelari/workbase-backend/internal/realtime"
	"github.com/avelari/workbase-backend/internal/server"
	"github.com/avelari/workbase-backend/internal/services"
)

func main() {
	log, err := logger.New(envutil.Str("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	jwtSecretKey := envutil.Str("JWT_SECRET_KEY", "defaultsecret")
	accessTTL := envutil.Duration("ACCESS_TOKEN_TTL", time.Hour)
	authTimeout := envutil.Duration("SYNC_AUTH_TIMEOUT", 5*time.Second)
	port := envutil.Str("PORT", "8080")

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	gdb := postgresService.DB()

	// Realtime core
	registry := realtime.NewRegistry(log)
	dispatcher := realtime.NewDispatcher(registry, log)
	delivery := realtime.NewNotificationDelivery(registry, log)

	// Repos
	userRepo := repos.NewUserRepo(gdb, log)
	notificationRepo := repos.NewNotificationRepo(gdb, log)
	projectRepo := repos.NewProjectRepo(gdb, log)
	taskRepo := repos.NewTaskRepo(gdb, log)
	opportunityRepo := repos.NewOpportunityRepo(gdb, log)
	nextStepRepo := repos.NewNextStepRepo(gdb, log)
	communicationRepo := repos.NewCommunicationRepo(gdb, log)

	// Aggregates
	runner := aggregates.NewGormTxRunner(gdb)
	projectActivity := aggregates.NewProjectActivity(log, projectRepo, taskRepo)
	opportunityActivity := aggregates.NewOpportunityActivity(log, opportunityRepo, nextStepRepo, communicationRepo)

	// Services
	authService := services.NewAuthService(gdb, log, userRepo, jwtSecretKey, accessTTL)
	notificationService := services.NewNotificationService(log, runner, notificationRepo, delivery)
	projectService := services.NewProjectService(log, runner, projectRepo, dispatcher)
	taskService := services.NewTaskService(log, runner, taskRepo, projectActivity, dispatcher, notificationService)
	opportunityService := services.NewOpportunityService(log, runner, opportunityRepo, nextStepRepo, communicationRepo, opportunityActivity)

	// Router
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:         handlers.NewAuthHandler(authService),
		AuthMiddleware:      middleware.NewAuthMiddleware(log, authService),
		NotificationHandler: handlers.NewNotificationHandler(notificationService),
		ProjectHandler:      handlers.NewProjectHandler(projectService),
		TaskHandler:         handlers.NewTaskHandler(taskService),
		OpportunityHandler:  handlers.NewOpportunityHandler(opportunityService),
		EventHandler:        handlers.NewEventHandler(dispatcher),
		SyncHandler:         handlers.NewSyncHandler(log, registry, authService, authTimeout),
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		registry.CloseAll()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
