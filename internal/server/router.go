package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/avelari/workbase-backend/internal/handlers"
	"github.com/avelari/workbase-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler         *handlers.AuthHandler
	AuthMiddleware      *middleware.AuthMiddleware
	NotificationHandler *handlers.NotificationHandler
	ProjectHandler      *handlers.ProjectHandler
	TaskHandler         *handlers.TaskHandler
	OpportunityHandler  *handlers.OpportunityHandler
	EventHandler        *handlers.EventHandler
	SyncHandler         *handlers.SyncHandler

	AllowOrigins []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	allowOrigins := cfg.AllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/api/register", cfg.AuthHandler.Register)
	router.POST("/api/login", cfg.AuthHandler.Login)
	// The sync endpoint authenticates in-band with an auth frame.
	router.GET("/api/sync", cfg.SyncHandler.Serve)

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	api.GET("/notifications", cfg.NotificationHandler.ListMine)
	api.GET("/notifications/unread-count", cfg.NotificationHandler.UnreadCount)
	api.POST("/notifications/mark-read", cfg.NotificationHandler.MarkRead)

	api.GET("/projects", cfg.ProjectHandler.ListMine)
	api.POST("/projects", cfg.ProjectHandler.Create)
	api.PATCH("/projects/:id", cfg.ProjectHandler.Update)
	api.DELETE("/projects/:id", cfg.ProjectHandler.Delete)
	api.GET("/projects/:id/tasks", cfg.TaskHandler.ListByProject)

	api.POST("/tasks", cfg.TaskHandler.Create)
	api.PATCH("/tasks/:id", cfg.TaskHandler.Update)
	api.DELETE("/tasks/:id", cfg.TaskHandler.Delete)

	api.GET("/opportunities", cfg.OpportunityHandler.ListMine)
	api.POST("/opportunities", cfg.OpportunityHandler.Create)
	api.GET("/opportunities/:opportunityID/next-steps", cfg.OpportunityHandler.ListNextSteps)
	api.GET("/opportunities/:opportunityID/communications", cfg.OpportunityHandler.ListCommunications)
	api.POST("/next-steps", cfg.OpportunityHandler.CreateNextStep)
	api.PATCH("/next-steps/:id", cfg.OpportunityHandler.UpdateNextStep)
	api.DELETE("/next-steps/:id", cfg.OpportunityHandler.DeleteNextStep)
	api.POST("/communications", cfg.OpportunityHandler.LogCommunication)
	api.DELETE("/communications/:id", cfg.OpportunityHandler.DeleteCommunication)

	api.POST("/events", cfg.EventHandler.Ingest)

	return router
}
