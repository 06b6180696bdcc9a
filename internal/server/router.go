package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/docugraph/docugraph/internal/http/handlers"
)

type RouterConfig struct {
	ServiceName string
	FileHandler *handlers.FileHandler
	ChatHandler *handlers.ChatHandler
	NodeHandler *handlers.NodeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))
	router.Use(otelgin.Middleware(cfg.ServiceName))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Files
		api.POST("/files", cfg.FileHandler.Upload)
		api.POST("/files/link", cfg.FileHandler.Link)
		// Nodes
		api.GET("/nodes", cfg.NodeHandler.List)
		// Chat
		api.POST("/chat", cfg.ChatHandler.Ask)
	}

	return router
}
