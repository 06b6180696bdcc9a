package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/docugraph/docugraph/internal/chat"
	"github.com/docugraph/docugraph/internal/config"
	"github.com/docugraph/docugraph/internal/data/graph"
	"github.com/docugraph/docugraph/internal/http/handlers"
	"github.com/docugraph/docugraph/internal/ingestion"
	"github.com/docugraph/docugraph/internal/observability"
	"github.com/docugraph/docugraph/internal/platform/gcp"
	"github.com/docugraph/docugraph/internal/platform/genai"
	"github.com/docugraph/docugraph/internal/platform/logger"
	"github.com/docugraph/docugraph/internal/platform/neo4jdb"
	"github.com/docugraph/docugraph/internal/retrieval"
	"github.com/docugraph/docugraph/internal/server"
)

const serviceName = "docugraph"

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	// Tracing
	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: serviceName,
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})
	if shutdownOtel != nil {
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownOtel(sctx); err != nil {
				log.Warn("Tracer shutdown failed", "error", err)
			}
		}()
	}

	// Neo4j
	log.Info("Connecting to Neo4j from main...")
	neoClient, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Error("Could not init Neo4j client", "error", err)
		os.Exit(1)
	}
	defer neoClient.Close(ctx)

	store := graph.NewStore(neoClient, log)
	store.InitSchema(ctx)

	// Services
	log.Info("Setting up services from main...")
	bucketService, err := gcp.NewBucketService(log)
	if err != nil {
		log.Error("Could not init BucketService", "error", err)
		os.Exit(1)
	}
	modelClient, err := genai.NewClient(log)
	if err != nil {
		log.Error("Could not init model client", "error", err)
		os.Exit(1)
	}

	retrievalCfg := config.LoadRetrieval(log)
	engine := retrieval.NewEngine(store, log, retrievalCfg)
	ingestService := ingestion.NewService(log, store, bucketService, modelClient, retrievalCfg)
	chatService := chat.NewService(log, engine, modelClient, store, bucketService)

	// Handlers
	log.Info("Setting up handlers from main...")
	fileHandler := handlers.NewFileHandler(log, ingestService, store, bucketService)
	chatHandler := handlers.NewChatHandler(log, chatService)
	nodeHandler := handlers.NewNodeHandler(log, store)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		ServiceName: serviceName,
		FileHandler: fileHandler,
		ChatHandler: chatHandler,
		NodeHandler: nodeHandler,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
