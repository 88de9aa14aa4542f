package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/TalWayn72/EduSphere-sub001/internal/app"
	"github.com/TalWayn72/EduSphere-sub001/internal/data/db"
	"github.com/TalWayn72/EduSphere-sub001/internal/data/graph"
	"github.com/TalWayn72/EduSphere-sub001/internal/data/repos/knowledge"
	"github.com/TalWayn72/EduSphere-sub001/internal/handlers"
	"github.com/TalWayn72/EduSphere-sub001/internal/observability"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/agedb"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/embedder"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
	"github.com/TalWayn72/EduSphere-sub001/internal/server"
	"github.com/TalWayn72/EduSphere-sub001/internal/services"
)

func main() {
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

	cfg := app.LoadConfig(log)

	// Tracing, off unless OTEL_ENABLED is set.
	if shutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "knowledge-retrieval",
		Environment: cfg.LogMode,
		Version:     os.Getenv("SERVICE_VERSION"),
	}); shutdown != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	// Relational corpus
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Property graph
	ageClient, err := agedb.NewFromEnv(log)
	if err != nil {
		log.Fatal("AGE graph init failed", "error", err)
	}
	if ageClient == nil {
		log.Warn("AGE graph not configured; path queries will return empty results")
	} else {
		defer ageClient.Close()
	}

	// Embedding provider + cache backend. Both are optional: no provider
	// means keyword-only search, no Redis means cache pass-through.
	provider, err := embedder.NewFromEnv(log)
	if err != nil {
		log.Fatal("embedding provider init failed", "error", err)
	}
	if provider == nil {
		log.Warn("embedding provider not configured; semantic search will use keyword fallback")
	}
	cacheStore, err := services.NewRedisStoreFromEnv(log)
	if err != nil {
		log.Warn("Redis init failed; embedding cache disabled", "error", err)
	}

	// Repos
	docRepo := knowledge.NewDocumentRepo(thePG, log)
	conceptRepo := knowledge.NewConceptRepo(thePG, log)

	// Services
	var cypherExec graph.CypherExecutor
	if ageClient != nil {
		cypherExec = ageClient
	}
	finder := graph.NewPathFinder(cypherExec, log)
	syncer := graph.NewSyncer(cypherExec, log)
	cache := services.NewEmbeddingCacheService(log, cacheStore, provider)
	hybrid := services.NewHybridSearchService(log, docRepo, cache, finder)
	retrieval := services.NewKnowledgeRetrievalService(log, docRepo, conceptRepo, cache, hybrid, finder)
	ingestion := services.NewKnowledgeIngestionService(log, docRepo, conceptRepo, cache, syncer)

	router := server.NewRouter(server.RouterConfig{
		Health:    handlers.NewHealthHandler(),
		Knowledge: handlers.NewKnowledgeHandler(log, retrieval),
		Ingestion: handlers.NewIngestionHandler(log, ingestion),
	})

	log.Info("knowledge retrieval service listening", "port", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("server exited", "error", err)
	}
}
