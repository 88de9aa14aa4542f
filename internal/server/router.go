package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/TalWayn72/EduSphere-sub001/internal/handlers"
)

type RouterConfig struct {
	Health    *handlers.HealthHandler
	Knowledge *handlers.KnowledgeHandler
	Ingestion *handlers.IngestionHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// No-op until InitOTel installs a real tracer provider.
	r.Use(otelgin.Middleware("knowledge-retrieval"))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "X-Tenant-ID", "X-User-ID", "X-Role"},
	}))

	r.GET("/healthz", cfg.Health.Check)

	v1 := r.Group("/v1")
	{
		v1.POST("/search", cfg.Knowledge.Search)
		v1.POST("/search/graph", cfg.Knowledge.SearchWithGraph)
		v1.POST("/semantic-search", cfg.Knowledge.SemanticSearch)
		v1.GET("/paths/shortest", cfg.Knowledge.ShortestPath)
		v1.GET("/concepts/:name/related", cfg.Knowledge.RelatedConcepts)
		v1.GET("/concepts/:name/prerequisites", cfg.Knowledge.PrerequisiteChain)
		v1.DELETE("/cache/embeddings", cfg.Knowledge.ClearEmbeddingCache)

		v1.POST("/documents", cfg.Ingestion.IngestDocument)
		v1.GET("/concepts", cfg.Ingestion.ListConcepts)
		v1.POST("/concepts", cfg.Ingestion.UpsertConcept)
		v1.POST("/concepts/relations", cfg.Ingestion.RelateConcepts)
	}
	return r
}
