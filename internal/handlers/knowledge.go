package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/TalWayn72/EduSphere-sub001/internal/domain"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
	"github.com/TalWayn72/EduSphere-sub001/internal/services"
)

// KnowledgeHandler exposes the retrieval facade as thin JSON endpoints.
// Identity arrives pre-resolved in headers from the gateway in front; this
// layer never authenticates.
type KnowledgeHandler struct {
	log       *logger.Logger
	retrieval *services.KnowledgeRetrievalService
}

func NewKnowledgeHandler(log *logger.Logger, retrieval *services.KnowledgeRetrievalService) *KnowledgeHandler {
	return &KnowledgeHandler{log: log.With("handler", "Knowledge"), retrieval: retrieval}
}

func tenantFrom(c *gin.Context) (domain.TenantContext, bool) {
	tenant := domain.TenantContext{
		TenantID: strings.TrimSpace(c.GetHeader("X-Tenant-ID")),
		UserID:   strings.TrimSpace(c.GetHeader("X-User-ID")),
		Role:     strings.TrimSpace(c.GetHeader("X-Role")),
	}
	if tenant.TenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing X-Tenant-ID"})
		return tenant, false
	}
	return tenant, true
}

type searchRequest struct {
	Query          string  `json:"query" binding:"required"`
	TopK           int     `json:"top_k"`
	SemanticWeight float64 `json:"semantic_weight"`
	KeywordWeight  float64 `json:"keyword_weight"`
	RerankTopK     int     `json:"rerank_top_k"`
}

func (h *KnowledgeHandler) Search(c *gin.Context) {
	tenant, ok := tenantFrom(c)
	if !ok {
		return
	}
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	docs, err := h.retrieval.Search(c.Request.Context(), tenant, req.Query, services.SearchOptions{
		TopK:           req.TopK,
		SemanticWeight: req.SemanticWeight,
		KeywordWeight:  req.KeywordWeight,
		RerankTopK:     req.RerankTopK,
	})
	if err != nil {
		h.log.Error("search failed", "tenant_id", tenant.TenantID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "search unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": docs})
}

func (h *KnowledgeHandler) SearchWithGraph(c *gin.Context) {
	tenant, ok := tenantFrom(c)
	if !ok {
		return
	}
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	docs, err := h.retrieval.SearchWithGraphTraversal(c.Request.Context(), tenant, req.Query, services.SearchOptions{
		TopK:           req.TopK,
		SemanticWeight: req.SemanticWeight,
		KeywordWeight:  req.KeywordWeight,
		RerankTopK:     req.RerankTopK,
	})
	if err != nil {
		h.log.Error("graph search failed", "tenant_id", tenant.TenantID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "search unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": docs})
}

type semanticSearchRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit"`
}

func (h *KnowledgeHandler) SemanticSearch(c *gin.Context) {
	tenant, ok := tenantFrom(c)
	if !ok {
		return
	}
	var req semanticSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	results, err := h.retrieval.SemanticSearch(c.Request.Context(), tenant, req.Query, req.Limit)
	if err != nil {
		h.log.Error("semantic search failed", "tenant_id", tenant.TenantID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "search unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *KnowledgeHandler) ShortestPath(c *gin.Context) {
	tenant, ok := tenantFrom(c)
	if !ok {
		return
	}
	from := strings.TrimSpace(c.Query("from"))
	to := strings.TrimSpace(c.Query("to"))
	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to are required"})
		return
	}
	path := h.retrieval.ShortestPath(c.Request.Context(), tenant, from, to)
	if path == nil {
		c.JSON(http.StatusOK, gin.H{"path": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

func (h *KnowledgeHandler) RelatedConcepts(c *gin.Context) {
	tenant, ok := tenantFrom(c)
	if !ok {
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	depth, _ := strconv.Atoi(c.DefaultQuery("depth", "2"))
	concepts := h.retrieval.CollectRelated(c.Request.Context(), tenant, name, depth)
	c.JSON(http.StatusOK, gin.H{"concepts": concepts})
}

func (h *KnowledgeHandler) PrerequisiteChain(c *gin.Context) {
	tenant, ok := tenantFrom(c)
	if !ok {
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	chain := h.retrieval.PrerequisiteChain(c.Request.Context(), tenant, name)
	c.JSON(http.StatusOK, gin.H{"chain": chain})
}

func (h *KnowledgeHandler) ClearEmbeddingCache(c *gin.Context) {
	if _, ok := tenantFrom(c); !ok {
		return
	}
	if err := h.retrieval.ClearCache(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "cache unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
