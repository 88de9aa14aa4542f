package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/TalWayn72/EduSphere-sub001/internal/pkg/errors"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
	"github.com/TalWayn72/EduSphere-sub001/internal/services"
)

type IngestionHandler struct {
	log       *logger.Logger
	ingestion *services.KnowledgeIngestionService
}

func NewIngestionHandler(log *logger.Logger, ingestion *services.KnowledgeIngestionService) *IngestionHandler {
	return &IngestionHandler{log: log.With("handler", "Ingestion"), ingestion: ingestion}
}

type ingestDocumentRequest struct {
	Content  string         `json:"content" binding:"required"`
	Metadata map[string]any `json:"metadata"`
}

func (h *IngestionHandler) IngestDocument(c *gin.Context) {
	tenant, ok := tenantFrom(c)
	if !ok {
		return
	}
	var req ingestDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := h.ingestion.IngestDocument(c.Request.Context(), tenant, req.Content, req.Metadata)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrInvalidArgument) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error("document ingest failed", "tenant_id", tenant.TenantID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "ingest unavailable"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"document": doc})
}

type upsertConceptRequest struct {
	Name       string `json:"name" binding:"required"`
	Definition string `json:"definition"`
}

func (h *IngestionHandler) UpsertConcept(c *gin.Context) {
	tenant, ok := tenantFrom(c)
	if !ok {
		return
	}
	var req upsertConceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	concept, err := h.ingestion.UpsertConcept(c.Request.Context(), tenant, req.Name, req.Definition)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrInvalidArgument) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error("concept upsert failed", "tenant_id", tenant.TenantID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "ingest unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"concept": concept})
}

type relateConceptsRequest struct {
	From     string `json:"from" binding:"required"`
	To       string `json:"to" binding:"required"`
	EdgeType string `json:"edge_type"`
	// Pointer so an explicit 0 is distinguishable from absent.
	Strength    *float64 `json:"strength"`
	Description *string  `json:"description"`
}

func (h *IngestionHandler) RelateConcepts(c *gin.Context) {
	tenant, ok := tenantFrom(c)
	if !ok {
		return
	}
	var req relateConceptsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	strength := 1.0
	if req.Strength != nil {
		strength = *req.Strength
	}
	rel, err := h.ingestion.RelateConcepts(c.Request.Context(), tenant, req.From, req.To, req.EdgeType, strength, req.Description)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "concept not found"})
			return
		}
		h.log.Error("concept relation failed", "tenant_id", tenant.TenantID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "ingest unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"relation": rel})
}

func (h *IngestionHandler) ListConcepts(c *gin.Context) {
	tenant, ok := tenantFrom(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	concepts, err := h.ingestion.ListConcepts(c.Request.Context(), tenant, limit)
	if err != nil {
		h.log.Error("concept list failed", "tenant_id", tenant.TenantID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "list unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"concepts": concepts})
}
