package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/TalWayn72/EduSphere-sub001/internal/data/graph"
	"github.com/TalWayn72/EduSphere-sub001/internal/data/repos/knowledge"
	"github.com/TalWayn72/EduSphere-sub001/internal/domain"
	pkgerrors "github.com/TalWayn72/EduSphere-sub001/internal/pkg/errors"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
)

// KnowledgeIngestionService writes the corpus the retrieval side reads:
// documents with embeddings, concepts, and the graph projection of their
// relations. The relational store is authoritative; graph sync failures
// are logged and retried on the next write, never surfaced as ingest
// failures.
type KnowledgeIngestionService struct {
	log      *logger.Logger
	docs     knowledge.DocumentRepo
	concepts knowledge.ConceptRepo
	cache    *EmbeddingCacheService
	syncer   *graph.Syncer
}

func NewKnowledgeIngestionService(
	log *logger.Logger,
	docs knowledge.DocumentRepo,
	concepts knowledge.ConceptRepo,
	cache *EmbeddingCacheService,
	syncer *graph.Syncer,
) *KnowledgeIngestionService {
	return &KnowledgeIngestionService{
		log:      log.With("service", "KnowledgeIngestion"),
		docs:     docs,
		concepts: concepts,
		cache:    cache,
		syncer:   syncer,
	}
}

// IngestDocument stores one corpus document. With a working embedding
// provider the content is embedded on the way in; without one the document
// still lands and stays reachable through the keyword channels.
func (s *KnowledgeIngestionService) IngestDocument(ctx context.Context, tenant domain.TenantContext, content string, metadata map[string]any) (*domain.KnowledgeDocument, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("ingest document: %w: empty content", pkgerrors.ErrInvalidArgument)
	}

	doc := &domain.KnowledgeDocument{
		ID:       uuid.New(),
		TenantID: tenant.TenantID,
		Content:  content,
	}
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("ingest document: encode metadata: %w", err)
		}
		doc.Metadata = datatypes.JSON(raw)
	}

	var embedding []float32
	if s.cache.HasProvider() {
		vecs, err := s.cache.EmbedDocuments(ctx, []string{content})
		if err != nil {
			s.log.Warn("document embedding failed, storing without vector", "tenant_id", tenant.TenantID, "error", err)
		} else if len(vecs) == 1 {
			embedding = vecs[0]
		}
	}

	if err := s.docs.Upsert(ctx, doc, embedding); err != nil {
		return nil, fmt.Errorf("ingest document: %w", err)
	}
	return doc, nil
}

// UpsertConcept creates or updates a concept by case-insensitive name and
// projects it into the property graph.
func (s *KnowledgeIngestionService) UpsertConcept(ctx context.Context, tenant domain.TenantContext, name, definition string) (*domain.Concept, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("upsert concept: %w: empty name", pkgerrors.ErrInvalidArgument)
	}

	concept, err := s.concepts.GetByName(ctx, tenant.TenantID, name)
	if err != nil {
		return nil, fmt.Errorf("upsert concept: %w", err)
	}
	if concept == nil {
		concept = &domain.Concept{ID: uuid.New(), TenantID: tenant.TenantID}
	}
	concept.Name = name
	concept.Definition = definition

	if err := s.concepts.Upsert(ctx, concept); err != nil {
		return nil, fmt.Errorf("upsert concept: %w", err)
	}
	if err := s.syncer.UpsertConcepts(ctx, tenant, []*domain.Concept{concept}); err != nil {
		s.log.Warn("graph projection failed for concept", "tenant_id", tenant.TenantID, "concept", concept.Name, "error", err)
	}
	return concept, nil
}

// RelateConcepts records a typed edge between two named concepts. Both
// names must resolve; the relation is stored relationally and projected
// onto the graph.
func (s *KnowledgeIngestionService) RelateConcepts(ctx context.Context, tenant domain.TenantContext, fromName, toName, edgeType string, strength float64, description *string) (*domain.ConceptRelation, error) {
	from, err := s.concepts.GetByName(ctx, tenant.TenantID, fromName)
	if err != nil {
		return nil, fmt.Errorf("relate concepts: %w", err)
	}
	to, err := s.concepts.GetByName(ctx, tenant.TenantID, toName)
	if err != nil {
		return nil, fmt.Errorf("relate concepts: %w", err)
	}
	if from == nil || to == nil {
		return nil, fmt.Errorf("relate concepts: %w", pkgerrors.ErrNotFound)
	}

	rel := &domain.ConceptRelation{
		ID:            uuid.New(),
		TenantID:      tenant.TenantID,
		FromConceptID: from.ID,
		ToConceptID:   to.ID,
		EdgeType:      edgeType,
		Strength:      strength,
		Description:   description,
	}
	if err := s.concepts.UpsertRelation(ctx, rel); err != nil {
		return nil, fmt.Errorf("relate concepts: %w", err)
	}
	if err := s.syncer.UpsertRelations(ctx, tenant, []*domain.ConceptRelation{rel}); err != nil {
		s.log.Warn("graph projection failed for relation", "tenant_id", tenant.TenantID, "error", err)
	}
	return rel, nil
}

func (s *KnowledgeIngestionService) ListConcepts(ctx context.Context, tenant domain.TenantContext, limit int) ([]*domain.Concept, error) {
	return s.concepts.List(ctx, tenant.TenantID, limit)
}
