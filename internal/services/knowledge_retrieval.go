package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/TalWayn72/EduSphere-sub001/internal/data/graph"
	"github.com/TalWayn72/EduSphere-sub001/internal/data/repos/knowledge"
	"github.com/TalWayn72/EduSphere-sub001/internal/domain"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
)

// Fallback scoring constants. These are deliberate fixed values, not
// computed relevance; callers can tell fallback hits apart by Source.
const (
	fallbackMatchSimilarity = 0.75
	substringSimilarity     = 0.85
	wordMatchBase           = 0.5
	wordMatchSpan           = 0.35
)

// KnowledgeRetrievalService is the single entry point callers use. It owns
// the fallback decision: the lower-level components propagate provider
// failures unchanged, and only this facade substitutes the keyword path.
type KnowledgeRetrievalService struct {
	log      *logger.Logger
	docs     knowledge.DocumentRepo
	concepts knowledge.ConceptRepo
	cache    *EmbeddingCacheService
	hybrid   *HybridSearchService
	finder   *graph.PathFinder
}

func NewKnowledgeRetrievalService(
	log *logger.Logger,
	docs knowledge.DocumentRepo,
	concepts knowledge.ConceptRepo,
	cache *EmbeddingCacheService,
	hybrid *HybridSearchService,
	finder *graph.PathFinder,
) *KnowledgeRetrievalService {
	return &KnowledgeRetrievalService{
		log:      log.With("service", "KnowledgeRetrieval"),
		docs:     docs,
		concepts: concepts,
		cache:    cache,
		hybrid:   hybrid,
		finder:   finder,
	}
}

// SemanticSearch returns documents similar to the query. With a working
// embedding provider it uses the vector channel; when the provider is
// absent or fails it degrades to an ILIKE substring match where every hit
// carries a fixed similarity of 0.75. A lightweight concept name/definition
// match is always blended in at a quarter of the requested limit. Output is
// similarity-sorted and truncated to limit; no rank field is assigned.
func (s *KnowledgeRetrievalService) SemanticSearch(ctx context.Context, tenant domain.TenantContext, query string, limit int) ([]*domain.SimilarityResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*domain.SimilarityResult{}, nil
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}

	results, err := s.vectorOrFallback(ctx, tenant, query, limit)
	if err != nil {
		return nil, err
	}

	conceptLimit := limit / 4
	if conceptLimit < 1 {
		conceptLimit = 1
	}
	conceptHits, err := s.conceptMatches(ctx, tenant, query, conceptLimit)
	if err != nil {
		// Concept blending is best-effort seasoning on top of the primary
		// channel; a failure here must not sink usable document hits.
		s.log.Warn("concept text match failed", "tenant_id", tenant.TenantID, "error", err)
	} else {
		results = append(results, conceptHits...)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *KnowledgeRetrievalService) vectorOrFallback(ctx context.Context, tenant domain.TenantContext, query string, limit int) ([]*domain.SimilarityResult, error) {
	if s.cache.HasProvider() {
		qEmb, err := s.cache.EmbedQuery(ctx, query)
		if err == nil {
			rows, err := s.docs.SemanticCandidates(ctx, tenant.TenantID, qEmb, limit)
			if err != nil {
				return nil, fmt.Errorf("semantic search: %w", err)
			}
			out := make([]*domain.SimilarityResult, 0, len(rows))
			for _, row := range rows {
				out = append(out, &domain.SimilarityResult{
					ID:         row.ID.String(),
					Content:    row.Content,
					Similarity: row.Score,
					Source:     "vector",
				})
			}
			return out, nil
		}
		s.log.Warn("embedding unavailable, using keyword fallback", "tenant_id", tenant.TenantID, "error", err)
	}

	rows, err := s.docs.SubstringCandidates(ctx, tenant.TenantID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("semantic search fallback: %w", err)
	}
	out := make([]*domain.SimilarityResult, 0, len(rows))
	for _, row := range rows {
		out = append(out, &domain.SimilarityResult{
			ID:         row.ID.String(),
			Content:    row.Content,
			Similarity: fallbackMatchSimilarity,
			Source:     "keyword_fallback",
		})
	}
	return out, nil
}

func (s *KnowledgeRetrievalService) conceptMatches(ctx context.Context, tenant domain.TenantContext, query string, limit int) ([]*domain.SimilarityResult, error) {
	rows, err := s.concepts.SearchText(ctx, tenant.TenantID, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.SimilarityResult, 0, len(rows))
	for _, c := range rows {
		if c == nil {
			continue
		}
		out = append(out, &domain.SimilarityResult{
			ID:         c.ID.String(),
			Content:    c.Name + ": " + c.Definition,
			Similarity: textSimilarity(query, c.Name, c.Definition),
			Source:     "concept",
		})
	}
	return out, nil
}

// textSimilarity is the deterministic (non-embedding) heuristic: exact name
// match 1.0, substring containment 0.85, otherwise 0.5 plus 0.35 scaled by
// the fraction of query words found in the name or definition.
func textSimilarity(query, name, definition string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	n := strings.ToLower(strings.TrimSpace(name))
	if q == "" || n == "" {
		return 0
	}
	if q == n {
		return 1.0
	}
	if strings.Contains(n, q) || strings.Contains(q, n) {
		return substringSimilarity
	}

	haystack := n + " " + strings.ToLower(definition)
	words := strings.Fields(q)
	if len(words) == 0 {
		return wordMatchBase
	}
	matched := 0
	for _, w := range words {
		if strings.Contains(haystack, w) {
			matched++
		}
	}
	return wordMatchBase + wordMatchSpan*(float64(matched)/float64(len(words)))
}

// ---- graph passthrough ----

func (s *KnowledgeRetrievalService) ShortestPath(ctx context.Context, tenant domain.TenantContext, fromName, toName string) *domain.PathResult {
	return s.finder.ShortestPath(ctx, tenant, fromName, toName)
}

func (s *KnowledgeRetrievalService) CollectRelated(ctx context.Context, tenant domain.TenantContext, conceptName string, depth int) []domain.ConceptSummary {
	return s.finder.CollectRelated(ctx, tenant, conceptName, depth)
}

func (s *KnowledgeRetrievalService) PrerequisiteChain(ctx context.Context, tenant domain.TenantContext, conceptName string) []domain.ConceptSummary {
	return s.finder.PrerequisiteChain(ctx, tenant, conceptName)
}

// ---- hybrid + cache passthrough ----

func (s *KnowledgeRetrievalService) Search(ctx context.Context, tenant domain.TenantContext, query string, opts SearchOptions) ([]*domain.RankedDocument, error) {
	return s.hybrid.Search(ctx, tenant, query, opts)
}

func (s *KnowledgeRetrievalService) SearchWithGraphTraversal(ctx context.Context, tenant domain.TenantContext, query string, opts SearchOptions) ([]*domain.RankedDocument, error) {
	return s.hybrid.SearchWithGraphTraversal(ctx, tenant, query, opts)
}

func (s *KnowledgeRetrievalService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.cache.EmbedQuery(ctx, text)
}

func (s *KnowledgeRetrievalService) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return s.cache.EmbedDocuments(ctx, texts)
}

func (s *KnowledgeRetrievalService) ClearCache(ctx context.Context) error {
	return s.cache.ClearCache(ctx)
}

func (s *KnowledgeRetrievalService) HasProvider() bool {
	return s.cache.HasProvider()
}
