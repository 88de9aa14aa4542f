package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/TalWayn72/EduSphere-sub001/internal/data/repos/knowledge"
	"github.com/TalWayn72/EduSphere-sub001/internal/domain"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
)

const (
	defaultTopK           = 10
	defaultRerankTopK     = 20
	defaultSemanticWeight = 0.7
	defaultKeywordWeight  = 0.3

	maxTopK = 200
)

// SearchOptions tunes one hybrid search call; zero values take defaults.
type SearchOptions struct {
	TopK           int
	SemanticWeight float64
	KeywordWeight  float64
	RerankTopK     int
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.TopK <= 0 {
		o.TopK = defaultTopK
	}
	if o.TopK > maxTopK {
		o.TopK = maxTopK
	}
	if o.RerankTopK <= 0 {
		o.RerankTopK = defaultRerankTopK
	}
	if o.SemanticWeight == 0 && o.KeywordWeight == 0 {
		o.SemanticWeight = defaultSemanticWeight
		o.KeywordWeight = defaultKeywordWeight
	}
	return o
}

// QueryEmbedder is the slice of the embedding cache the search needs.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// RelatedCollector is the slice of the graph path finder used by the
// traversal-augmented mode.
type RelatedCollector interface {
	CollectRelated(ctx context.Context, tenant domain.TenantContext, conceptName string, depth int) []domain.ConceptSummary
}

// HybridSearchService fuses a vector-similarity channel and a keyword
// full-text channel over the tenant's corpus into one ranked list. Channel
// failures propagate; a half-failed search has no honest empty default.
type HybridSearchService struct {
	log      *logger.Logger
	docs     knowledge.DocumentRepo
	embedder QueryEmbedder
	related  RelatedCollector
}

func NewHybridSearchService(log *logger.Logger, docs knowledge.DocumentRepo, embedder QueryEmbedder, related RelatedCollector) *HybridSearchService {
	return &HybridSearchService{
		log:      log.With("service", "HybridSearch"),
		docs:     docs,
		embedder: embedder,
		related:  related,
	}
}

// Search embeds the query, runs both channels concurrently, deduplicates by
// document id and scores each unique document as
// semanticScore*semanticWeight + keywordScore*keywordWeight over the union
// of channels (an absent channel contributes zero, it never excludes the
// document). Results are sorted by combined score, truncated to TopK and
// given contiguous 1-indexed ranks.
func (s *HybridSearchService) Search(ctx context.Context, tenant domain.TenantContext, query string, opts SearchOptions) ([]*domain.RankedDocument, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*domain.RankedDocument{}, nil
	}
	opts = opts.withDefaults()

	qEmb, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: embed query: %w", err)
	}

	var (
		semantic []knowledge.ScoredDocument
		keyword  []knowledge.ScoredDocument
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.docs.SemanticCandidates(gctx, tenant.TenantID, qEmb, opts.RerankTopK)
		if err != nil {
			return err
		}
		semantic = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.docs.KeywordCandidates(gctx, tenant.TenantID, query, opts.RerankTopK)
		if err != nil {
			return err
		}
		keyword = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}

	fused := fuse(semantic, keyword, opts)
	sortAndRank(fused)
	if len(fused) > opts.TopK {
		fused = fused[:opts.TopK]
	}
	return fused, nil
}

// SearchWithGraphTraversal runs Search, then layers in documents from the
// graph neighborhood of the top results at half their originating combined
// score. Existing entries are never overwritten by graph-derived
// duplicates; the merged set is re-ranked contiguously.
func (s *HybridSearchService) SearchWithGraphTraversal(ctx context.Context, tenant domain.TenantContext, query string, opts SearchOptions) ([]*domain.RankedDocument, error) {
	opts = opts.withDefaults()
	base, err := s.Search(ctx, tenant, query, opts)
	if err != nil {
		return nil, err
	}
	if s.related == nil || len(base) == 0 {
		return base, nil
	}

	seen := make(map[string]bool, len(base))
	for _, doc := range base {
		seen[doc.ID] = true
	}

	merged := base
	// Seed the traversal from the best-ranked hits that are tagged with a
	// concept; the path finder degrades to empty on any graph trouble, so
	// augmentation failures silently leave the base ranking intact.
	seeds := base
	if len(seeds) > 3 {
		seeds = seeds[:3]
	}
	for _, doc := range seeds {
		conceptName := conceptNameOf(doc)
		if conceptName == "" {
			continue
		}
		neighbors := s.related.CollectRelated(ctx, tenant, conceptName, 1)
		if len(neighbors) == 0 {
			continue
		}
		names := make([]string, 0, len(neighbors))
		for _, n := range neighbors {
			names = append(names, n.Name)
		}
		rows, err := s.docs.ByConceptNames(ctx, tenant.TenantID, names, opts.RerankTopK)
		if err != nil {
			return nil, fmt.Errorf("hybrid search: graph augmentation: %w", err)
		}
		for _, row := range rows {
			id := row.ID.String()
			if seen[id] {
				continue
			}
			seen[id] = true
			merged = append(merged, &domain.RankedDocument{
				ID:            id,
				Content:       row.Content,
				Metadata:      decodeMetadata(row.Metadata),
				CombinedScore: doc.CombinedScore / 2,
			})
		}
	}

	sortAndRank(merged)
	return merged, nil
}

func fuse(semantic, keyword []knowledge.ScoredDocument, opts SearchOptions) []*domain.RankedDocument {
	byID := make(map[string]*domain.RankedDocument, len(semantic)+len(keyword))
	order := make([]*domain.RankedDocument, 0, len(semantic)+len(keyword))

	upsert := func(row knowledge.ScoredDocument) *domain.RankedDocument {
		id := row.ID.String()
		if doc, ok := byID[id]; ok {
			return doc
		}
		doc := &domain.RankedDocument{
			ID:       id,
			Content:  row.Content,
			Metadata: decodeMetadata(row.Metadata),
		}
		byID[id] = doc
		order = append(order, doc)
		return doc
	}

	for _, row := range semantic {
		upsert(row).SemanticScore = row.Score
	}
	for _, row := range keyword {
		upsert(row).KeywordScore = row.Score
	}
	for _, doc := range order {
		doc.CombinedScore = doc.SemanticScore*opts.SemanticWeight + doc.KeywordScore*opts.KeywordWeight
	}
	return order
}

func sortAndRank(docs []*domain.RankedDocument) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CombinedScore > docs[j].CombinedScore
	})
	for i, doc := range docs {
		doc.Rank = i + 1
	}
}

func conceptNameOf(doc *domain.RankedDocument) string {
	if doc == nil || doc.Metadata == nil {
		return ""
	}
	if name, ok := doc.Metadata["concept_name"].(string); ok {
		return strings.TrimSpace(name)
	}
	return ""
}

func decodeMetadata(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
