package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/TalWayn72/EduSphere-sub001/internal/data/repos/knowledge"
	"github.com/TalWayn72/EduSphere-sub001/internal/domain"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
)

type fakeConcepts struct {
	rows      []*domain.Concept
	err       error
	lastLimit int
}

func (f *fakeConcepts) GetByName(context.Context, string, string) (*domain.Concept, error) {
	return nil, nil
}

func (f *fakeConcepts) SearchText(_ context.Context, _ string, _ string, limit int) ([]*domain.Concept, error) {
	f.lastLimit = limit
	return f.rows, f.err
}

func (f *fakeConcepts) List(context.Context, string, int) ([]*domain.Concept, error) {
	return nil, nil
}

func (f *fakeConcepts) Upsert(context.Context, *domain.Concept) error { return nil }

func (f *fakeConcepts) UpsertRelation(context.Context, *domain.ConceptRelation) error { return nil }

func newRetrieval(docs knowledge.DocumentRepo, concepts knowledge.ConceptRepo, provider EmbeddingProvider) *KnowledgeRetrievalService {
	log := logger.NewNop()
	cache := NewEmbeddingCacheService(log, nil, provider)
	return NewKnowledgeRetrievalService(log, docs, concepts, cache, nil, nil)
}

func TestSemanticSearchVectorPath(t *testing.T) {
	docID := uuid.New()
	docs := &fakeDocs{semantic: []knowledge.ScoredDocument{scored(docID, "algebra notes", 0.91)}}
	svc := newRetrieval(docs, &fakeConcepts{}, &countingProvider{dim: 3})

	out, err := svc.SemanticSearch(context.Background(), tenantCtx(), "algebra", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("results = %d", len(out))
	}
	if out[0].Source != "vector" || !almostEqual(out[0].Similarity, 0.91) {
		t.Fatalf("want vector hit with its channel score, got %+v", out[0])
	}
}

func TestSemanticSearchFallbackWithoutProvider(t *testing.T) {
	docs := &fakeDocs{substring: []knowledge.ScoredDocument{
		scored(uuid.New(), "mentions algebra somewhere", 0),
		scored(uuid.New(), "algebra again", 0),
	}}
	svc := newRetrieval(docs, &fakeConcepts{}, nil)

	out, err := svc.SemanticSearch(context.Background(), tenantCtx(), "algebra", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("results = %d", len(out))
	}
	for _, r := range out {
		if r.Source != "keyword_fallback" {
			t.Fatalf("source = %q", r.Source)
		}
		if !almostEqual(r.Similarity, 0.75) {
			t.Fatalf("fallback similarity = %v, want fixed 0.75", r.Similarity)
		}
	}
}

func TestSemanticSearchFallbackOnProviderError(t *testing.T) {
	docs := &fakeDocs{substring: []knowledge.ScoredDocument{scored(uuid.New(), "algebra", 0)}}
	svc := newRetrieval(docs, &fakeConcepts{}, &countingProvider{err: errors.New("provider down")})

	out, err := svc.SemanticSearch(context.Background(), tenantCtx(), "algebra", 10)
	if err != nil {
		t.Fatalf("a failing provider must degrade, not error: %v", err)
	}
	if len(out) != 1 || out[0].Source != "keyword_fallback" {
		t.Fatalf("expected fallback hit, got %+v", out)
	}
}

func TestSemanticSearchConceptBlendLimit(t *testing.T) {
	concepts := &fakeConcepts{}
	svc := newRetrieval(&fakeDocs{}, concepts, nil)

	if _, err := svc.SemanticSearch(context.Background(), tenantCtx(), "algebra", 8); err != nil {
		t.Fatalf("search: %v", err)
	}
	if concepts.lastLimit != 2 {
		t.Fatalf("concept limit = %d, want limit/4", concepts.lastLimit)
	}

	if _, err := svc.SemanticSearch(context.Background(), tenantCtx(), "algebra", 2); err != nil {
		t.Fatalf("search: %v", err)
	}
	if concepts.lastLimit != 1 {
		t.Fatalf("concept limit = %d, want floor of 1", concepts.lastLimit)
	}
}

func TestSemanticSearchConceptErrorDoesNotSinkResults(t *testing.T) {
	docs := &fakeDocs{substring: []knowledge.ScoredDocument{scored(uuid.New(), "algebra", 0)}}
	concepts := &fakeConcepts{err: errors.New("concept table gone")}
	svc := newRetrieval(docs, concepts, nil)

	out, err := svc.SemanticSearch(context.Background(), tenantCtx(), "algebra", 10)
	if err != nil {
		t.Fatalf("concept failure must not fail the search: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("document hits lost: %d", len(out))
	}
}

func TestSemanticSearchSortsAndTruncates(t *testing.T) {
	docs := &fakeDocs{substring: []knowledge.ScoredDocument{
		scored(uuid.New(), "hit one", 0),
		scored(uuid.New(), "hit two", 0),
	}}
	concepts := &fakeConcepts{rows: []*domain.Concept{
		{ID: uuid.New(), Name: "Algebra", Definition: "symbols and rules"},
	}}
	svc := newRetrieval(docs, concepts, nil)

	out, err := svc.SemanticSearch(context.Background(), tenantCtx(), "algebra", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("truncation failed: %d", len(out))
	}
	// Exact concept name match scores 1.0, above the fixed 0.75 fallback.
	if out[0].Source != "concept" || !almostEqual(out[0].Similarity, 1.0) {
		t.Fatalf("exact concept match must rank first, got %+v", out[0])
	}
	if out[1].Similarity > out[0].Similarity {
		t.Fatal("results not sorted by similarity")
	}
}

func TestSemanticSearchEmptyQuery(t *testing.T) {
	svc := newRetrieval(&fakeDocs{}, &fakeConcepts{}, nil)
	out, err := svc.SemanticSearch(context.Background(), tenantCtx(), "  ", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("blank query must return empty, got %d", len(out))
	}
}

func TestTextSimilarity(t *testing.T) {
	cases := []struct {
		name       string
		query      string
		concept    string
		definition string
		want       float64
	}{
		{"exact match", "Algebra", "algebra", "anything", 1.0},
		{"substring", "algebra", "Linear Algebra", "anything", 0.85},
		{"half words", "vector spaces", "Matrices", "a vector has direction", 0.5 + 0.35*0.5},
		{"all words", "vector direction", "Matrices", "a vector has direction", 0.85},
		{"no words", "quantum chromodynamics", "Matrices", "rows and columns", 0.5},
		{"empty query", "", "Matrices", "rows and columns", 0},
	}
	for _, tc := range cases {
		got := textSimilarity(tc.query, tc.concept, tc.definition)
		if !almostEqual(got, tc.want) {
			t.Fatalf("%s: textSimilarity = %v, want %v", tc.name, got, tc.want)
		}
	}
}
