package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/TalWayn72/EduSphere-sub001/internal/data/graph"
	"github.com/TalWayn72/EduSphere-sub001/internal/data/repos/knowledge"
	"github.com/TalWayn72/EduSphere-sub001/internal/domain"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
	"github.com/TalWayn72/EduSphere-sub001/internal/services"
)

type stubDocs struct{}

func (stubDocs) Upsert(context.Context, *domain.KnowledgeDocument, []float32) error { return nil }

func (stubDocs) SemanticCandidates(context.Context, string, []float32, int) ([]knowledge.ScoredDocument, error) {
	return nil, nil
}

func (stubDocs) KeywordCandidates(context.Context, string, string, int) ([]knowledge.ScoredDocument, error) {
	return nil, nil
}

func (stubDocs) SubstringCandidates(context.Context, string, string, int) ([]knowledge.ScoredDocument, error) {
	return nil, nil
}

func (stubDocs) ByConceptNames(context.Context, string, []string, int) ([]knowledge.ScoredDocument, error) {
	return nil, nil
}

type stubConcepts struct {
	byName    map[string]*domain.Concept
	relations []*domain.ConceptRelation
}

func (s *stubConcepts) GetByName(_ context.Context, _ string, name string) (*domain.Concept, error) {
	return s.byName[name], nil
}

func (s *stubConcepts) SearchText(context.Context, string, string, int) ([]*domain.Concept, error) {
	return nil, nil
}

func (s *stubConcepts) List(context.Context, string, int) ([]*domain.Concept, error) {
	return nil, nil
}

func (s *stubConcepts) Upsert(context.Context, *domain.Concept) error { return nil }

func (s *stubConcepts) UpsertRelation(_ context.Context, r *domain.ConceptRelation) error {
	s.relations = append(s.relations, r)
	return nil
}

func newRelationRouter(concepts *stubConcepts) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()
	cache := services.NewEmbeddingCacheService(log, nil, nil)
	syncer := graph.NewSyncer(nil, log)
	svc := services.NewKnowledgeIngestionService(log, stubDocs{}, concepts, cache, syncer)
	r := gin.New()
	r.POST("/relations", NewIngestionHandler(log, svc).RelateConcepts)
	return r
}

func postRelation(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/relations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "tenant-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRelateConceptsExplicitZeroStrength(t *testing.T) {
	concepts := &stubConcepts{byName: map[string]*domain.Concept{
		"Algebra":  {ID: uuid.New(), TenantID: "tenant-1", Name: "Algebra"},
		"Calculus": {ID: uuid.New(), TenantID: "tenant-1", Name: "Calculus"},
	}}
	r := newRelationRouter(concepts)

	w := postRelation(t, r, `{"from":"Algebra","to":"Calculus","edge_type":"RELATED_TO","strength":0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if len(concepts.relations) != 1 {
		t.Fatalf("relations stored = %d", len(concepts.relations))
	}
	if concepts.relations[0].Strength != 0 {
		t.Fatalf("explicit strength 0 must be kept, got %v", concepts.relations[0].Strength)
	}
}

func TestRelateConceptsDefaultStrength(t *testing.T) {
	concepts := &stubConcepts{byName: map[string]*domain.Concept{
		"Algebra":  {ID: uuid.New(), TenantID: "tenant-1", Name: "Algebra"},
		"Calculus": {ID: uuid.New(), TenantID: "tenant-1", Name: "Calculus"},
	}}
	r := newRelationRouter(concepts)

	w := postRelation(t, r, `{"from":"Algebra","to":"Calculus"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if concepts.relations[0].Strength != 1.0 {
		t.Fatalf("absent strength must default to 1.0, got %v", concepts.relations[0].Strength)
	}
}
