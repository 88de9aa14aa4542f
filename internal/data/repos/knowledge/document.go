package knowledge

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/TalWayn72/EduSphere-sub001/internal/domain"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
)

const (
	minLimit = 1
	maxLimit = 200
)

// ScoredDocument is one channel candidate before fusion.
type ScoredDocument struct {
	ID       uuid.UUID
	Content  string
	Metadata datatypes.JSON
	Score    float64
}

// DocumentRepo is the relational corpus behind both retrieval channels.
// Unlike the graph path queries, repo errors propagate: a failed channel
// has no safe empty default that would not mislead the caller about
// relevance.
type DocumentRepo interface {
	Upsert(ctx context.Context, doc *domain.KnowledgeDocument, embedding []float32) error
	SemanticCandidates(ctx context.Context, tenantID string, embedding []float32, limit int) ([]ScoredDocument, error)
	KeywordCandidates(ctx context.Context, tenantID, query string, limit int) ([]ScoredDocument, error)
	SubstringCandidates(ctx context.Context, tenantID, query string, limit int) ([]ScoredDocument, error)
	ByConceptNames(ctx context.Context, tenantID string, names []string, limit int) ([]ScoredDocument, error)
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, log *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: log.With("repo", "DocumentRepo")}
}

func (r *documentRepo) Upsert(ctx context.Context, doc *domain.KnowledgeDocument, embedding []float32) error {
	if doc == nil {
		return fmt.Errorf("document repo: nil document")
	}
	if len(embedding) > 0 {
		doc.Embedding = VectorLiteral(embedding)
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "metadata", "embedding", "updated_at"}),
		}).
		Create(doc).Error
}

type scoredRow struct {
	ID       uuid.UUID      `gorm:"column:id"`
	Content  string         `gorm:"column:content"`
	Metadata datatypes.JSON `gorm:"column:metadata"`
	Score    float64        `gorm:"column:score"`
}

func (r *documentRepo) SemanticCandidates(ctx context.Context, tenantID string, embedding []float32, limit int) ([]ScoredDocument, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("document repo: empty query embedding")
	}
	limit = clampLimit(limit)
	vec := VectorLiteral(embedding)

	var rows []scoredRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, content, metadata,
		       1 - (embedding <=> ?::vector) AS score
		FROM knowledge_document
		WHERE tenant_id = ? AND embedding IS NOT NULL
		ORDER BY embedding <=> ?::vector
		LIMIT ?`, vec, tenantID, vec, limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("semantic channel: %w", err)
	}
	return toScored(rows), nil
}

func (r *documentRepo) KeywordCandidates(ctx context.Context, tenantID, query string, limit int) ([]ScoredDocument, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	limit = clampLimit(limit)

	var rows []scoredRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, content, metadata,
		       ts_rank(to_tsvector('english', content), plainto_tsquery('english', ?)) AS score
		FROM knowledge_document
		WHERE tenant_id = ?
			AND to_tsvector('english', content) @@ plainto_tsquery('english', ?)
		ORDER BY score DESC, created_at DESC
		LIMIT ?`, query, tenantID, query, limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("keyword channel: %w", err)
	}
	return toScored(rows), nil
}

// SubstringCandidates is the facade's ILIKE fallback when no embedding is
// available; Score is left at zero, the facade assigns its own.
func (r *documentRepo) SubstringCandidates(ctx context.Context, tenantID, query string, limit int) ([]ScoredDocument, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	limit = clampLimit(limit)

	var rows []scoredRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, content, metadata, 0 AS score
		FROM knowledge_document
		WHERE tenant_id = ? AND content ILIKE ?
		ORDER BY created_at DESC
		LIMIT ?`, tenantID, "%"+query+"%", limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("substring fallback: %w", err)
	}
	return toScored(rows), nil
}

// ByConceptNames fetches documents whose metadata tags them with one of the
// given concept names; used by the graph-traversal augmentation.
func (r *documentRepo) ByConceptNames(ctx context.Context, tenantID string, names []string, limit int) ([]ScoredDocument, error) {
	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			cleaned = append(cleaned, strings.ToLower(n))
		}
	}
	if len(cleaned) == 0 {
		return nil, nil
	}
	limit = clampLimit(limit)

	var rows []scoredRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, content, metadata, 0 AS score
		FROM knowledge_document
		WHERE tenant_id = ? AND lower(metadata->>'concept_name') IN ?
		LIMIT ?`, tenantID, cleaned, limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("documents by concept: %w", err)
	}
	return toScored(rows), nil
}

func toScored(rows []scoredRow) []ScoredDocument {
	out := make([]ScoredDocument, 0, len(rows))
	for _, row := range rows {
		if row.ID == uuid.Nil {
			continue
		}
		out = append(out, ScoredDocument{ID: row.ID, Content: row.Content, Metadata: row.Metadata, Score: row.Score})
	}
	return out
}

func clampLimit(limit int) int {
	if limit < minLimit {
		return minLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// VectorLiteral renders an embedding in pgvector's text input format.
func VectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
