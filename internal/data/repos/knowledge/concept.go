package knowledge

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/TalWayn72/EduSphere-sub001/internal/domain"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
)

// ConceptRepo reads/writes the relational concept table. Name lookups are
// case-insensitive; the store itself does not enforce name uniqueness.
type ConceptRepo interface {
	GetByName(ctx context.Context, tenantID, name string) (*domain.Concept, error)
	SearchText(ctx context.Context, tenantID, query string, limit int) ([]*domain.Concept, error)
	List(ctx context.Context, tenantID string, limit int) ([]*domain.Concept, error)
	Upsert(ctx context.Context, c *domain.Concept) error
	UpsertRelation(ctx context.Context, r *domain.ConceptRelation) error
}

type conceptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConceptRepo(db *gorm.DB, log *logger.Logger) ConceptRepo {
	return &conceptRepo{db: db, log: log.With("repo", "ConceptRepo")}
}

func (r *conceptRepo) GetByName(ctx context.Context, tenantID, name string) (*domain.Concept, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	var row domain.Concept
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND lower(name) = lower(?)", tenantID, name).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *conceptRepo) SearchText(ctx context.Context, tenantID, query string, limit int) ([]*domain.Concept, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	limit = clampLimit(limit)
	var rows []*domain.Concept
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("name ILIKE ? OR definition ILIKE ?", "%"+query+"%", "%"+query+"%").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *conceptRepo) List(ctx context.Context, tenantID string, limit int) ([]*domain.Concept, error) {
	limit = clampLimit(limit)
	var rows []*domain.Concept
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *conceptRepo) Upsert(ctx context.Context, c *domain.Concept) error {
	if c == nil {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "definition", "source_ids", "updated_at"}),
		}).
		Create(c).Error
}

func (r *conceptRepo) UpsertRelation(ctx context.Context, rel *domain.ConceptRelation) error {
	if rel == nil {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"edge_type", "strength", "description", "updated_at"}),
		}).
		Create(rel).Error
}
