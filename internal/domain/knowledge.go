package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TenantContext is resolved by the caller (API gateway / auth middleware)
// and passed to every retrieval operation. This core never resolves
// identity itself.
type TenantContext struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
}

// Concept is the canonical vertex type of the knowledge graph. Name
// uniqueness is enforced case-insensitively at the application layer, so
// lookups by name must normalize case.
type Concept struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID   string         `gorm:"column:tenant_id;not null;index:idx_concept_tenant" json:"tenant_id"`
	Name       string         `gorm:"column:name;not null;index:idx_concept_tenant_name" json:"name"`
	Definition string         `gorm:"column:definition;type:text" json:"definition,omitempty"`
	SourceIDs  datatypes.JSON `gorm:"column:source_ids;type:jsonb" json:"source_ids,omitempty"` // []string
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Concept) TableName() string { return "concept" }

// Relationship edge types understood by the traversal queries. Callers may
// supply further types; these two carry traversal semantics (RELATED_TO is
// walked in either direction, PREREQUISITE_OF only prerequisite->target).
const (
	EdgeRelatedTo      = "RELATED_TO"
	EdgePrerequisiteOf = "PREREQUISITE_OF"
)

// ConceptRelation is the relational mirror of a graph edge; the graph sync
// projects these into the property graph.
type ConceptRelation struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID      string         `gorm:"column:tenant_id;not null;index" json:"tenant_id"`
	FromConceptID uuid.UUID      `gorm:"type:uuid;column:from_concept_id;not null;index" json:"from_concept_id"`
	ToConceptID   uuid.UUID      `gorm:"type:uuid;column:to_concept_id;not null;index" json:"to_concept_id"`
	EdgeType      string         `gorm:"column:edge_type;not null" json:"edge_type"`
	Strength      float64        `gorm:"column:strength;not null;default:1.0" json:"strength"`
	Description   *string        `gorm:"column:description;type:text" json:"description,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ConceptRelation) TableName() string { return "concept_relation" }

// KnowledgeDocument is one row of the retrieval corpus. Embedding is a
// pgvector column; the tsvector used by the keyword channel is computed in
// SQL from Content.
type KnowledgeDocument struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID  string         `gorm:"column:tenant_id;not null;index:idx_kdoc_tenant" json:"tenant_id"`
	Content   string         `gorm:"column:content;type:text;not null" json:"content"`
	Metadata  datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	Embedding string         `gorm:"column:embedding;type:vector(1536)" json:"-"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (KnowledgeDocument) TableName() string { return "knowledge_document" }

// ConceptSummary is what traversal queries return per node.
type ConceptSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// PathResult is an ordered path through the graph. Steps is the edge count,
// always len(Concepts)-1 for a non-empty path.
type PathResult struct {
	Concepts []ConceptSummary `json:"concepts"`
	Steps    int              `json:"steps"`
}

// RankedDocument is the fused output of the hybrid search. Rank is assigned
// after the final sort, 1-indexed and contiguous.
type RankedDocument struct {
	ID            string         `json:"id"`
	Content       string         `json:"content"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	SemanticScore float64        `json:"semantic_score"`
	KeywordScore  float64        `json:"keyword_score"`
	CombinedScore float64        `json:"combined_score"`
	Rank          int            `json:"rank"`
}

// SimilarityResult is the facade's semantic-search output. Unlike
// RankedDocument it carries no rank; the facade sorts by Similarity only.
type SimilarityResult struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
	Source     string  `json:"source"` // "vector" | "keyword_fallback" | "concept"
}
