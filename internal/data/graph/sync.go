package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TalWayn72/EduSphere-sub001/internal/domain"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
)

// Syncer projects relational concepts and relations into the property
// graph so the traversal queries have something to walk.
type Syncer struct {
	exec CypherExecutor
	log  *logger.Logger
}

func NewSyncer(exec CypherExecutor, log *logger.Logger) *Syncer {
	return &Syncer{exec: exec, log: log.With("service", "GraphSyncer")}
}

// UpsertConcepts merges Concept vertices keyed by id.
func (s *Syncer) UpsertConcepts(ctx context.Context, tenant domain.TenantContext, concepts []*domain.Concept) error {
	if s == nil || s.exec == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, c := range concepts {
		if c == nil || c.TenantID != tenant.TenantID {
			continue
		}
		_, err := s.exec.ExecCypher(ctx, tenant.TenantID, `
MERGE (c:Concept {id: $id, tenant_id: $tenant_id})
SET c.name = $name,
    c.definition = $definition,
    c.synced_at = $synced_at
RETURN c.id`, map[string]any{
			"id":         c.ID.String(),
			"tenant_id":  c.TenantID,
			"name":       c.Name,
			"definition": c.Definition,
			"synced_at":  now,
		}, []string{"id"})
		if err != nil {
			return fmt.Errorf("graph sync: upsert concept %s: %w", c.ID, err)
		}
	}
	return nil
}

// UpsertRelations merges typed edges between existing Concept vertices.
// Strength outside [0,1] is clamped; a missing type defaults to RELATED_TO.
func (s *Syncer) UpsertRelations(ctx context.Context, tenant domain.TenantContext, relations []*domain.ConceptRelation) error {
	if s == nil || s.exec == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, r := range relations {
		if r == nil || r.TenantID != tenant.TenantID {
			continue
		}
		edgeType := sanitizeEdgeType(r.EdgeType)
		strength := r.Strength
		if strength < 0 {
			strength = 0
		}
		if strength > 1 {
			strength = 1
		}
		description := ""
		if r.Description != nil {
			description = *r.Description
		}
		// Edge labels cannot be parameterized in cypher; sanitizeEdgeType
		// restricts them to identifier characters first.
		query := fmt.Sprintf(`
MATCH (a:Concept {id: $from_id, tenant_id: $tenant_id})
MATCH (b:Concept {id: $to_id, tenant_id: $tenant_id})
MERGE (a)-[e:%s]->(b)
SET e.strength = $strength,
    e.description = $description,
    e.synced_at = $synced_at
RETURN e.strength`, edgeType)
		_, err := s.exec.ExecCypher(ctx, tenant.TenantID, query, map[string]any{
			"from_id":     r.FromConceptID.String(),
			"to_id":       r.ToConceptID.String(),
			"tenant_id":   r.TenantID,
			"strength":    strength,
			"description": description,
			"synced_at":   now,
		}, []string{"strength"})
		if err != nil {
			return fmt.Errorf("graph sync: upsert relation %s: %w", r.ID, err)
		}
	}
	return nil
}

func sanitizeEdgeType(t string) string {
	t = strings.ToUpper(strings.TrimSpace(t))
	if t == "" {
		return domain.EdgeRelatedTo
	}
	var b strings.Builder
	for _, r := range t {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return domain.EdgeRelatedTo
	}
	return b.String()
}
