package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/TalWayn72/EduSphere-sub001/internal/domain"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/agedb"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
)

const (
	maxPathHops  = 10
	maxChainHops = 5
	minDepth     = 1
	maxDepth     = 5
)

// CypherExecutor is the slice of agedb.Client the path finder needs.
type CypherExecutor interface {
	ExecCypher(ctx context.Context, tenantID, query string, params map[string]any, columns []string) ([][]agedb.Value, error)
}

// PathFinder answers path-shaped questions over the tenant's concept graph.
// Backend failures degrade to nil/empty results; this type never surfaces
// a backend error to its callers.
type PathFinder struct {
	exec CypherExecutor
	log  *logger.Logger
}

func NewPathFinder(exec CypherExecutor, log *logger.Logger) *PathFinder {
	return &PathFinder{exec: exec, log: log.With("service", "PathFinder")}
}

// ShortestPath finds the shortest route between two named concepts,
// matching names case-insensitively and walking RELATED_TO and
// PREREQUISITE_OF edges in either direction, bounded to 10 hops. AGE has
// no shortestPath() function, so this enumerates the bounded paths and
// keeps the shortest by length. Returns nil when either name does not
// resolve or no path exists.
func (f *PathFinder) ShortestPath(ctx context.Context, tenant domain.TenantContext, fromName, toName string) *domain.PathResult {
	if f == nil || f.exec == nil {
		return nil
	}
	fromName = strings.TrimSpace(fromName)
	toName = strings.TrimSpace(toName)
	if fromName == "" || toName == "" {
		return nil
	}

	query := fmt.Sprintf(`
MATCH (a:Concept), (b:Concept)
WHERE toLower(a.name) = toLower($from) AND a.tenant_id = $tenant_id
  AND toLower(b.name) = toLower($to) AND b.tenant_id = $tenant_id
MATCH p = (a)-[:RELATED_TO|PREREQUISITE_OF*1..%d]-(b)
RETURN [n IN nodes(p) | n.id], [n IN nodes(p) | n.name], length(p)
ORDER BY length(p) ASC
LIMIT 1`, maxPathHops)

	rows, err := f.exec.ExecCypher(ctx, tenant.TenantID, query, map[string]any{
		"from":      fromName,
		"to":        toName,
		"tenant_id": tenant.TenantID,
	}, []string{"ids", "names", "steps"})
	if err != nil {
		f.log.Error("shortest path query failed", "tenant_id", tenant.TenantID, "error", err)
		return nil
	}
	if len(rows) == 0 || len(rows[0]) < 3 {
		return nil
	}

	concepts := zipSummaries(rows[0][0], rows[0][1])
	if len(concepts) == 0 {
		return nil
	}
	steps, ok := rows[0][2].AsInt()
	if !ok {
		steps = len(concepts) - 1
	}
	return &domain.PathResult{Concepts: concepts, Steps: steps}
}

// CollectRelated gathers the distinct RELATED_TO neighborhood of a named
// concept. Depth is clamped to [1,5]; result order is whatever the backend
// returns, callers must not depend on it.
func (f *PathFinder) CollectRelated(ctx context.Context, tenant domain.TenantContext, conceptName string, depth int) []domain.ConceptSummary {
	if f == nil || f.exec == nil {
		return nil
	}
	conceptName = strings.TrimSpace(conceptName)
	if conceptName == "" {
		return nil
	}
	depth = clampDepth(depth)

	// The variable-length bound cannot be a cypher parameter; depth is
	// clamped server-side data-free, so formatting it in is safe.
	query := fmt.Sprintf(`
MATCH (a:Concept)
WHERE toLower(a.name) = toLower($name) AND a.tenant_id = $tenant_id
MATCH (a)-[:RELATED_TO*1..%d]-(n:Concept)
WHERE n.tenant_id = $tenant_id AND n.id <> a.id
RETURN DISTINCT n.id, n.name`, depth)

	rows, err := f.exec.ExecCypher(ctx, tenant.TenantID, query, map[string]any{
		"name":      conceptName,
		"tenant_id": tenant.TenantID,
	}, []string{"id", "name"})
	if err != nil {
		f.log.Error("related-concept query failed", "tenant_id", tenant.TenantID, "error", err)
		return nil
	}

	out := make([]domain.ConceptSummary, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		out = append(out, domain.ConceptSummary{ID: row[0].AsString(), Name: row[1].AsString()})
	}
	return out
}

// PrerequisiteChain returns the single deepest PREREQUISITE_OF chain
// leading into the named concept, ordered root to target, at most 5 hops.
// Ties are broken arbitrarily by the backend. Empty when the concept has
// no prerequisites.
func (f *PathFinder) PrerequisiteChain(ctx context.Context, tenant domain.TenantContext, conceptName string) []domain.ConceptSummary {
	if f == nil || f.exec == nil {
		return nil
	}
	conceptName = strings.TrimSpace(conceptName)
	if conceptName == "" {
		return nil
	}

	query := fmt.Sprintf(`
MATCH p = (root:Concept)-[:PREREQUISITE_OF*1..%d]->(target:Concept)
WHERE toLower(target.name) = toLower($name) AND target.tenant_id = $tenant_id
  AND root.tenant_id = $tenant_id
RETURN [n IN nodes(p) | n.id], [n IN nodes(p) | n.name], length(p)
ORDER BY length(p) DESC
LIMIT 1`, maxChainHops)

	rows, err := f.exec.ExecCypher(ctx, tenant.TenantID, query, map[string]any{
		"name":      conceptName,
		"tenant_id": tenant.TenantID,
	}, []string{"ids", "names", "steps"})
	if err != nil {
		f.log.Error("prerequisite chain query failed", "tenant_id", tenant.TenantID, "error", err)
		return []domain.ConceptSummary{}
	}
	if len(rows) == 0 || len(rows[0]) < 2 {
		return []domain.ConceptSummary{}
	}
	return zipSummaries(rows[0][0], rows[0][1])
}

func clampDepth(depth int) int {
	if depth < minDepth {
		return minDepth
	}
	if depth > maxDepth {
		return maxDepth
	}
	return depth
}

func zipSummaries(ids, names agedb.Value) []domain.ConceptSummary {
	if ids.Kind != agedb.KindArray || names.Kind != agedb.KindArray {
		return nil
	}
	n := len(ids.Arr)
	if len(names.Arr) < n {
		n = len(names.Arr)
	}
	out := make([]domain.ConceptSummary, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.ConceptSummary{
			ID:   ids.Arr[i].AsString(),
			Name: names.Arr[i].AsString(),
		})
	}
	return out
}
