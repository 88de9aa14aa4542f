package agedb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TalWayn72/EduSphere-sub001/internal/platform/envutil"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
)

// bindingParamSignature is the exact error AGE raises when the server
// version cannot accept a prepared-statement parameter as the cypher()
// third argument. Only this signature triggers the literal-substitution
// retry; every other error is returned to the caller untouched.
const bindingParamSignature = "third argument of cypher function must be a parameter"

type bindingState int

const (
	bindingUnknown bindingState = iota
	bindingSupported
	bindingUnsupported
)

// querier is the slice of a database connection the client needs. The
// production implementation wraps an acquired pgxpool connection.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) ([][]any, error)
}

// connSource hands out dedicated connections. The release func must be
// called exactly once per acquire.
type connSource interface {
	Acquire(ctx context.Context) (querier, func(), error)
	Close()
}

// Client executes cypher queries against an Apache AGE graph hosted in
// Postgres. Every call acquires a dedicated connection, loads the AGE
// extension, sets the catalog search path and the tenant context variable,
// then runs the traversal on that same connection.
type Client struct {
	src     connSource
	Graph   string
	log     *logger.Logger
	timeout time.Duration

	mu      sync.Mutex
	binding bindingState
}

func NewFromEnv(log *logger.Logger) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("agedb: logger required")
	}

	dsn := envutil.String("GRAPH_DATABASE_URL", envutil.String("DATABASE_URL", ""))
	if dsn == "" {
		return nil, nil
	}
	graph := envutil.String("AGE_GRAPH_NAME", "knowledge_graph")
	timeoutSec := envutil.Int("QUERY_TIMEOUT_SECONDS", 10)

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("agedb: parse config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("agedb: init pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("agedb: ping: %w", err)
	}

	return &Client{
		src:     &poolSource{pool: pool},
		Graph:   graph,
		log:     log.With("client", "AgeDB"),
		timeout: time.Duration(timeoutSec) * time.Second,
	}, nil
}

// newWithSource exists for tests.
func newWithSource(src connSource, graph string, log *logger.Logger, timeout time.Duration) *Client {
	return &Client{src: src, Graph: graph, log: log, timeout: timeout}
}

func (c *Client) Close() {
	if c == nil || c.src == nil {
		return
	}
	c.src.Close()
}

// ExecCypher runs one cypher query scoped to tenantID and returns the
// parsed result rows. columns names the agtype output columns of the
// cypher() call. Caller-supplied values must arrive through params, never
// spliced into the query text; the literal-substitution fallback is the
// single exception and re-escapes every value itself.
func (c *Client) ExecCypher(ctx context.Context, tenantID, query string, params map[string]any, columns []string) ([][]Value, error) {
	if c == nil || c.src == nil {
		return nil, fmt.Errorf("agedb: client not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	conn, release, err := c.src.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("agedb: acquire: %w", err)
	}
	defer func() {
		// Scrub the tenant GUC before the connection goes back to the
		// pool; ctx may already be expired here.
		resetCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := conn.Exec(resetCtx, `SELECT set_config('app.tenant_id', '', false)`); err != nil {
			c.log.Warn("tenant context reset failed", "error", err)
		}
		cancel()
		release()
	}()

	// Setup order matters: extension, catalog path, tenant context, all on
	// the connection that runs the traversal. The GUC is session-scoped:
	// under autocommit each statement is its own transaction, so a
	// transaction-local set_config would be gone before the traversal runs.
	if err := conn.Exec(ctx, `LOAD 'age'`); err != nil {
		return nil, fmt.Errorf("agedb: load extension: %w", err)
	}
	if err := conn.Exec(ctx, `SET search_path = ag_catalog, "$user", public`); err != nil {
		return nil, fmt.Errorf("agedb: set search_path: %w", err)
	}
	if err := conn.Exec(ctx, `SELECT set_config('app.tenant_id', $1, false)`, tenantID); err != nil {
		return nil, fmt.Errorf("agedb: set tenant context: %w", err)
	}

	colList := columnList(columns)

	if c.bindingKnownUnsupported() {
		return c.queryLiteral(ctx, conn, query, params, colList)
	}

	paramJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("agedb: encode params: %w", err)
	}
	sql := fmt.Sprintf(
		"SELECT * FROM ag_catalog.cypher(%s, %s, $1) AS (%s)",
		quoteLiteral(c.Graph), dollarQuote(query), colList,
	)
	raw, err := conn.Query(ctx, sql, string(paramJSON))
	if err == nil {
		c.setBinding(bindingSupported)
		return parseRows(raw, c.log), nil
	}
	if !strings.Contains(err.Error(), bindingParamSignature) {
		return nil, err
	}

	c.log.Warn("cypher parameter binding unsupported; retrying with literal substitution", "graph", c.Graph)
	c.setBinding(bindingUnsupported)
	return c.queryLiteral(ctx, conn, query, params, colList)
}

func (c *Client) queryLiteral(ctx context.Context, conn querier, query string, params map[string]any, colList string) ([][]Value, error) {
	sql := fmt.Sprintf(
		"SELECT * FROM ag_catalog.cypher(%s, %s) AS (%s)",
		quoteLiteral(c.Graph), dollarQuote(SubstituteParams(query, params)), colList,
	)
	raw, err := conn.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	return parseRows(raw, c.log), nil
}

func (c *Client) bindingKnownUnsupported() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.binding == bindingUnsupported
}

func (c *Client) setBinding(s bindingState) {
	c.mu.Lock()
	c.binding = s
	c.mu.Unlock()
}

func columnList(columns []string) string {
	if len(columns) == 0 {
		return "result agtype"
	}
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, col+" agtype")
	}
	return strings.Join(parts, ", ")
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// dollarQuote wraps the cypher text in a dollar-quoted literal, picking a
// tag that does not occur in the text.
func dollarQuote(s string) string {
	tag := "$q$"
	for strings.Contains(s, tag) {
		tag = "$q" + tag[2:len(tag)-1] + "q$"
	}
	return tag + s + tag
}

func parseRows(raw [][]any, log *logger.Logger) [][]Value {
	out := make([][]Value, 0, len(raw))
	for _, row := range raw {
		vals := make([]Value, 0, len(row))
		for _, col := range row {
			vals = append(vals, ParseColumn(col, log))
		}
		out = append(out, vals)
	}
	return out
}

// ---- pgxpool-backed connSource ----

type poolSource struct {
	pool *pgxpool.Pool
}

func (p *poolSource) Acquire(ctx context.Context) (querier, func(), error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return &poolConn{conn: conn}, conn.Release, nil
}

func (p *poolSource) Close() { p.pool.Close() }

type poolConn struct {
	conn *pgxpool.Conn
}

func (c *poolConn) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := c.conn.Exec(ctx, sql, args...)
	return err
}

func (c *poolConn) Query(ctx context.Context, sql string, args ...any) ([][]any, error) {
	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}
