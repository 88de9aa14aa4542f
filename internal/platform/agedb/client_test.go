package agedb

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
)

type fakeConn struct {
	execs     []string
	execArgs  [][]any
	queries   []string
	queryArgs [][]any
	failWith  []error // per Query call; nil entries succeed
	rows      [][]any
}

func (c *fakeConn) Exec(_ context.Context, sql string, args ...any) error {
	c.execs = append(c.execs, sql)
	c.execArgs = append(c.execArgs, args)
	return nil
}

func (c *fakeConn) Query(_ context.Context, sql string, args ...any) ([][]any, error) {
	idx := len(c.queries)
	c.queries = append(c.queries, sql)
	c.queryArgs = append(c.queryArgs, args)
	if idx < len(c.failWith) && c.failWith[idx] != nil {
		return nil, c.failWith[idx]
	}
	return c.rows, nil
}

type fakeSource struct {
	conn           *fakeConn
	acquired       int
	released       int
	execsAtRelease int
}

func (s *fakeSource) Acquire(context.Context) (querier, func(), error) {
	s.acquired++
	return s.conn, func() {
		s.released++
		s.execsAtRelease = len(s.conn.execs)
	}, nil
}

func (s *fakeSource) Close() {}

func newTestClient(conn *fakeConn) (*Client, *fakeSource) {
	src := &fakeSource{conn: conn}
	return newWithSource(src, "knowledge_graph", logger.NewNop(), time.Second), src
}

func TestExecCypherSetupOrder(t *testing.T) {
	conn := &fakeConn{rows: [][]any{{`"A"`}}}
	client, _ := newTestClient(conn)

	if _, err := client.ExecCypher(context.Background(), "tenant-1", "RETURN 1", nil, []string{"v"}); err != nil {
		t.Fatalf("ExecCypher: %v", err)
	}
	if len(conn.execs) != 4 {
		t.Fatalf("expected 3 setup statements plus reset, got %d: %v", len(conn.execs), conn.execs)
	}
	if !strings.Contains(conn.execs[0], "LOAD 'age'") {
		t.Fatalf("setup[0] = %q", conn.execs[0])
	}
	if !strings.Contains(conn.execs[1], "search_path") {
		t.Fatalf("setup[1] = %q", conn.execs[1])
	}
	if !strings.Contains(conn.execs[2], "set_config") {
		t.Fatalf("setup[2] = %q", conn.execs[2])
	}
	// Session scope: autocommit would discard a transaction-local GUC
	// before the traversal statement ran.
	if !strings.Contains(conn.execs[2], "false") {
		t.Fatalf("tenant GUC must be session-scoped: %q", conn.execs[2])
	}
	if len(conn.execArgs[2]) != 1 || conn.execArgs[2][0] != "tenant-1" {
		t.Fatalf("tenant not bound in set_config: %v", conn.execArgs[2])
	}
	if !strings.Contains(conn.execs[3], `set_config('app.tenant_id', ''`) {
		t.Fatalf("tenant GUC not scrubbed after the query: %q", conn.execs[3])
	}
}

func TestExecCypherScrubsTenantBeforeRelease(t *testing.T) {
	conn := &fakeConn{rows: [][]any{{`"A"`}}}
	client, src := newTestClient(conn)

	if _, err := client.ExecCypher(context.Background(), "tenant-1", "RETURN 1", nil, []string{"v"}); err != nil {
		t.Fatalf("ExecCypher: %v", err)
	}
	if src.released != 1 {
		t.Fatalf("released = %d", src.released)
	}
	if src.execsAtRelease != len(conn.execs) {
		t.Fatalf("reset must run before release: at release %d of %d execs", src.execsAtRelease, len(conn.execs))
	}

	// The scrub also runs when the query fails.
	conn2 := &fakeConn{failWith: []error{errors.New("boom")}}
	client2, src2 := newTestClient(conn2)
	if _, err := client2.ExecCypher(context.Background(), "tenant-1", "RETURN 1", nil, []string{"v"}); err == nil {
		t.Fatal("expected error")
	}
	last := conn2.execs[len(conn2.execs)-1]
	if !strings.Contains(last, `set_config('app.tenant_id', ''`) {
		t.Fatalf("error path must still scrub the GUC: %q", last)
	}
	if src2.released != 1 {
		t.Fatalf("released = %d", src2.released)
	}
}

func TestExecCypherBindingFallback(t *testing.T) {
	bindErr := errors.New("ERROR: third argument of cypher function must be a parameter")
	conn := &fakeConn{
		failWith: []error{bindErr},
		rows:     [][]any{{`"Algebra"`}},
	}
	client, src := newTestClient(conn)

	rows, err := client.ExecCypher(context.Background(), "t1",
		"MATCH (c:Concept) WHERE c.name = $name RETURN c.name",
		map[string]any{"name": "Algebra"}, []string{"name"})
	if err != nil {
		t.Fatalf("ExecCypher: %v", err)
	}
	if len(conn.queries) != 2 {
		t.Fatalf("expected exactly one retry, got %d queries", len(conn.queries))
	}
	if len(conn.queryArgs[0]) != 1 {
		t.Fatalf("first attempt should bind the param object, args=%v", conn.queryArgs[0])
	}
	if len(conn.queryArgs[1]) != 0 {
		t.Fatalf("literal retry must not bind params, args=%v", conn.queryArgs[1])
	}
	if !strings.Contains(conn.queries[1], "'Algebra'") {
		t.Fatalf("literal retry missing substituted value: %q", conn.queries[1])
	}
	if src.acquired != 1 || src.released != 1 {
		t.Fatalf("connection lifecycle: acquired=%d released=%d", src.acquired, src.released)
	}
	if len(rows) != 1 || rows[0][0].Str != "Algebra" {
		t.Fatalf("rows = %+v", rows)
	}

	// The capability result is cached: the next call skips the bound
	// attempt and goes straight to literal substitution.
	conn.queries = nil
	conn.queryArgs = nil
	conn.failWith = nil
	if _, err := client.ExecCypher(context.Background(), "t1", "RETURN 1", nil, []string{"v"}); err != nil {
		t.Fatalf("second ExecCypher: %v", err)
	}
	if len(conn.queries) != 1 || len(conn.queryArgs[0]) != 0 {
		t.Fatalf("cached capability not honored: queries=%d args=%v", len(conn.queries), conn.queryArgs)
	}
}

func TestExecCypherOtherErrorNoRetry(t *testing.T) {
	conn := &fakeConn{failWith: []error{errors.New("syntax error at or near MATCH")}}
	client, src := newTestClient(conn)

	_, err := client.ExecCypher(context.Background(), "t1", "RETURN 1", nil, []string{"v"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(conn.queries) != 1 {
		t.Fatalf("non-signature errors must not retry, got %d queries", len(conn.queries))
	}
	if src.released != 1 {
		t.Fatalf("connection must be released on the error path, released=%d", src.released)
	}
}

func TestDollarQuoteAvoidsCollision(t *testing.T) {
	body := "RETURN '$q$ inside'"
	quoted := dollarQuote(body)
	if !strings.Contains(quoted, body) {
		t.Fatalf("body lost: %q", quoted)
	}
	tag := quoted[:strings.Index(quoted, body)]
	if strings.Count(quoted, tag) != 2 {
		t.Fatalf("tag %q collides with body: %q", tag, quoted)
	}
}
