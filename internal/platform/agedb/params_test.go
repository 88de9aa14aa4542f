package agedb

import (
	"strings"
	"testing"
)

func TestSubstituteParams(t *testing.T) {
	out := SubstituteParams(
		`MATCH (c:Concept) WHERE c.name = $name AND c.tenant_id = $tenant AND c.depth = $depth`,
		map[string]any{"name": "Algebra", "tenant": "t-1", "depth": 3},
	)
	want := `MATCH (c:Concept) WHERE c.name = 'Algebra' AND c.tenant_id = 't-1' AND c.depth = 3`
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestSubstituteParamsEscaping(t *testing.T) {
	out := SubstituteParams(`RETURN $v`, map[string]any{"v": `O'Brien\n`})
	if !strings.Contains(out, `'O\'Brien\\n'`) {
		t.Fatalf("quote/backslash not escaped: %q", out)
	}

	out = SubstituteParams(`RETURN $v`, map[string]any{"v": "line1\nline2"})
	if strings.Contains(out, "\n") {
		t.Fatalf("raw newline survived substitution: %q", out)
	}
}

func TestSubstituteParamsPrefixCollision(t *testing.T) {
	// $tenant_id must not be clobbered by a shorter $tenant substitution.
	out := SubstituteParams(`RETURN $tenant, $tenant_id`, map[string]any{
		"tenant":    "a",
		"tenant_id": "b",
	})
	if out != `RETURN 'a', 'b'` {
		t.Fatalf("got %q", out)
	}
}

func TestSubstituteParamsValueNotRescanned(t *testing.T) {
	// A value that itself contains a placeholder must land inside its own
	// string literal untouched; substituting into already-substituted text
	// would let a crafted name break out of the literal.
	out := SubstituteParams(
		`WHERE a.name = $from AND b.name = $to`,
		map[string]any{
			"from": "x $to y",
			"to":   `]) MATCH (all) RETURN all //`,
		},
	)
	if !strings.Contains(out, `a.name = 'x $to y'`) {
		t.Fatalf("value was rescanned: %q", out)
	}
	if !strings.Contains(out, `b.name = ']) MATCH (all) RETURN all //'`) {
		t.Fatalf("second value not a self-contained literal: %q", out)
	}
}

func TestSubstituteParamsUnknownPlaceholder(t *testing.T) {
	out := SubstituteParams(`RETURN $known, $unknown`, map[string]any{"known": 1})
	if out != `RETURN 1, $unknown` {
		t.Fatalf("got %q", out)
	}
}

func TestRenderLiteralComposite(t *testing.T) {
	out := SubstituteParams(`RETURN $xs, $m, $none, $flag`, map[string]any{
		"xs":   []string{"a", "b"},
		"m":    map[string]any{"k": 1, "j": "v"},
		"none": nil,
		"flag": true,
	})
	for _, want := range []string{`['a', 'b']`, `{j: 'v', k: 1}`, `null`, `true`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}
