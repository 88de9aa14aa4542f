package agedb

import (
	"testing"

	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
)

func TestParseScalar(t *testing.T) {
	if v := ParseScalar(`2::numeric`); v.Kind != KindNumber || v.Num != 2 {
		t.Fatalf("numeric annotation: got kind=%d num=%v", v.Kind, v.Num)
	}
	if v := ParseScalar(`3.5`); v.Kind != KindNumber || v.Num != 3.5 {
		t.Fatalf("bare number: got kind=%d num=%v", v.Kind, v.Num)
	}
	if v := ParseScalar(`"Algebra"`); v.Kind != KindString || v.Str != "Algebra" {
		t.Fatalf("quoted string: got kind=%d str=%q", v.Kind, v.Str)
	}
	if v := ParseScalar(`"Linear Algebra"::vertex_name`); v.Kind != KindString || v.Str != "Linear Algebra" {
		t.Fatalf("annotated string: got kind=%d str=%q", v.Kind, v.Str)
	}
	if v := ParseScalar(`not a number`); v.Kind != KindString || v.Str != "not a number" {
		t.Fatalf("raw fallback: got kind=%d str=%q", v.Kind, v.Str)
	}
	// An interior ::word is content, not an annotation.
	if v := ParseScalar(`"std::vector basics"`); v.Str != "std::vector basics" {
		t.Fatalf("interior :: truncated: got %q", v.Str)
	}
	if v := ParseScalar(`"std::vector"::vertex_name`); v.Str != "std::vector" {
		t.Fatalf("trailing annotation with interior ::: got %q", v.Str)
	}
}

func TestParseArray(t *testing.T) {
	log := logger.NewNop()

	arr := ParseArray(`["a", "b", 2::numeric]`, log)
	if len(arr) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(arr))
	}
	if arr[0].Str != "a" || arr[1].Str != "b" {
		t.Fatalf("string elements: got %q, %q", arr[0].Str, arr[1].Str)
	}
	if arr[2].Kind != KindNumber || arr[2].Num != 2 {
		t.Fatalf("numeric element: got kind=%d num=%v", arr[2].Kind, arr[2].Num)
	}

	// Decode failure yields an empty array, never an error.
	if arr := ParseArray(`[not json`, log); len(arr) != 0 {
		t.Fatalf("broken array should be empty, got %d elements", len(arr))
	}
}

func TestParseColumnDispatch(t *testing.T) {
	log := logger.NewNop()
	if v := ParseColumn(`["x"]`, log); v.Kind != KindArray || len(v.Arr) != 1 {
		t.Fatalf("array dispatch: got kind=%d len=%d", v.Kind, len(v.Arr))
	}
	if v := ParseColumn([]byte(`7::integer`), log); v.Kind != KindNumber || v.Num != 7 {
		t.Fatalf("bytes scalar: got kind=%d num=%v", v.Kind, v.Num)
	}
}
