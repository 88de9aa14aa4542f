package agedb

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
)

// agtype scalars arrive as loosely-typed strings with a trailing type
// annotation (`2::numeric`, `"Algebra"`). They are decoded into a small
// tagged union at this boundary; raw agtype strings never cross it.

type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindArray
)

type Value struct {
	Kind Kind
	Num  float64
	Str  string
	Arr  []Value
}

func NumberValue(f float64) Value { return Value{Kind: KindNumber, Num: f} }
func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func ArrayValue(vs []Value) Value { return Value{Kind: KindArray, Arr: vs} }

// AsString renders the value for callers that want text regardless of the
// declared kind.
func (v Value) AsString() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindArray:
		parts := make([]string, 0, len(v.Arr))
		for _, e := range v.Arr {
			parts = append(parts, e.AsString())
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return v.Str
	}
}

// AsInt truncates a numeric value; non-numbers yield 0, ok=false.
func (v Value) AsInt() (int, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	return int(v.Num), true
}

var (
	typeAnnotation = regexp.MustCompile(`::[A-Za-z_][A-Za-z0-9_]*`)
	// Anchored: only a suffix annotation may be stripped from a scalar, an
	// interior ::word is part of the value.
	trailingAnnotation = regexp.MustCompile(`::[A-Za-z_][A-Za-z0-9_]*$`)
)

// ParseColumn decodes one result column. The pgx text protocol hands
// agtype back as a string; anything else is stringified first.
func ParseColumn(raw any, log *logger.Logger) Value {
	s, ok := raw.(string)
	if !ok {
		if b, isBytes := raw.([]byte); isBytes {
			s = string(b)
		} else {
			s = strings.TrimSpace(fmt.Sprint(raw))
		}
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		return ArrayValue(ParseArray(s, log))
	}
	return ParseScalar(s)
}

// ParseScalar strips the trailing ::typename annotation, attempts numeric
// coercion and falls back to the raw (unquoted) string.
func ParseScalar(raw string) Value {
	s := strings.TrimSpace(raw)
	if loc := trailingAnnotation.FindStringIndex(s); loc != nil && loc[0] > 0 {
		s = s[:loc[0]]
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return NumberValue(n)
	}
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal([]byte(s), &unquoted); err == nil {
			return StringValue(unquoted)
		}
	}
	return StringValue(s)
}

// ParseArray decodes an agtype array column: JSON text whose elements may
// carry the same per-element type annotations, which must be stripped
// before decoding. A decode failure yields an empty array and a warning,
// never an error.
func ParseArray(raw string, log *logger.Logger) []Value {
	cleaned := typeAnnotation.ReplaceAllString(strings.TrimSpace(raw), "")
	var elems []any
	if err := json.Unmarshal([]byte(cleaned), &elems); err != nil {
		if log != nil {
			log.Warn("agtype array decode failed", "error", err)
		}
		return []Value{}
	}
	out := make([]Value, 0, len(elems))
	for _, e := range elems {
		out = append(out, fromDecoded(e))
	}
	return out
}

func fromDecoded(e any) Value {
	switch t := e.(type) {
	case float64:
		return NumberValue(t)
	case string:
		return StringValue(t)
	case bool:
		if t {
			return NumberValue(1)
		}
		return NumberValue(0)
	case []any:
		arr := make([]Value, 0, len(t))
		for _, inner := range t {
			arr = append(arr, fromDecoded(inner))
		}
		return ArrayValue(arr)
	case nil:
		return StringValue("")
	default:
		return StringValue(strings.TrimSpace(fmt.Sprint(t)))
	}
}
