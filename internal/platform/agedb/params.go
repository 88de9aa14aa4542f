package agedb

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var paramPlaceholder = regexp.MustCompile(`\$[A-Za-z_][A-Za-z0-9_]*`)

// SubstituteParams splices parameter values into the cypher text as escaped
// literals. This is only for backends that reject a bound parameter object;
// on every other path parameters stay bound. Substitution is a single
// left-to-right pass over the original query text, so substituted values
// are never rescanned: a value containing a $name never triggers a second
// substitution inside the first one, and $tenant_id never collides with a
// $tenant prefix (the placeholder match is maximal). Unknown placeholders
// are left as written.
func SubstituteParams(query string, params map[string]any) string {
	if len(params) == 0 {
		return query
	}
	return paramPlaceholder.ReplaceAllStringFunc(query, func(m string) string {
		if v, ok := params[m[1:]]; ok {
			return renderLiteral(v)
		}
		return m
	})
}

func renderLiteral(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case string:
		return escapeString(t)
	case []string:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, escapeString(e))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, renderLiteral(e))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+renderLiteral(t[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return escapeString(strings.TrimSpace(fmt.Sprint(t)))
	}
}

func escapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
