// internal/endpoint/pattern.go
package endpoint

import (
	"regexp"
	"sort"
	"strings"
)

// Pattern is one inferred API route.
type Pattern struct {
	Method      string `json:"method"`
	BaseURL     string `json:"base_url"`
	PathPattern string `json:"path_pattern"`
	CallCount   int    `json:"call_count"`
	OriginalURL string `json:"original_url"`
}

// Key returns the consolidation key of the pattern.
func (p Pattern) Key() string {
	return Key(p.Method, p.BaseURL, p.PathPattern)
}

// Key concatenates method, base URL and templated path.
func Key(method, baseURL, pathPattern string) string {
	return method + ":" + baseURL + pathPattern
}

// Table maps endpoint keys to patterns.
type Table map[string]Pattern

// Patterns returns the table values ordered by key.
func (t Table) Patterns() []Pattern {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Pattern, 0, len(keys))
	for _, k := range keys {
		out = append(out, t[k])
	}
	return out
}

// TotalCalls sums call counts across the table.
func (t Table) TotalCalls() int {
	n := 0
	for _, p := range t {
		n += p.CallCount
	}
	return n
}

// Clone returns an independent copy.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

const idPlaceholder = "{id}"

var numericSegment = regexp.MustCompile(`^\d+$`)

// TemplatePath replaces purely numeric path segments with {id}. Everything
// else, slugs included, is kept verbatim.
func TemplatePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if numericSegment.MatchString(seg) {
			segments[i] = idPlaceholder
		}
	}
	return strings.Join(segments, "/")
}

// TemplateQuery turns "page=1&limit=10" into "page={page}&limit={limit}".
// Parameter order is kept as written; pairs without '=' are dropped.
func TemplateQuery(rawQuery string) string {
	pairs := strings.Split(rawQuery, "&")
	parts := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		name, _, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		parts = append(parts, name+"={"+name+"}")
	}
	return strings.Join(parts, "&")
}
