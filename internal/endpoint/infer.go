// internal/endpoint/infer.go
package endpoint

import (
	"net/url"
	"strings"

	"github.com/awmpietro/golang-api-surface-inference/internal/traffic"
)

// Stats describes one inference pass.
type Stats struct {
	Total     int `json:"total"`
	Counted   int `json:"counted"`
	Skipped   int `json:"skipped"`
	Endpoints int `json:"endpoints"`
}

// Infer consolidates the network log into endpoint patterns.
func Infer(networkLog []traffic.NetworkEntry) Table {
	t, _ := InferWithStats(networkLog)
	return t
}

// InferWithStats is Infer plus counters for skipped (malformed) entries.
// It never fails: entries without URL or method are left out of the table
// and counted as skipped. Every other entry is counted.
func InferWithStats(networkLog []traffic.NetworkEntry) (Table, Stats) {
	table := Table{}
	stats := Stats{Total: len(networkLog)}

	for _, entry := range networkLog {
		if !entry.Valid() {
			stats.Skipped++
			continue
		}
		p := extractPattern(entry)
		stats.Counted++

		key := p.Key()
		if existing, found := table[key]; found {
			existing.CallCount++
			table[key] = existing
			continue
		}
		p.CallCount = 1
		table[key] = p
	}

	stats.Endpoints = len(table)
	return table, stats
}

func extractPattern(entry traffic.NetworkEntry) Pattern {
	scheme, host, path, rawQuery := splitURL(entry.URL)

	pathPattern := TemplatePath(path)
	if rawQuery != "" {
		pathPattern += "?" + TemplateQuery(rawQuery)
	}

	return Pattern{
		Method:      entry.Method,
		BaseURL:     scheme + "://" + host,
		PathPattern: pathPattern,
		OriginalURL: entry.URL,
	}
}

// splitURL falls back to a plain textual split when net/url rejects the
// URL (bad escapes, named ports). The fragment is dropped.
func splitURL(raw string) (scheme, host, path, rawQuery string) {
	if u, err := url.Parse(raw); err == nil {
		return u.Scheme, u.Host, u.EscapedPath(), u.RawQuery
	}

	rest, _, _ := strings.Cut(raw, "#")
	rest, rawQuery, _ = strings.Cut(rest, "?")
	if s, after, ok := strings.Cut(rest, "://"); ok && validScheme(s) {
		scheme = strings.ToLower(s)
		rest = after
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			host, path = rest[:i], rest[i:]
		} else {
			host = rest
		}
		return scheme, host, path, rawQuery
	}
	return "", "", rest, rawQuery
}

func validScheme(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}
