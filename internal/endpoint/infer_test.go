package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awmpietro/golang-api-surface-inference/internal/traffic"
)

func get(url string) traffic.NetworkEntry {
	return traffic.NetworkEntry{URL: url, Method: "GET", Status: 200}
}

func TestTemplatePath(t *testing.T) {
	cases := map[string]string{
		"/users/123":            "/users/{id}",
		"/users/123/orders/456": "/users/{id}/orders/{id}",
		"/users":                "/users",
		"/users/abc-123":        "/users/abc-123",
		"/v2/items/123abc":      "/v2/items/123abc",
		"/":                     "/",
		"":                      "",
		"/42/":                  "/{id}/",
	}
	for in, want := range cases {
		assert.Equal(t, want, TemplatePath(in), in)
	}
}

func TestTemplateQuery_PreservesOrderAndDropsBarePairs(t *testing.T) {
	assert.Equal(t, "page={page}&limit={limit}", TemplateQuery("page=1&limit=10"))
	assert.Equal(t, "limit={limit}&page={page}", TemplateQuery("limit=10&page=1"))
	assert.Equal(t, "q={q}", TemplateQuery("q=a=b&flag"))
	assert.Equal(t, "", TemplateQuery("flag"))
}

func TestInfer_EmptyLog(t *testing.T) {
	table, stats := InferWithStats(nil)
	assert.Empty(t, table)
	assert.Equal(t, Stats{}, stats)
}

func TestInfer_TemplatesNumericSegmentsAndQuery(t *testing.T) {
	table := Infer([]traffic.NetworkEntry{
		get("https://api.example.com/users/123/orders/456?page=1&limit=10"),
	})
	require.Len(t, table, 1)

	p := table.Patterns()[0]
	assert.Equal(t, "GET", p.Method)
	assert.Equal(t, "https://api.example.com", p.BaseURL)
	assert.Equal(t, "/users/{id}/orders/{id}?page={page}&limit={limit}", p.PathPattern)
	assert.Equal(t, 1, p.CallCount)
	assert.Equal(t, "https://api.example.com/users/123/orders/456?page=1&limit=10", p.OriginalURL)
}

func TestInfer_ConsolidatesByKey(t *testing.T) {
	table := Infer([]traffic.NetworkEntry{
		get("https://api.example.com/users/123"),
		get("https://api.example.com/orders/101"),
		get("https://api.example.com/users/456"),
		get("https://api.example.com/users/789"),
		get("https://api.example.com/orders/202"),
	})
	require.Len(t, table, 2)

	users := table[Key("GET", "https://api.example.com", "/users/{id}")]
	orders := table[Key("GET", "https://api.example.com", "/orders/{id}")]
	assert.Equal(t, 3, users.CallCount)
	assert.Equal(t, 2, orders.CallCount)
	assert.Equal(t, "https://api.example.com/users/123", users.OriginalURL)
	assert.Equal(t, "https://api.example.com/orders/101", orders.OriginalURL)
}

func TestInfer_DiscriminatesMethods(t *testing.T) {
	var log []traffic.NetworkEntry
	for _, m := range []string{"GET", "POST", "PUT", "DELETE"} {
		log = append(log, traffic.NetworkEntry{URL: "https://api.example.com/users", Method: m})
		log = append(log, traffic.NetworkEntry{URL: "https://api.example.com/orders/7", Method: m})
	}
	table := Infer(log)
	assert.Len(t, table, 8)

	methods := map[string]int{}
	for _, p := range table {
		if p.PathPattern == "/users" {
			methods[p.Method]++
		}
	}
	assert.Equal(t, map[string]int{"GET": 1, "POST": 1, "PUT": 1, "DELETE": 1}, methods)
}

func TestInfer_QueryOrderFormsDistinctKeys(t *testing.T) {
	table := Infer([]traffic.NetworkEntry{
		get("https://api.example.com/search?a=1&b=2"),
		get("https://api.example.com/search?b=2&a=1"),
	})
	assert.Len(t, table, 2)
}

func TestInfer_SkipsMalformedEntries(t *testing.T) {
	log := []traffic.NetworkEntry{
		{URL: "", Method: "GET"},
		{URL: "https://api.example.com/users/1", Method: ""},
		{},
		{URL: "https://api.example.com/users/2", Method: "GET"},
		{URL: "http://[::1]:namedport/x", Method: "GET"},
		{URL: "https://api.example.com/users/3", Method: "GET"},
	}

	table, stats := InferWithStats(log)
	require.Len(t, table, 2)
	assert.Equal(t, 3, table.TotalCalls())
	assert.Equal(t, Stats{Total: 6, Counted: 3, Skipped: 3, Endpoints: 2}, stats)
	assert.Contains(t, table, Key("GET", "http://[::1]:namedport", "/x"))
}

func TestInfer_CountsURLsNetURLRejects(t *testing.T) {
	log := []traffic.NetworkEntry{
		get("https://api.test/discount/100%"),
		get("https://api.test/files/a%zz/1?page=2#top"),
		get("https://api.test/users/7"),
	}

	table, stats := InferWithStats(log)
	assert.Equal(t, Stats{Total: 3, Counted: 3, Skipped: 0, Endpoints: 3}, stats)
	assert.Equal(t, 3, table.TotalCalls())

	p, ok := table[Key("GET", "https://api.test", "/discount/100%")]
	require.True(t, ok)
	assert.Equal(t, "https://api.test/discount/100%", p.OriginalURL)
	assert.Contains(t, table, Key("GET", "https://api.test", "/files/a%zz/{id}?page={page}"))
}

func TestSplitURL_Fallback(t *testing.T) {
	cases := []struct {
		raw, scheme, host, path, rawQuery string
	}{
		{"HTTPS://h.test/a%zz?x=1", "https", "h.test", "/a%zz", "x=1"},
		{"http://h.test:port", "http", "h.test:port", "", ""},
		{"%zz/relative?q=1", "", "", "%zz/relative", "q=1"},
	}
	for _, tc := range cases {
		scheme, host, path, rawQuery := splitURL(tc.raw)
		assert.Equal(t, []string{tc.scheme, tc.host, tc.path, tc.rawQuery}, []string{scheme, host, path, rawQuery}, tc.raw)
	}
}

func TestInfer_IsIdempotent(t *testing.T) {
	log := []traffic.NetworkEntry{
		get("https://a.test/x/1"),
		get("https://a.test/x/2?z=1"),
		{URL: "https://a.test/x/3", Method: "POST"},
	}
	assert.Equal(t, Infer(log), Infer(log))
}

func TestInfer_DoesNotKeepFirstSeenPatternMutable(t *testing.T) {
	log := []traffic.NetworkEntry{get("https://a.test/x/1"), get("https://a.test/x/2")}
	table := Infer(log)
	clone := table.Clone()

	p := clone[Key("GET", "https://a.test", "/x/{id}")]
	p.CallCount = 100
	clone[p.Key()] = p

	assert.Equal(t, 2, table[p.Key()].CallCount)
}

func TestTable_PatternsSortedByKey(t *testing.T) {
	table := Infer([]traffic.NetworkEntry{
		{URL: "https://b.test/z", Method: "POST"},
		get("https://a.test/y"),
		get("https://a.test/x"),
	})
	var keys []string
	for _, p := range table.Patterns() {
		keys = append(keys, p.Key())
	}
	assert.Equal(t, []string{"GET:https://a.test/x", "GET:https://a.test/y", "POST:https://b.test/z"}, keys)
}
