package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandlens/brandlens/internal/backend"
	"github.com/brandlens/brandlens/internal/cache"
	"github.com/brandlens/brandlens/internal/config"
	"github.com/brandlens/brandlens/internal/models"
)

// fakeBackend stands in for the collection backend over real HTTP so the
// whole client path (auth mirroring, error extraction) is exercised.
type fakeBackend struct {
	mux *http.ServeMux
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{mux: http.NewServeMux()}
}

func (f *fakeBackend) respond(path string, status int, body string) {
	f.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
}

func newTestServer(t *testing.T, fake *fakeBackend) *Server {
	t.Helper()
	backendSrv := httptest.NewServer(fake.mux)
	t.Cleanup(backendSrv.Close)

	cfg := &config.Config{
		BackendToken: "service-token",
		FetchLimit:   100,
		PollAttempts: 1,
	}
	client := backend.NewClient(backendSrv.URL, cfg.BackendToken, 100, 10)
	app := NewApp(cfg, client, cache.NewMemoryStore(), nil)
	return NewServer(app)
}

func doRequest(s *Server, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, newFakeBackend())

	rec := doRequest(s, "GET", "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestAuthenticate_RejectsWithoutAnyToken(t *testing.T) {
	fake := newFakeBackend()
	backendSrv := httptest.NewServer(fake.mux)
	t.Cleanup(backendSrv.Close)

	// No default token configured and none supplied by the caller.
	cfg := &config.Config{FetchLimit: 100, PollAttempts: 1}
	client := backend.NewClient(backendSrv.URL, "", 100, 10)
	s := NewServer(NewApp(cfg, client, cache.NewMemoryStore(), nil))

	rec := doRequest(s, "GET", "/api/brands", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication required")
}

func TestMentions_NonAdminFeed(t *testing.T) {
	now := time.Now().UTC().Format(time.RFC3339)
	fake := newFakeBackend()
	fake.respond("/api/brands/user/casey@example.com", 200,
		`{"brands": [{"brandName": "Acme", "keywords": ["acme"]}]}`)
	fake.respond("/api/brands/assigned/casey@example.com", 200, `{"brands": []}`)
	fake.respond("/api/data/user-posts", 200,
		`{"data": [
			{"id": "p1", "brand": {"brandName": "Acme"}, "platform": "twitter", "createdAt": "`+now+`",
			 "content": {"text": "acme is great"}, "analysis": {"sentiment": "positive"}},
			{"id": "p2", "brand": {"brandName": "Acme"}, "platform": "reddit", "createdAt": "`+now+`",
			 "content": {"text": "acme is broken"}, "analysis": {"sentiment": "negative"}}
		]}`)

	s := newTestServer(t, fake)
	header := map[string]string{"X-User-Email": "casey@example.com"}

	rec := doRequest(s, "GET", "/api/mentions?days=7", "", header)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body mentionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)

	// The actionable tab narrows to negative mentions.
	rec = doRequest(s, "GET", "/api/mentions?days=7&tab=actionable", "", header)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Total)
	assert.Equal(t, "acme is broken", body.Posts[0].Content.Text)
}

func TestMentions_BackendErrorPassesThrough(t *testing.T) {
	fake := newFakeBackend()
	fake.respond("/api/brands/user/casey@example.com", 503,
		`{"message": "upstream saturated"}`)
	fake.respond("/api/brands/assigned/casey@example.com", 200, `{"brands": []}`)

	s := newTestServer(t, fake)

	rec := doRequest(s, "GET", "/api/mentions", "",
		map[string]string{"X-User-Email": "casey@example.com"})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "upstream saturated")
}

func TestGroups_ReturnsReconciledGroups(t *testing.T) {
	fake := newFakeBackend()
	fake.respond("/api/brands/user/casey@example.com", 200,
		`{"brands": [{"brandName": "Acme", "keywords": ["acme"], "platforms": ["twitter"],
		  "keywordGroups": [{"name": "Core", "keywords": ["acme"]}]}]}`)
	fake.respond("/api/brands/assigned/casey@example.com", 200, `{"brands": []}`)

	s := newTestServer(t, fake)

	rec := doRequest(s, "GET", "/api/groups?brand=Acme", "",
		map[string]string{"X-User-Email": "casey@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body groupsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Groups, 1)
	assert.Equal(t, "Core", body.Groups[0].Name)
	// Missing platform selections fall back to the brand's.
	assert.Equal(t, []string{"twitter"}, body.Groups[0].Platforms)
}

func TestGroups_UnknownBrand(t *testing.T) {
	fake := newFakeBackend()
	fake.respond("/api/brands/user/casey@example.com", 200, `{"brands": []}`)
	fake.respond("/api/brands/assigned/casey@example.com", 200, `{"brands": []}`)

	s := newTestServer(t, fake)

	rec := doRequest(s, "GET", "/api/groups?brand=Missing", "",
		map[string]string{"X-User-Email": "casey@example.com"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBrands_SearchFilter(t *testing.T) {
	fake := newFakeBackend()
	fake.respond("/api/brands/user/casey@example.com", 200,
		`{"brands": [{"brandName": "Acme", "keywords": ["rockets"]}, {"brandName": "Globex"}]}`)
	fake.respond("/api/brands/assigned/casey@example.com", 200, `{"brands": []}`)

	s := newTestServer(t, fake)
	header := map[string]string{"X-User-Email": "casey@example.com"}

	rec := doRequest(s, "GET", "/api/brands?search=rocket", "", header)
	require.Equal(t, http.StatusOK, rec.Code)

	var body brandsListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Brands, 1)
	assert.Equal(t, "Acme", body.Brands[0].BrandName)
}

func TestBrandSearch_Summary(t *testing.T) {
	fake := newFakeBackend()
	fake.respond("/api/search/brandsearch", 200,
		`{"summary": {"youtube": 2, "twitter": 5, "reddit": 1}}`)

	s := newTestServer(t, fake)

	rec := doRequest(s, "POST", "/api/search/brandsearch", `{"brandName": "Acme"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Summary models.SearchSummary `json:"summary"`
		Total   int                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 8, body.Total)
	assert.Equal(t, 5, body.Summary.Twitter)
}

func TestBrandSearch_RequiresBrandName(t *testing.T) {
	s := newTestServer(t, newFakeBackend())

	rec := doRequest(s, "POST", "/api/search/brandsearch", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefresh_ReturnsNewToken(t *testing.T) {
	fake := newFakeBackend()
	fake.respond("/api/search/run", 200, `{"success": true}`)

	s := newTestServer(t, fake)

	rec := doRequest(s, "POST", "/api/brands/refresh", `{"brands": ["Acme"]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]uint64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint64(1), body["token"])
}

func TestRefreshBrands_FiltersByFrequency(t *testing.T) {
	fake := newFakeBackend()
	fake.respond("/api/brands/all", http.StatusOK,
		`{"brands": [{"brandName": "Acme", "frequency": "1h"}, {"brandName": "Globex", "frequency": "5m"}, {"brandName": "Initech"}]}`)

	var mu sync.Mutex
	triggered := map[string]int{}
	fake.mux.HandleFunc("/api/search/run", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			BrandName string `json:"brandName"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		triggered[req.BrandName]++
		mu.Unlock()
		w.Write([]byte(`{"success": true}`))
	})

	s := newTestServer(t, fake)

	require.NoError(t, s.app.RefreshBrands(context.Background(), "1h"))
	mu.Lock()
	assert.Equal(t, map[string]int{"Acme": 1}, triggered)
	mu.Unlock()

	// A brand without a configured interval rides the default one.
	require.NoError(t, s.app.RefreshBrands(context.Background(), models.DefaultFrequency))
	mu.Lock()
	assert.Equal(t, map[string]int{"Acme": 1, "Initech": 1}, triggered)
	mu.Unlock()
}
