package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/brandlens/brandlens/internal/analytics"
	"github.com/brandlens/brandlens/internal/backend"
	"github.com/brandlens/brandlens/internal/brands"
	"github.com/brandlens/brandlens/internal/mentions"
	"github.com/brandlens/brandlens/internal/metrics"
	"github.com/brandlens/brandlens/internal/models"
)

// timelineDays is how many calendar days the analytics timeline covers.
const timelineDays = 14

// Server is the dashboard HTTP API.
type Server struct {
	app    *App
	router *mux.Router
}

// NewServer builds the router around the application services.
func NewServer(app *App) *Server {
	s := &Server{app: app, router: mux.NewRouter()}
	s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.instrument, s.authenticate)

	api.HandleFunc("/mentions", s.handleMentions).Methods("GET")
	api.HandleFunc("/analytics", s.handleAnalytics).Methods("GET")

	api.HandleFunc("/brands", s.handleBrands).Methods("GET")
	api.HandleFunc("/brands/create", s.handleCreateBrand).Methods("POST")
	api.HandleFunc("/brands/configure", s.handleConfigureBrand).Methods("POST")
	api.HandleFunc("/brands/delete", s.handleDeleteBrand).Methods("POST")
	api.HandleFunc("/brands/assign-users", s.handleAssignUsers).Methods("POST")
	api.HandleFunc("/brands/refresh", s.handleRefresh).Methods("POST")

	api.HandleFunc("/search/collect", s.handleCollect).Methods("POST")
	api.HandleFunc("/search/brandsearch", s.handleBrandSearch).Methods("POST")

	api.HandleFunc("/groups", s.handleGroups).Methods("GET")
	api.HandleFunc("/groups/save", s.handleGroupSave).Methods("POST")
	api.HandleFunc("/groups/delete", s.handleGroupDelete).Methods("POST")
	api.HandleFunc("/groups/duplicate", s.handleGroupDuplicate).Methods("POST")
	api.HandleFunc("/groups/pause", s.handleGroupPause).Methods("POST")
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}

// authenticate mirrors the caller's auth cookie (or bearer header) into the
// request context so every backend call carries the user's token. Requests
// without a token still pass when the service has a default token of its own.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if cookie, err := r.Cookie("auth"); err == nil {
			token = cookie.Value
		}
		if token == "" {
			header := r.Header.Get("Authorization")
			token = strings.TrimPrefix(header, "Bearer ")
			if token == header {
				token = ""
			}
		}

		if token == "" && s.app.Config.BackendToken == "" {
			writeError(w, &backend.APIError{
				StatusCode: http.StatusUnauthorized,
				Message:    "authentication required",
			})
			return
		}

		if token != "" {
			r = r.WithContext(backend.WithToken(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}

func userFrom(r *http.Request) models.User {
	return models.User{
		Email: strings.ToLower(strings.TrimSpace(r.Header.Get("X-User-Email"))),
		Role:  strings.ToLower(strings.TrimSpace(r.Header.Get("X-User-Role"))),
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

// writeError maps backend errors onto the response, passing their status and
// extracted message through unchanged so the UI shows what the backend said.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeBadRequest(w http.ResponseWriter, format string, args ...interface{}) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// mentionsResponse carries the filtered feed plus the reload token the
// response was computed under, so the UI can drop superseded responses.
type mentionsResponse struct {
	Posts []models.Post `json:"posts"`
	Total int           `json:"total"`
	Token uint64        `json:"token"`
}

func (s *Server) handleMentions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFrom(r)
	token := s.app.Mentions.Token()

	resolution, err := s.app.Brands.Resolve(ctx, user)
	if err != nil {
		writeError(w, err)
		return
	}

	names := brands.Names(resolution.Brands)
	requested := splitParam(r.URL.Query().Get("brands"))
	if len(requested) > 0 {
		names = intersect(names, requested)
	}

	posts, err := s.app.Mentions.LoadPosts(ctx, user, names, resolution.UsedAdminAll)
	if err != nil {
		writeError(w, err)
		return
	}

	criteria, err := criteriaFrom(r, requested)
	if err != nil {
		writeBadRequest(w, "%v", err)
		return
	}
	posts = mentions.Filter(posts, criteria)

	if groupName := r.URL.Query().Get("group"); groupName != "" {
		group, err := s.findGroup(ctx, resolution.Brands, requested, groupName)
		if err != nil {
			writeBadRequest(w, "%v", err)
			return
		}
		posts = mentions.FilterByGroup(posts, group)
	}

	if posts == nil {
		posts = []models.Post{}
	}
	writeJSON(w, http.StatusOK, mentionsResponse{Posts: posts, Total: len(posts), Token: token})
}

// criteriaFrom builds the mention filter from the request's query string.
// Clock bounds accept the "3:04 PM" form; days of 0 disables the window.
func criteriaFrom(r *http.Request, requestedBrands []string) (mentions.Criteria, error) {
	q := r.URL.Query()
	criteria := mentions.Criteria{
		Brands:   requestedBrands,
		Search:   q.Get("search"),
		Channels: splitParam(q.Get("channels")),
		Tab:      q.Get("tab"),
	}

	days := 7
	if raw := q.Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return criteria, fmt.Errorf("invalid days %q", raw)
		}
		days = parsed
	}
	if days == 0 {
		return criteria, nil
	}

	from, err := clockParam(q.Get("from"), models.StartOfDay)
	if err != nil {
		return criteria, err
	}
	to, err := clockParam(q.Get("to"), models.EndOfDay)
	if err != nil {
		return criteria, err
	}

	window := mentions.NewWindow(days, from, to, time.Now())
	criteria.Window = &window
	return criteria, nil
}

func clockParam(raw string, fallback models.ClockTime) (models.ClockTime, error) {
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.Parse("3:04 PM", strings.ToUpper(strings.TrimSpace(raw)))
	if err != nil {
		return fallback, fmt.Errorf("invalid clock time %q", raw)
	}
	meridiem := "AM"
	hour := parsed.Hour()
	if hour >= 12 {
		meridiem = "PM"
	}
	hour12 := hour % 12
	if hour12 == 0 {
		hour12 = 12
	}
	return models.ClockTime{Hour: hour12, Minute: parsed.Minute(), Meridiem: meridiem}, nil
}

// findGroup resolves a keyword group by name. Group filtering only makes
// sense within a single brand's group namespace.
func (s *Server) findGroup(ctx context.Context, visible []models.Brand, requested []string, groupName string) (models.KeywordGroup, error) {
	if len(requested) != 1 {
		return models.KeywordGroup{}, fmt.Errorf("group filtering requires exactly one brand")
	}

	for i := range visible {
		if visible[i].BrandName != requested[0] {
			continue
		}
		for _, g := range s.app.Groups.Reconcile(ctx, &visible[i]) {
			if g.Name == groupName {
				return g, nil
			}
		}
		return models.KeywordGroup{}, fmt.Errorf("keyword group %q not found", groupName)
	}
	return models.KeywordGroup{}, fmt.Errorf("brand %q not found", requested[0])
}

type analyticsResponse struct {
	Summary     analytics.Summary         `json:"summary"`
	Shares      map[string]float64        `json:"shares"`
	TopKeywords []analytics.KeywordCount  `json:"topKeywords"`
	Timeline    []analytics.TimelinePoint `json:"timeline"`
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	brandName := q.Get("brand")
	if brandName == "" {
		writeBadRequest(w, "brand is required")
		return
	}

	posts, err := s.app.Mentions.FetchBrandPosts(r.Context(), brandName, q.Get("platform"), q.Get("keyword"))
	if err != nil {
		writeError(w, err)
		return
	}

	if raw := q.Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 {
			writeBadRequest(w, "invalid days %q", raw)
			return
		}
		window := mentions.FullDays(days, time.Now())
		posts = mentions.Filter(posts, mentions.Criteria{Window: &window})
	}

	summary := analytics.Aggregate(posts)
	writeJSON(w, http.StatusOK, analyticsResponse{
		Summary:     summary,
		Shares:      analytics.PlatformShares(summary.ByPlatform),
		TopKeywords: analytics.TopKeywords(posts, topKeywordLimit),
		Timeline:    analytics.Timeline(posts, timelineDays),
	})
}

type brandsListResponse struct {
	Brands       []models.Brand `json:"brands"`
	Assigned     []models.Brand `json:"assigned,omitempty"`
	UsedAdminAll bool           `json:"usedAdminAll"`
}

func (s *Server) handleBrands(w http.ResponseWriter, r *http.Request) {
	resolution, err := s.app.Brands.Resolve(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	listed := resolution.Brands
	if search := r.URL.Query().Get("search"); search != "" {
		filtered := make([]models.Brand, 0, len(listed))
		for _, b := range listed {
			if brands.MatchSearch(b, search) {
				filtered = append(filtered, b)
			}
		}
		listed = filtered
	}
	if listed == nil {
		listed = []models.Brand{}
	}

	writeJSON(w, http.StatusOK, brandsListResponse{
		Brands:       listed,
		Assigned:     resolution.Assigned,
		UsedAdminAll: resolution.UsedAdminAll,
	})
}

func (s *Server) handleCreateBrand(w http.ResponseWriter, r *http.Request) {
	var brand models.Brand
	if err := json.NewDecoder(r.Body).Decode(&brand); err != nil {
		writeBadRequest(w, "invalid request body: %v", err)
		return
	}
	if brand.BrandName == "" {
		writeBadRequest(w, "brandName is required")
		return
	}

	resp, err := s.app.Backend.CreateBrand(r.Context(), brand)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConfigureBrand(w http.ResponseWriter, r *http.Request) {
	var req backend.ConfigureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: %v", err)
		return
	}
	if req.BrandName == "" {
		writeBadRequest(w, "brandName is required")
		return
	}

	resp, err := s.app.Backend.ConfigureBrand(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type brandNameRequest struct {
	BrandName string `json:"brandName"`
}

func (s *Server) handleDeleteBrand(w http.ResponseWriter, r *http.Request) {
	var req brandNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BrandName == "" {
		writeBadRequest(w, "brandName is required")
		return
	}

	if err := s.app.Backend.DeleteBrand(r.Context(), req.BrandName); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAssignUsers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BrandName string   `json:"brandName"`
		Users     []string `json:"users"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BrandName == "" {
		writeBadRequest(w, "brandName is required")
		return
	}

	resp, err := s.app.Backend.AssignUsers(r.Context(), req.BrandName, req.Users)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		Brands []string `json:"brands"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	names := req.Brands
	if len(names) == 0 {
		resolution, err := s.app.Brands.Resolve(ctx, userFrom(r))
		if err != nil {
			writeError(w, err)
			return
		}
		names = brands.Names(resolution.Brands)
	}

	token, err := s.app.Mentions.Refresh(ctx, names)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"token": token})
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	var req brandNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BrandName == "" {
		writeBadRequest(w, "brandName is required")
		return
	}

	posts, err := s.app.Mentions.CollectAndPoll(r.Context(), req.BrandName)
	if err != nil {
		writeError(w, err)
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}
	writeJSON(w, http.StatusOK, mentionsResponse{Posts: posts, Total: len(posts), Token: s.app.Mentions.Token()})
}

func (s *Server) handleBrandSearch(w http.ResponseWriter, r *http.Request) {
	var req brandNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BrandName == "" {
		writeBadRequest(w, "brandName is required")
		return
	}

	summary, err := s.app.Backend.RunBrandSearch(r.Context(), req.BrandName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary": summary,
		"total":   summary.Total(),
	})
}

type groupsResponse struct {
	Brand  *models.Brand         `json:"brand,omitempty"`
	Groups []models.KeywordGroup `json:"groups"`
}

// fetchBrand loads the caller's view of one brand by name.
func (s *Server) fetchBrand(r *http.Request, brandName string) (*models.Brand, error) {
	resolution, err := s.app.Brands.Resolve(r.Context(), userFrom(r))
	if err != nil {
		return nil, err
	}
	for i := range resolution.Brands {
		if resolution.Brands[i].BrandName == brandName {
			return &resolution.Brands[i], nil
		}
	}
	return nil, &backend.APIError{
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf("brand %q not found", brandName),
	}
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	brandName := r.URL.Query().Get("brand")
	if brandName == "" {
		writeBadRequest(w, "brand is required")
		return
	}

	brand, err := s.fetchBrand(r, brandName)
	if err != nil {
		writeError(w, err)
		return
	}

	groups := s.app.Groups.Reconcile(r.Context(), brand)
	writeJSON(w, http.StatusOK, groupsResponse{Groups: groups})
}

func (s *Server) handleGroupSave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BrandName string              `json:"brandName"`
		Group     models.KeywordGroup `json:"group"`
		OldName   string              `json:"oldName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BrandName == "" {
		writeBadRequest(w, "brandName is required")
		return
	}

	brand, err := s.fetchBrand(r, req.BrandName)
	if err != nil {
		writeError(w, err)
		return
	}

	updated, groups, err := s.app.Groups.Save(r.Context(), brand, req.Group, req.OldName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groupsResponse{Brand: updated, Groups: groups})
}

type groupNameRequest struct {
	BrandName string `json:"brandName"`
	Name      string `json:"name"`
}

func (s *Server) handleGroupDelete(w http.ResponseWriter, r *http.Request) {
	var req groupNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BrandName == "" || req.Name == "" {
		writeBadRequest(w, "brandName and name are required")
		return
	}

	brand, err := s.fetchBrand(r, req.BrandName)
	if err != nil {
		writeError(w, err)
		return
	}

	updated, groups, err := s.app.Groups.Delete(r.Context(), brand, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groupsResponse{Brand: updated, Groups: groups})
}

func (s *Server) handleGroupDuplicate(w http.ResponseWriter, r *http.Request) {
	var req groupNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BrandName == "" || req.Name == "" {
		writeBadRequest(w, "brandName and name are required")
		return
	}

	brand, err := s.fetchBrand(r, req.BrandName)
	if err != nil {
		writeError(w, err)
		return
	}

	updated, groups, err := s.app.Groups.Duplicate(r.Context(), brand, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groupsResponse{Brand: updated, Groups: groups})
}

func (s *Server) handleGroupPause(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BrandName string `json:"brandName"`
		Name      string `json:"name"`
		Paused    bool   `json:"paused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BrandName == "" || req.Name == "" {
		writeBadRequest(w, "brandName and name are required")
		return
	}

	brand, err := s.fetchBrand(r, req.BrandName)
	if err != nil {
		writeError(w, err)
		return
	}

	updated, groups, err := s.app.Groups.SetPaused(r.Context(), brand, req.Name, req.Paused)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groupsResponse{Brand: updated, Groups: groups})
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var values []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func intersect(names, requested []string) []string {
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	var kept []string
	for _, n := range requested {
		if allowed[n] {
			kept = append(kept, n)
		}
	}
	return kept
}
