package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/brandlens/brandlens/internal/metrics"
	"github.com/brandlens/brandlens/internal/models"
)

type tokenKey struct{}

// WithToken attaches a per-request bearer token to the context. The HTTP
// layer mirrors it from the caller's auth cookie.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token carried by ctx, if any.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Client talks to the external collection backend. It owns request shaping,
// auth header mirroring, rate limiting and error-message extraction; the
// backend's internals are not this system's concern.
type Client struct {
	baseURL      string
	defaultToken string
	client       *resty.Client
	limiter      *rate.Limiter
}

// NewClient creates a backend client rooted at baseURL. defaultToken is used
// when the request context carries no token of its own.
func NewClient(baseURL, defaultToken string, rps float64, burst int) *Client {
	if rps <= 0 {
		rps = 10
	}
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		defaultToken: defaultToken,
		client:       resty.New().SetTimeout(30 * time.Second),
		limiter:      rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json")
	token := TokenFrom(ctx)
	if token == "" {
		token = c.defaultToken
	}
	if token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do runs one round-trip and decodes the JSON response into out (when out is
// non-nil). Non-2xx responses become an *APIError carrying the extracted
// message.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	start := time.Now()
	err := c.doOnce(ctx, method, endpoint, body, out)
	metrics.ObserveBackend(endpoint, start, err)
	return err
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, body, out interface{}) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	if body != nil {
		req.SetBody(body)
	}

	fullURL := c.baseURL + endpoint

	var resp *resty.Response
	switch method {
	case "GET":
		resp, err = req.Get(fullURL)
	case "POST":
		resp, err = req.Post(fullURL)
	default:
		return fmt.Errorf("unsupported method %s", method)
	}
	if err != nil {
		return fmt.Errorf("backend request failed (%s): %w", endpoint, err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode(),
			Message:    extractMessage(resp.StatusCode(), resp.Status(), resp.Body()),
		}
		logrus.Debugf("Backend error on %s: %v", endpoint, apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode backend response (%s): %w", endpoint, err)
	}
	return nil
}

// cacheBust appends the timestamp query parameter the backend expects on
// dashboard GETs so intermediaries never serve stale data.
func cacheBust(values url.Values) url.Values {
	values.Set("_", fmt.Sprintf("%d", time.Now().UnixMilli()))
	return values
}

type brandsResponse struct {
	Brands []models.Brand `json:"brands"`
}

// AllBrands lists every brand. Admin-scoped; non-admin tokens are rejected
// by the backend with an authorization error.
func (c *Client) AllBrands(ctx context.Context) ([]models.Brand, error) {
	var out brandsResponse
	if err := c.do(ctx, "GET", "/api/brands/all", nil, &out); err != nil {
		return nil, err
	}
	return out.Brands, nil
}

// BrandsForUser lists the brands a user may monitor.
func (c *Client) BrandsForUser(ctx context.Context, email string) ([]models.Brand, error) {
	var out brandsResponse
	endpoint := "/api/brands/user/" + url.PathEscape(email)
	if err := c.do(ctx, "GET", endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out.Brands, nil
}

// AssignedBrands lists the brands assigned to a user, with assignment
// details for chips. Independent of the primary listing; callers degrade
// when it fails.
func (c *Client) AssignedBrands(ctx context.Context, email string) ([]models.Brand, error) {
	var out brandsResponse
	endpoint := "/api/brands/assigned/" + url.PathEscape(email)
	if err := c.do(ctx, "GET", endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out.Brands, nil
}

// CreateBrandResponse is the envelope returned by brand creation.
type CreateBrandResponse struct {
	Success bool          `json:"success"`
	Brand   *models.Brand `json:"brand,omitempty"`
	Message string        `json:"message,omitempty"`
}

// CreateBrand creates a new brand, including any initial user assignments.
func (c *Client) CreateBrand(ctx context.Context, brand models.Brand) (*CreateBrandResponse, error) {
	var out CreateBrandResponse
	if err := c.do(ctx, "POST", "/api/brands/create", brand, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfigureRequest is the whole-document replace payload for a brand's
// monitoring configuration. KeywordGroups carries backend-shaped groups
// only; UI-only group fields never cross this boundary.
type ConfigureRequest struct {
	BrandName     string                `json:"brandName"`
	Keywords      []string              `json:"keywords,omitempty"`
	Platforms     []string              `json:"platforms,omitempty"`
	Frequency     string                `json:"frequency,omitempty"`
	AvatarURL     string                `json:"avatarUrl,omitempty"`
	KeywordGroups []models.KeywordGroup `json:"keywordGroups,omitempty"`
}

// ConfigureResponse reflects the fully updated brand document when the
// backend supports it.
type ConfigureResponse struct {
	Success bool          `json:"success"`
	Brand   *models.Brand `json:"brand,omitempty"`
	Message string        `json:"message,omitempty"`
}

// ConfigureBrand replaces a brand's monitoring configuration. The response's
// brand, when present, is authoritative and must supersede any client-held
// snapshot.
func (c *Client) ConfigureBrand(ctx context.Context, req ConfigureRequest) (*ConfigureResponse, error) {
	var out ConfigureResponse
	if err := c.do(ctx, "POST", "/api/brands/configure", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteBrand removes a brand by name.
func (c *Client) DeleteBrand(ctx context.Context, brandName string) error {
	payload := map[string]string{"brandName": brandName}
	return c.do(ctx, "POST", "/api/brands/delete", payload, nil)
}

// AssignUsersResponse is the envelope returned by a user assignment call.
type AssignUsersResponse struct {
	Success       bool          `json:"success"`
	Brand         *models.Brand `json:"brand,omitempty"`
	AssignedUsers []string      `json:"assignedUsers,omitempty"`
}

// AssignUsers grants the given emails access to a brand. Emails are
// normalized (trimmed, lower-cased) before sending.
func (c *Client) AssignUsers(ctx context.Context, brandName string, users []string) (*AssignUsersResponse, error) {
	normalized := make([]string, 0, len(users))
	for _, u := range users {
		email := strings.ToLower(strings.TrimSpace(u))
		if email != "" {
			normalized = append(normalized, email)
		}
	}
	payload := map[string]interface{}{"brandName": brandName, "users": normalized}
	var out AssignUsersResponse
	if err := c.do(ctx, "POST", "/api/brands/assign-users", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunSearch triggers a collection run for a brand. Only success or failure
// is relied upon.
func (c *Client) RunSearch(ctx context.Context, brandName string) error {
	payload := map[string]string{"brandName": brandName}
	return c.do(ctx, "POST", "/api/search/run", payload, nil)
}

// RunBrandSearch triggers a full search across all of a brand's configured
// keywords and returns the per-platform summary.
func (c *Client) RunBrandSearch(ctx context.Context, brandName string) (models.SearchSummary, error) {
	payload := map[string]string{"brandName": brandName}
	var out struct {
		Summary models.SearchSummary `json:"summary"`
	}
	if err := c.do(ctx, "POST", "/api/search/brandsearch", payload, &out); err != nil {
		return models.SearchSummary{}, err
	}
	return out.Summary, nil
}

// PostQuery selects which mentions to fetch.
type PostQuery struct {
	BrandName string
	Limit     int
	Sort      string
	Platform  string
	Keyword   string
}

// Posts fetches raw mention payloads for a brand. Records are returned
// undecoded: upstream collectors are flaky and heterogeneous, so coercion
// into the canonical shape happens in the mentions normalizer, not here.
func (c *Client) Posts(ctx context.Context, q PostQuery) ([]json.RawMessage, error) {
	values := url.Values{}
	values.Set("brandName", q.BrandName)
	if q.Limit > 0 {
		values.Set("limit", fmt.Sprintf("%d", q.Limit))
	}
	if q.Sort != "" {
		values.Set("sort", q.Sort)
	}
	if q.Platform != "" {
		values.Set("platform", q.Platform)
	}
	if q.Keyword != "" {
		values.Set("keyword", q.Keyword)
	}
	var out struct {
		Data []json.RawMessage `json:"data"`
	}
	endpoint := "/api/search/data?" + cacheBust(values).Encode()
	if err := c.do(ctx, "GET", endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Keywords returns the flat keyword list the backend holds for a brand.
func (c *Client) Keywords(ctx context.Context, brandName string) ([]string, error) {
	values := url.Values{}
	values.Set("brandName", brandName)
	var out struct {
		Keywords []string `json:"keywords"`
	}
	endpoint := "/api/search/keywords?" + cacheBust(values).Encode()
	if err := c.do(ctx, "GET", endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out.Keywords, nil
}

// UserPosts fetches the consolidated mention feed across every brand the
// user can see.
func (c *Client) UserPosts(ctx context.Context, email string, limit int, sort string) ([]json.RawMessage, error) {
	values := url.Values{}
	values.Set("email", email)
	if limit > 0 {
		values.Set("limit", fmt.Sprintf("%d", limit))
	}
	if sort != "" {
		values.Set("sort", sort)
	}
	var out struct {
		Data []json.RawMessage `json:"data"`
	}
	endpoint := "/api/data/user-posts?" + cacheBust(values).Encode()
	if err := c.do(ctx, "GET", endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}
