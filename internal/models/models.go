package models

import (
	"strings"
	"time"
)

// Sentiment classifications assigned by the backend's analysis pipeline.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// DefaultPlatform is the display fallback for posts without a recognizable
// platform tag.
const DefaultPlatform = "news"

// DefaultFrequency is the monitoring interval used when a brand has none set.
const DefaultFrequency = "30m"

// Frequencies lists the supported monitoring intervals.
var Frequencies = []string{"5m", "10m", "30m", "1h", "2h"}

// NormalizeFrequency maps a brand's configured interval onto a supported
// one, falling back to the default for empty or unrecognized values.
func NormalizeFrequency(frequency string) string {
	for _, f := range Frequencies {
		if frequency == f {
			return f
		}
	}
	return DefaultFrequency
}

// BrandRef is the brand reference embedded in a post.
type BrandRef struct {
	BrandName string `json:"brandName"`
}

// Content is the structured body of a mention.
type Content struct {
	Text        string `json:"text,omitempty"`
	Description string `json:"description,omitempty"`
	MediaURL    string `json:"mediaUrl,omitempty"`
}

// Metrics holds optional engagement counts. Nil means the platform did not
// report the value, which is distinct from zero.
type Metrics struct {
	Likes    *int `json:"likes,omitempty"`
	Comments *int `json:"comments,omitempty"`
	Shares   *int `json:"shares,omitempty"`
	Views    *int `json:"views,omitempty"`
}

// Analysis is the backend's sentiment classification for a post.
type Analysis struct {
	Sentiment       string  `json:"sentiment,omitempty"`
	EngagementScore float64 `json:"engagementScore,omitempty"`
}

// Author identifies who published a mention.
type Author struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Post is a normalized social-media mention. Posts are read-only on this
// side of the API boundary: they are filtered and aggregated in memory and
// discarded on the next fetch.
type Post struct {
	ID        string     `json:"id"`
	Brand     BrandRef   `json:"brand"`
	Platform  string     `json:"platform,omitempty"`
	Keyword   string     `json:"keyword,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	FetchedAt *time.Time `json:"fetchedAt,omitempty"`
	Content   Content    `json:"content"`
	Metrics   *Metrics   `json:"metrics,omitempty"`
	Analysis  *Analysis  `json:"analysis,omitempty"`
	Author    *Author    `json:"author,omitempty"`
	SourceURL string     `json:"sourceUrl,omitempty"`
}

// Timestamp returns the post's origin timestamp, preferring createdAt and
// falling back to fetchedAt. Nil means the post has no resolvable date and
// must not be excluded by time filters.
func (p *Post) Timestamp() *time.Time {
	if p.CreatedAt != nil {
		return p.CreatedAt
	}
	return p.FetchedAt
}

// SortTime is the timestamp used for ordering. Posts without any date sort
// as epoch zero, placing them last under descending order.
func (p *Post) SortTime() time.Time {
	if ts := p.Timestamp(); ts != nil {
		return *ts
	}
	return time.Time{}
}

// DisplayPlatform returns the platform tag for grouping and badges, falling
// back to the default category for unknown platforms.
func (p *Post) DisplayPlatform() string {
	if p.Platform == "" {
		return DefaultPlatform
	}
	return p.Platform
}

// Sentiment returns the post's sentiment tag lower-cased, or neutral when
// the post carries no analysis. The backend is not consistent about casing.
func (p *Post) Sentiment() string {
	if p.Analysis == nil || p.Analysis.Sentiment == "" {
		return SentimentNeutral
	}
	return strings.ToLower(p.Analysis.Sentiment)
}

// KeywordGroup is a named partition of a brand's keyword set. Only Name,
// Keywords and AssignedUsers are persisted by the backend; Platforms,
// Countries, Languages and Paused live in the local scratch cache and are
// merged back in on every load.
type KeywordGroup struct {
	Name          string   `json:"name"`
	Keywords      []string `json:"keywords"`
	AssignedUsers []string `json:"assignedUsers,omitempty"`
	Platforms     []string `json:"platforms,omitempty"`
	Countries     []string `json:"countries,omitempty"`
	Languages     []string `json:"languages,omitempty"`
	Paused        bool     `json:"paused,omitempty"`
}

// BackendShape strips a group down to the fields the backend schema stores.
func (g KeywordGroup) BackendShape() KeywordGroup {
	keywords := g.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	users := g.AssignedUsers
	if users == nil {
		users = []string{}
	}
	return KeywordGroup{Name: g.Name, Keywords: keywords, AssignedUsers: users}
}

// Brand is a monitored entity. BrandName is the identifier used throughout
// the client; a held copy is stale after any mutating call and must be
// replaced by the mutation's response or refetched.
type Brand struct {
	BrandName     string         `json:"brandName"`
	Keywords      []string       `json:"keywords,omitempty"`
	Platforms     []string       `json:"platforms,omitempty"`
	Frequency     string         `json:"frequency,omitempty"`
	AssignedUsers []string       `json:"assignedUsers,omitempty"`
	KeywordGroups []KeywordGroup `json:"keywordGroups,omitempty"`
	AvatarURL     string         `json:"avatarUrl,omitempty"`
	UpdatedAt     *time.Time     `json:"updatedAt,omitempty"`
}

// User is the authenticated dashboard user.
type User struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// IsAdmin reports whether the user may attempt admin-scoped brand listings.
func (u User) IsAdmin() bool { return u.Role == "admin" }

// SearchSummary is the per-platform count envelope returned by a full brand
// search run; it is surfaced to the user verbatim.
type SearchSummary struct {
	YouTube int `json:"youtube"`
	Twitter int `json:"twitter"`
	Reddit  int `json:"reddit"`
}

// Total sums the per-platform counts.
func (s SearchSummary) Total() int { return s.YouTube + s.Twitter + s.Reddit }
