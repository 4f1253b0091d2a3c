package mentions

import (
	"strings"

	"github.com/brandlens/brandlens/internal/models"
)

// Inbox tabs that narrow by sentiment. Any other tab value keeps all posts.
const (
	TabActionable    = "actionable"
	TabNonActionable = "non-actionable"
)

// Criteria combines every inbox filter into one predicate. Empty sets and
// strings match everything; a nil Window disables time filtering.
type Criteria struct {
	Brands   []string
	Window   *Window
	Search   string
	Channels []string
	Tab      string
}

// Filter returns the posts passing every criterion. Checks run in cheapest-
// first order and short-circuit on the first failure. The input order is
// preserved; ordering is established once at fetch time.
func Filter(posts []models.Post, c Criteria) []models.Post {
	brandSet := toSet(c.Brands, false)
	channelSet := toSet(c.Channels, true)
	search := strings.ToLower(strings.TrimSpace(c.Search))

	filtered := make([]models.Post, 0, len(posts))
	for i := range posts {
		post := &posts[i]

		if len(brandSet) > 0 && !brandSet[post.Brand.BrandName] {
			continue
		}
		if c.Window != nil && !c.Window.Contains(post) {
			continue
		}
		if search != "" && !matchesSearch(post, search) {
			continue
		}
		if len(channelSet) > 0 && !channelSet[strings.ToLower(post.Platform)] {
			continue
		}
		if !matchesTab(post, c.Tab) {
			continue
		}

		filtered = append(filtered, *post)
	}
	return filtered
}

// matchesSearch does a case-insensitive substring match over the post's
// text, description and brand name.
func matchesSearch(post *models.Post, search string) bool {
	haystack := strings.ToLower(post.Content.Text + " " + post.Content.Description + " " + post.Brand.BrandName)
	return strings.Contains(haystack, search)
}

// matchesTab applies the sentiment predicate: actionable keeps negative
// mentions, non-actionable keeps the complement.
func matchesTab(post *models.Post, tab string) bool {
	switch tab {
	case TabActionable:
		return post.Sentiment() == models.SentimentNegative
	case TabNonActionable:
		return post.Sentiment() != models.SentimentNegative
	default:
		return true
	}
}

// FilterByGroup keeps the posts whose matched keyword belongs to the group's
// keyword set (exact match or substring, case-insensitive). Posts without a
// keyword never match a group.
func FilterByGroup(posts []models.Post, group models.KeywordGroup) []models.Post {
	if len(group.Keywords) == 0 {
		return nil
	}

	filtered := make([]models.Post, 0, len(posts))
	for i := range posts {
		post := &posts[i]
		if post.Keyword == "" {
			continue
		}
		postKeyword := strings.ToLower(strings.TrimSpace(post.Keyword))
		for _, keyword := range group.Keywords {
			k := strings.ToLower(strings.TrimSpace(keyword))
			if postKeyword == k || strings.Contains(postKeyword, k) {
				filtered = append(filtered, *post)
				break
			}
		}
	}
	return filtered
}

func toSet(values []string, lower bool) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if lower {
			v = strings.ToLower(v)
		}
		set[v] = true
	}
	return set
}
