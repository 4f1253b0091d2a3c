// Package mentions holds the mention pipeline: best-effort normalization of
// raw backend payloads, time-window and multi-criteria filtering, and the
// fetch service that keeps the visible feed consistent with the latest user
// intent.
package mentions

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/brandlens/brandlens/internal/models"
)

// Timestamp layouts seen from upstream collectors.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizePosts coerces heterogeneous post payloads into canonical Post
// records. It never fails: upstream collectors are flaky and partial data is
// common, so records missing identity fields are kept and land in "unknown"
// buckets rather than being dropped. fallbackBrand fills in the brand
// reference when the raw record carries none (per-brand fetches).
func NormalizePosts(raws []json.RawMessage, fallbackBrand string) []models.Post {
	posts := make([]models.Post, 0, len(raws))
	for _, raw := range raws {
		posts = append(posts, normalizePost(raw, fallbackBrand))
	}
	return posts
}

func normalizePost(raw json.RawMessage, fallbackBrand string) models.Post {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		// Not even an object. Keep a placeholder so counts stay honest.
		return models.Post{Brand: models.BrandRef{BrandName: fallbackBrand}}
	}

	post := models.Post{
		ID:        firstString(fields, "id", "_id"),
		Platform:  stringField(fields, "platform"),
		Keyword:   stringField(fields, "keyword"),
		CreatedAt: timeField(fields, "createdAt"),
		FetchedAt: timeField(fields, "fetchedAt"),
		SourceURL: stringField(fields, "sourceUrl"),
	}

	post.Brand = brandField(fields, fallbackBrand)
	post.Content = contentField(fields)
	post.Author = authorField(fields)

	if raw, ok := fields["metrics"]; ok {
		var metrics models.Metrics
		if err := json.Unmarshal(raw, &metrics); err == nil {
			post.Metrics = &metrics
		}
	}
	if raw, ok := fields["analysis"]; ok {
		var analysis models.Analysis
		if err := json.Unmarshal(raw, &analysis); err == nil {
			post.Analysis = &analysis
		}
	}

	return post
}

// brandField accepts either a {brandName} object or a bare brand-name
// string, wrapping the latter.
func brandField(fields map[string]json.RawMessage, fallback string) models.BrandRef {
	if raw, ok := fields["brand"]; ok {
		var ref models.BrandRef
		if err := json.Unmarshal(raw, &ref); err == nil && ref.BrandName != "" {
			return ref
		}
		var name string
		if err := json.Unmarshal(raw, &name); err == nil && name != "" {
			return models.BrandRef{BrandName: name}
		}
	}
	if name := firstString(fields, "brandName"); name != "" {
		return models.BrandRef{BrandName: name}
	}
	return models.BrandRef{BrandName: fallback}
}

// contentField reads the structured content sub-object, falling back to a
// top-level text field some collectors emit. Absent text stays absent; the
// "no content" placeholder belongs to render time, not here.
func contentField(fields map[string]json.RawMessage) models.Content {
	var content models.Content
	if raw, ok := fields["content"]; ok {
		_ = json.Unmarshal(raw, &content)
	}
	if content.Text == "" {
		content.Text = stringField(fields, "text")
	}
	return content
}

// authorField accepts either an {id, name} object or a bare author string.
func authorField(fields map[string]json.RawMessage) *models.Author {
	raw, ok := fields["author"]
	if !ok {
		return nil
	}
	var author models.Author
	if err := json.Unmarshal(raw, &author); err == nil && (author.ID != "" || author.Name != "") {
		return &author
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil && name != "" {
		return &models.Author{Name: name}
	}
	return nil
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	return value
}

func firstString(fields map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		if value := stringField(fields, key); value != "" {
			return value
		}
	}
	return ""
}

func timeField(fields map[string]json.RawMessage, key string) *time.Time {
	raw, ok := fields[key]
	if !ok {
		return nil
	}

	var value string
	if err := json.Unmarshal(raw, &value); err == nil {
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, value); err == nil {
				return &ts
			}
		}
		return nil
	}

	// Some collectors emit epoch milliseconds.
	var millis int64
	if err := json.Unmarshal(raw, &millis); err == nil && millis > 0 {
		ts := time.UnixMilli(millis)
		return &ts
	}
	return nil
}

// SortByRecency orders posts newest-first. Missing timestamps sort as epoch
// zero and therefore land at the end. The sort is stable so fetch order
// breaks ties.
func SortByRecency(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].SortTime().After(posts[j].SortTime())
	})
}
