package analytics

import (
	"math"
	"sort"

	"github.com/brandlens/brandlens/internal/models"
)

// Summary holds the aggregate counts for one batch of posts. Every post in
// the batch lands in exactly one platform bucket and exactly one keyword
// bucket, so both count maps always sum to Total.
type Summary struct {
	Total      int            `json:"total"`
	ByPlatform map[string]int `json:"byPlatform"`
	ByKeyword  map[string]int `json:"byKeyword"`
	Sentiment  map[string]int `json:"sentiment"`
}

// KeywordCount is one row of the top-keywords ranking.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// TimelinePoint is one calendar day's mention count.
type TimelinePoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Aggregate computes the summary counts for posts. Posts without a platform
// are bucketed under the display fallback, and posts without a keyword get
// their own empty-string bucket rather than being dropped.
func Aggregate(posts []models.Post) Summary {
	s := Summary{
		Total:      len(posts),
		ByPlatform: make(map[string]int),
		ByKeyword:  make(map[string]int),
		Sentiment:  make(map[string]int),
	}
	for _, p := range posts {
		s.ByPlatform[p.DisplayPlatform()]++
		s.ByKeyword[p.Keyword]++
		s.Sentiment[p.Sentiment()]++
	}
	return s
}

// PlatformShares converts platform counts to percentages rounded to one
// decimal place. A zero total yields a zero share for every platform.
func PlatformShares(byPlatform map[string]int) map[string]float64 {
	total := 0
	for _, n := range byPlatform {
		total += n
	}
	shares := make(map[string]float64, len(byPlatform))
	for platform, n := range byPlatform {
		if total == 0 {
			shares[platform] = 0
			continue
		}
		shares[platform] = math.Round(float64(n)/float64(total)*1000) / 10
	}
	return shares
}

// TopKeywords ranks the batch's keywords by mention count descending and
// keeps the first limit entries. Ties keep the order keywords first appear
// in the batch.
func TopKeywords(posts []models.Post, limit int) []KeywordCount {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for _, p := range posts {
		if _, seen := counts[p.Keyword]; !seen {
			firstSeen[p.Keyword] = len(firstSeen)
		}
		counts[p.Keyword]++
	}
	ranked := make([]KeywordCount, 0, len(counts))
	for keyword, n := range counts {
		ranked = append(ranked, KeywordCount{Keyword: keyword, Count: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return firstSeen[ranked[i].Keyword] < firstSeen[ranked[j].Keyword]
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Timeline buckets posts by local calendar day of their creation time and
// returns the most recent days in ascending date order. Posts without a
// creation timestamp are excluded; a fetch time is not a publication time.
func Timeline(posts []models.Post, days int) []TimelinePoint {
	counts := make(map[string]int)
	for _, p := range posts {
		if p.CreatedAt == nil {
			continue
		}
		counts[p.CreatedAt.Local().Format("2006-01-02")]++
	}

	dates := make([]string, 0, len(counts))
	for d := range counts {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if days > 0 && len(dates) > days {
		dates = dates[len(dates)-days:]
	}

	points := make([]TimelinePoint, 0, len(dates))
	for _, d := range dates {
		points = append(points, TimelinePoint{Date: d, Count: counts[d]})
	}
	return points
}

// EngagementAverage returns the mean engagement score across posts that
// carry one, or zero when none do.
func EngagementAverage(posts []models.Post) float64 {
	var sum float64
	var n int
	for _, p := range posts {
		if p.Analysis == nil {
			continue
		}
		sum += p.Analysis.EngagementScore
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Round(sum/float64(n)*10) / 10
}
