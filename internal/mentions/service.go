package mentions

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandlens/brandlens/internal/backend"
	"github.com/brandlens/brandlens/internal/metrics"
	"github.com/brandlens/brandlens/internal/models"
)

// API is the slice of the backend client the mention service depends on.
type API interface {
	Posts(ctx context.Context, q backend.PostQuery) ([]json.RawMessage, error)
	UserPosts(ctx context.Context, email string, limit int, sort string) ([]json.RawMessage, error)
	RunSearch(ctx context.Context, brandName string) error
}

// Service loads and refreshes the mention feed. Every user-initiated refresh
// bumps a monotonically increasing reload token; callers that race an older
// fetch against a newer one discard responses whose token is no longer
// current, so the latest user intent always wins.
type Service struct {
	api          API
	fetchLimit   int
	userLimit    int
	pollAttempts int
	pollDelay    time.Duration

	reloadToken atomic.Uint64
}

// NewService creates a mention service over the backend client.
func NewService(client API, fetchLimit, userLimit, pollAttempts int, pollDelay time.Duration) *Service {
	if fetchLimit <= 0 {
		fetchLimit = 100
	}
	if userLimit <= 0 {
		userLimit = 200
	}
	if pollAttempts < 1 {
		pollAttempts = 1
	}
	return &Service{
		api:          client,
		fetchLimit:   fetchLimit,
		userLimit:    userLimit,
		pollAttempts: pollAttempts,
		pollDelay:    pollDelay,
	}
}

// Token returns the current reload token.
func (s *Service) Token() uint64 {
	return s.reloadToken.Load()
}

// Bump advances the reload token and returns the new value. Responses
// carrying an older token must be discarded by the caller.
func (s *Service) Bump() uint64 {
	return s.reloadToken.Add(1)
}

// Stale reports whether a fetch started under token has been superseded.
func (s *Service) Stale(token uint64) bool {
	return token != s.reloadToken.Load()
}

// LoadPosts assembles the feed for a user across brandNames, sorted newest
// first. Non-admin users get the consolidated user-posts endpoint first;
// when it fails or comes back empty the service falls back to a per-brand
// fan-out. Admin listings skip straight to the fan-out, since an admin need
// not be assigned to the brands it sees. Per-brand failures degrade to an
// empty slice for that brand rather than failing the whole load.
func (s *Service) LoadPosts(ctx context.Context, user models.User, brandNames []string, usedAdminAll bool) ([]models.Post, error) {
	if len(brandNames) == 0 {
		return nil, nil
	}

	var posts []models.Post
	if !usedAdminAll && !user.IsAdmin() && user.Email != "" {
		raws, err := s.api.UserPosts(ctx, user.Email, s.userLimit, "desc")
		if err != nil {
			logrus.Warnf("user-posts endpoint failed, falling back to per-brand fetch: %v", err)
		} else {
			posts = NormalizePosts(raws, "")
		}
	}

	if len(posts) == 0 {
		posts = s.fanOut(ctx, brandNames)
	}

	SortByRecency(posts)
	return posts, nil
}

// fanOut fetches every brand's posts concurrently and merges the results,
// tagging each post with its brand when the raw record lacks one.
func (s *Service) fanOut(ctx context.Context, brandNames []string) []models.Post {
	var wg sync.WaitGroup
	results := make(chan []models.Post, len(brandNames))

	for _, brandName := range brandNames {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()

			raws, err := s.api.Posts(ctx, backend.PostQuery{
				BrandName: name,
				Limit:     s.fetchLimit,
				Sort:      "desc",
			})
			if err != nil {
				logrus.Warnf("Failed to load posts for %s: %v", name, err)
				return
			}
			results <- NormalizePosts(raws, name)
		}(brandName)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var merged []models.Post
	for batch := range results {
		merged = append(merged, batch...)
	}
	return merged
}

// FetchBrandPosts loads one brand's posts with optional platform/keyword
// narrowing, used by the analytics view.
func (s *Service) FetchBrandPosts(ctx context.Context, brandName, platform, keyword string) ([]models.Post, error) {
	raws, err := s.api.Posts(ctx, backend.PostQuery{
		BrandName: brandName,
		Limit:     s.fetchLimit,
		Sort:      "desc",
		Platform:  platform,
		Keyword:   keyword,
	})
	if err != nil {
		return nil, err
	}
	posts := NormalizePosts(raws, brandName)
	SortByRecency(posts)
	return posts, nil
}

// CollectAndPoll triggers a collection run for a brand and polls for results
// a bounded number of times with a fixed delay, stopping as soon as any poll
// returns a non-empty batch. The trigger itself is best-effort: a failed run
// still polls, since a previous run may already have produced data.
func (s *Service) CollectAndPoll(ctx context.Context, brandName string) ([]models.Post, error) {
	if err := s.api.RunSearch(ctx, brandName); err != nil {
		logrus.Warnf("Search trigger for %s failed: %v", brandName, err)
	}

	var posts []models.Post
	var err error
	for attempt := 0; attempt < s.pollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return posts, ctx.Err()
			case <-time.After(s.pollDelay):
			}
		}

		metrics.PollAttempts.Inc()
		posts, err = s.FetchBrandPosts(ctx, brandName, "", "")
		if err != nil {
			logrus.Warnf("Poll %d for %s failed: %v", attempt+1, brandName, err)
			continue
		}
		if len(posts) > 0 {
			return posts, nil
		}
	}
	return posts, err
}

// Refresh re-runs collection for the target brands concurrently and bumps
// the reload token so in-flight loads under the old token are discarded.
// The first trigger failure is reported; remaining triggers still run.
func (s *Service) Refresh(ctx context.Context, brandNames []string) (uint64, error) {
	var wg sync.WaitGroup
	errs := make(chan error, len(brandNames))

	for _, brandName := range brandNames {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if err := s.api.RunSearch(ctx, name); err != nil {
				errs <- err
			}
		}(brandName)
	}
	wg.Wait()
	close(errs)

	token := s.Bump()
	if err := <-errs; err != nil {
		return token, err
	}
	return token, nil
}
