// Package server exposes the dashboard's HTTP API and the background
// orchestration behind it.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandlens/brandlens/internal/analytics"
	"github.com/brandlens/brandlens/internal/backend"
	"github.com/brandlens/brandlens/internal/brands"
	"github.com/brandlens/brandlens/internal/cache"
	"github.com/brandlens/brandlens/internal/config"
	"github.com/brandlens/brandlens/internal/groups"
	"github.com/brandlens/brandlens/internal/mentions"
	"github.com/brandlens/brandlens/internal/models"
	"github.com/brandlens/brandlens/internal/notifications"
)

// topKeywordLimit caps the keyword ranking shown in analytics and digests.
const topKeywordLimit = 10

// App wires the backend client and the domain services together. It also
// backs the scheduler's digest and refresh runs, which authenticate with
// the service's own token rather than a user's.
type App struct {
	Config     *config.Config
	Backend    *backend.Client
	Mentions   *mentions.Service
	Groups     *groups.Reconciler
	Brands     *brands.Resolver
	Notifier   notifications.Sender
	DigestDays int
}

// NewApp assembles the application services around a backend client.
func NewApp(cfg *config.Config, client *backend.Client, store cache.Store, notifier notifications.Sender) *App {
	return &App{
		Config: cfg,
		Backend: client,
		Mentions: mentions.NewService(client, cfg.FetchLimit, cfg.UserPostLimit,
			cfg.PollAttempts, time.Duration(cfg.PollDelaySec)*time.Second),
		Groups:     groups.NewReconciler(client, store),
		Brands:     brands.NewResolver(client),
		Notifier:   notifier,
		DigestDays: 7,
	}
}

// RunDigest builds and delivers the periodic digest across every brand the
// service token can see.
func (a *App) RunDigest(ctx context.Context, period string) error {
	all, err := a.Backend.AllBrands(ctx)
	if err != nil {
		return fmt.Errorf("failed to list brands for digest: %w", err)
	}

	days := a.DigestDays
	if period == "daily" {
		days = 1
	}

	digest := &notifications.Digest{
		Period:      period,
		GeneratedAt: time.Now().UTC(),
	}
	window := mentions.NewWindow(days, models.StartOfDay, models.EndOfDay, time.Now())

	for _, brand := range all {
		posts, err := a.Mentions.FetchBrandPosts(ctx, brand.BrandName, "", "")
		if err != nil {
			logrus.Warnf("Skipping %s in digest, fetch failed: %v", brand.BrandName, err)
			continue
		}
		posts = mentions.Filter(posts, mentions.Criteria{Window: &window})

		summary := analytics.Aggregate(posts)
		digest.Brands = append(digest.Brands, notifications.BrandDigest{
			BrandName:   brand.BrandName,
			Summary:     summary,
			TopKeywords: analytics.TopKeywords(posts, topKeywordLimit),
		})

		a.maybeAlert(brand.BrandName, summary)
	}

	if len(digest.Brands) == 0 {
		logrus.Info("No brand data available, skipping digest delivery")
		return nil
	}
	return a.Notifier.SendDigest(digest)
}

// maybeAlert raises a webhook alert when a brand's window is dominated by
// negative mentions.
func (a *App) maybeAlert(brandName string, summary analytics.Summary) {
	negative := summary.Sentiment[models.SentimentNegative]
	if summary.Total < 10 || negative*2 <= summary.Total {
		return
	}

	alert := notifications.NewAlert(brandName,
		fmt.Sprintf("Negative mention spike for %s", brandName),
		fmt.Sprintf("%d of %d recent mentions are negative", negative, summary.Total))
	if err := a.Notifier.SendAlert(alert); err != nil {
		logrus.Errorf("Failed to send alert %s: %v", alert.ID, err)
	}
}

// RefreshBrands re-triggers collection for the brands configured at the
// given monitoring interval. Brands with an empty or unrecognized interval
// ride the default one.
func (a *App) RefreshBrands(ctx context.Context, frequency string) error {
	all, err := a.Backend.AllBrands(ctx)
	if err != nil {
		return fmt.Errorf("failed to list brands for refresh: %w", err)
	}
	var due []models.Brand
	for _, brand := range all {
		if models.NormalizeFrequency(brand.Frequency) == frequency {
			due = append(due, brand)
		}
	}
	if len(due) == 0 {
		return nil
	}
	_, err = a.Mentions.Refresh(ctx, brands.Names(due))
	return err
}
