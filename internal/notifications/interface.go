package notifications

import (
	"time"

	"github.com/google/uuid"

	"github.com/brandlens/brandlens/internal/analytics"
)

// Digest is a periodic roll-up of mention activity across brands.
type Digest struct {
	Period      string        `json:"period"` // daily or weekly
	GeneratedAt time.Time     `json:"generatedAt"`
	Brands      []BrandDigest `json:"brands"`
}

// BrandDigest is one brand's slice of a digest.
type BrandDigest struct {
	BrandName   string                   `json:"brandName"`
	Summary     analytics.Summary        `json:"summary"`
	TopKeywords []analytics.KeywordCount `json:"topKeywords,omitempty"`
}

// TotalMentions sums mention counts across all brands in the digest.
func (d *Digest) TotalMentions() int {
	total := 0
	for _, b := range d.Brands {
		total += b.Summary.Total
	}
	return total
}

// Alert is a one-off notification about a single brand, such as a spike in
// negative mentions.
type Alert struct {
	ID        string    `json:"id"`
	BrandName string    `json:"brandName"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewAlert creates an alert with a fresh identifier.
func NewAlert(brandName, title, body string) *Alert {
	return &Alert{
		ID:        uuid.NewString(),
		BrandName: brandName,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
}

// Sender defines the contract for notification delivery.
type Sender interface {
	SendDigest(digest *Digest) error
	SendAlert(alert *Alert) error
}
