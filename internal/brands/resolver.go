// Package brands resolves which brands a dashboard user can see.
package brands

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/brandlens/brandlens/internal/models"
)

// Lister is the slice of the backend client the resolver reads from.
type Lister interface {
	AllBrands(ctx context.Context) ([]models.Brand, error)
	BrandsForUser(ctx context.Context, email string) ([]models.Brand, error)
	AssignedBrands(ctx context.Context, email string) ([]models.Brand, error)
}

// Resolution is the outcome of a visibility lookup. UsedAdminAll records
// whether the admin-wide listing actually served the request, which decides
// whether the mention feed may use the consolidated user endpoint.
type Resolution struct {
	Brands       []models.Brand
	Assigned     []models.Brand
	UsedAdminAll bool
}

// Resolver decides the brand list for a user.
type Resolver struct {
	api Lister
}

// NewResolver creates a resolver over the backend client.
func NewResolver(api Lister) *Resolver {
	return &Resolver{api: api}
}

// Resolve returns the brands visible to user. Admins get the full listing,
// degrading to their own user-scoped listing when the admin call fails (the
// backend decides admin status, not this client). Non-admins require an
// email. The assignment detail listing is fetched independently and never
// blocks the primary result.
func (r *Resolver) Resolve(ctx context.Context, user models.User) (*Resolution, error) {
	res := &Resolution{}

	if user.IsAdmin() {
		all, err := r.api.AllBrands(ctx)
		if err == nil {
			res.Brands = all
			res.UsedAdminAll = true
		} else {
			logrus.Warnf("Admin brand listing failed for %s, falling back to user scope: %v", user.Email, err)
		}
	}

	if !res.UsedAdminAll {
		if user.Email == "" {
			return nil, fmt.Errorf("cannot resolve brands without a user email")
		}
		own, err := r.api.BrandsForUser(ctx, user.Email)
		if err != nil {
			return nil, err
		}
		res.Brands = own
	}

	if user.Email != "" {
		assigned, err := r.api.AssignedBrands(ctx, user.Email)
		if err != nil {
			logrus.Debugf("Assigned-brand listing failed for %s: %v", user.Email, err)
		} else {
			res.Assigned = assigned
		}
	}

	return res, nil
}

// MatchSearch reports whether a brand matches a free-text search over its
// name and keywords.
func MatchSearch(brand models.Brand, query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(brand.BrandName), query) {
		return true
	}
	for _, k := range brand.Keywords {
		if strings.Contains(strings.ToLower(k), query) {
			return true
		}
	}
	return false
}

// Names extracts the brand names from a listing.
func Names(brands []models.Brand) []string {
	names := make([]string, 0, len(brands))
	for _, b := range brands {
		names = append(names, b.BrandName)
	}
	return names
}
