package brands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/brandlens/brandlens/internal/models"
)

// MockLister is a mock implementation of the brand listing API
type MockLister struct {
	mock.Mock
}

func (m *MockLister) AllBrands(ctx context.Context) ([]models.Brand, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Brand), args.Error(1)
}

func (m *MockLister) BrandsForUser(ctx context.Context, email string) ([]models.Brand, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Brand), args.Error(1)
}

func (m *MockLister) AssignedBrands(ctx context.Context, email string) ([]models.Brand, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Brand), args.Error(1)
}

func TestResolve_AdminUsesFullListing(t *testing.T) {
	api := &MockLister{}
	r := NewResolver(api)

	all := []models.Brand{{BrandName: "Acme"}, {BrandName: "Globex"}}
	api.On("AllBrands", mock.Anything).Return(all, nil).Once()
	api.On("AssignedBrands", mock.Anything, "admin@example.com").
		Return([]models.Brand{{BrandName: "Acme"}}, nil).Once()

	res, err := r.Resolve(context.Background(), models.User{Email: "admin@example.com", Role: "admin"})

	require.NoError(t, err)
	assert.True(t, res.UsedAdminAll)
	assert.Equal(t, all, res.Brands)
	assert.Len(t, res.Assigned, 1)
	api.AssertNotCalled(t, "BrandsForUser", mock.Anything, mock.Anything)
}

func TestResolve_AdminFallsBackToUserScope(t *testing.T) {
	api := &MockLister{}
	r := NewResolver(api)

	own := []models.Brand{{BrandName: "Acme"}}
	api.On("AllBrands", mock.Anything).Return(nil, errors.New("forbidden")).Once()
	api.On("BrandsForUser", mock.Anything, "admin@example.com").Return(own, nil).Once()
	api.On("AssignedBrands", mock.Anything, "admin@example.com").Return(own, nil).Once()

	res, err := r.Resolve(context.Background(), models.User{Email: "admin@example.com", Role: "admin"})

	require.NoError(t, err)
	assert.False(t, res.UsedAdminAll)
	assert.Equal(t, own, res.Brands)
}

func TestResolve_NonAdminNeverCallsFullListing(t *testing.T) {
	api := &MockLister{}
	r := NewResolver(api)

	own := []models.Brand{{BrandName: "Acme"}}
	api.On("BrandsForUser", mock.Anything, "casey@example.com").Return(own, nil).Once()
	api.On("AssignedBrands", mock.Anything, "casey@example.com").Return(own, nil).Once()

	res, err := r.Resolve(context.Background(), models.User{Email: "casey@example.com"})

	require.NoError(t, err)
	assert.False(t, res.UsedAdminAll)
	assert.Equal(t, own, res.Brands)
	api.AssertNotCalled(t, "AllBrands", mock.Anything)
}

func TestResolve_RequiresEmail(t *testing.T) {
	r := NewResolver(&MockLister{})

	_, err := r.Resolve(context.Background(), models.User{})
	assert.Error(t, err)
}

func TestResolve_AssignedListingNeverBlocks(t *testing.T) {
	api := &MockLister{}
	r := NewResolver(api)

	own := []models.Brand{{BrandName: "Acme"}}
	api.On("BrandsForUser", mock.Anything, "casey@example.com").Return(own, nil).Once()
	api.On("AssignedBrands", mock.Anything, "casey@example.com").
		Return(nil, errors.New("endpoint unavailable")).Once()

	res, err := r.Resolve(context.Background(), models.User{Email: "casey@example.com"})

	require.NoError(t, err)
	assert.Equal(t, own, res.Brands)
	assert.Empty(t, res.Assigned)
}

func TestMatchSearch(t *testing.T) {
	brand := models.Brand{BrandName: "Acme Corp", Keywords: []string{"acme cloud", "rockets"}}

	tests := []struct {
		name     string
		query    string
		expected bool
	}{
		{"Empty query matches", "", true},
		{"Name match is case-insensitive", "ACME", true},
		{"Keyword substring match", "rocket", true},
		{"Whitespace is trimmed", "  corp  ", true},
		{"No match", "globex", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MatchSearch(brand, tt.query))
		})
	}
}
