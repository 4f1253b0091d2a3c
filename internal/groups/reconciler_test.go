package groups

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/brandlens/brandlens/internal/backend"
	"github.com/brandlens/brandlens/internal/cache"
	"github.com/brandlens/brandlens/internal/models"
)

// MockConfigurer is a mock implementation of the brand configure API
type MockConfigurer struct {
	mock.Mock
}

func (m *MockConfigurer) ConfigureBrand(ctx context.Context, req backend.ConfigureRequest) (*backend.ConfigureResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.ConfigureResponse), args.Error(1)
}

func seedCache(t *testing.T, store cache.Store, brandName string, groups []models.KeywordGroup) {
	t.Helper()
	data, err := json.Marshal(groups)
	require.NoError(t, err)
	require.NoError(t, store.Store(cache.KeyForBrand(brandName), data))
}

func cachedGroups(t *testing.T, store cache.Store, brandName string) []models.KeywordGroup {
	t.Helper()
	data, err := store.Retrieve(cache.KeyForBrand(brandName))
	require.NoError(t, err)
	var groups []models.KeywordGroup
	require.NoError(t, json.Unmarshal(data, &groups))
	return groups
}

func TestReconcile_BackendAuthoritative(t *testing.T) {
	store := cache.NewMemoryStore()
	configurer := &MockConfigurer{}
	r := NewReconciler(configurer, store)

	seedCache(t, store, "Acme", []models.KeywordGroup{
		{Name: "Core", Keywords: []string{"stale"}, Platforms: []string{"youtube"}, Countries: []string{"us"}, Paused: true},
		{Name: "Gone", Keywords: []string{"dropped"}},
	})

	brand := &models.Brand{
		BrandName: "Acme",
		Platforms: []string{"twitter", "reddit"},
		KeywordGroups: []models.KeywordGroup{
			{Name: "Core", Keywords: []string{"acme", "acme cloud"}},
			{Name: "Fresh", Keywords: []string{"launch"}},
		},
	}

	groups := r.Reconcile(context.Background(), brand)

	require.Len(t, groups, 2)
	// Backend keywords win, cached UI fields are merged back in.
	assert.Equal(t, []string{"acme", "acme cloud"}, groups[0].Keywords)
	assert.Equal(t, []string{"youtube"}, groups[0].Platforms)
	assert.Equal(t, []string{"us"}, groups[0].Countries)
	assert.True(t, groups[0].Paused)
	// Groups with no cached entry default platforms to the brand's.
	assert.Equal(t, []string{"twitter", "reddit"}, groups[1].Platforms)
	assert.False(t, groups[1].Paused)

	// The merged result re-warms the cache, dropping entries the backend no
	// longer has.
	warmed := cachedGroups(t, store, "Acme")
	require.Len(t, warmed, 2)
	assert.Equal(t, "Core", warmed[0].Name)
	assert.Equal(t, "Fresh", warmed[1].Name)

	configurer.AssertNotCalled(t, "ConfigureBrand", mock.Anything, mock.Anything)
}

func TestReconcile_LocalFallbackWritesBack(t *testing.T) {
	store := cache.NewMemoryStore()
	configurer := &MockConfigurer{}
	r := NewReconciler(configurer, store)

	cached := []models.KeywordGroup{
		{Name: "Core", Keywords: []string{"acme"}, Platforms: []string{"twitter"}},
	}
	seedCache(t, store, "Acme", cached)

	done := make(chan backend.ConfigureRequest, 1)
	configurer.On("ConfigureBrand", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			done <- args.Get(1).(backend.ConfigureRequest)
		}).
		Return(&backend.ConfigureResponse{Success: true}, nil).Once()

	brand := &models.Brand{
		BrandName: "Acme",
		Keywords:  []string{"acme"},
		Platforms: []string{"twitter"},
		Frequency: "1h",
	}

	groups := r.Reconcile(context.Background(), brand)
	assert.Equal(t, cached, groups)

	select {
	case req := <-done:
		assert.Equal(t, "Acme", req.BrandName)
		assert.Equal(t, []string{"acme"}, req.Keywords)
		assert.Equal(t, "1h", req.Frequency)
		require.Len(t, req.KeywordGroups, 1)
		// Only the persisted subset crosses the boundary.
		assert.Empty(t, req.KeywordGroups[0].Platforms)
		assert.False(t, req.KeywordGroups[0].Paused)
	case <-time.After(2 * time.Second):
		t.Fatal("expected background write-back")
	}
}

func TestReconcile_LocalFallbackSurvivesWriteBackFailure(t *testing.T) {
	store := cache.NewMemoryStore()
	configurer := &MockConfigurer{}
	r := NewReconciler(configurer, store)

	cached := []models.KeywordGroup{{Name: "Core", Keywords: []string{"acme"}}}
	seedCache(t, store, "Acme", cached)

	done := make(chan struct{}, 1)
	configurer.On("ConfigureBrand", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { done <- struct{}{} }).
		Return(nil, errors.New("backend down")).Once()

	groups := r.Reconcile(context.Background(), &models.Brand{BrandName: "Acme"})

	// The failure never surfaces; the cached groups are still shown.
	assert.Equal(t, cached, groups)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected background write-back attempt")
	}
}

func TestReconcile_SynthesizesDefaultGroup(t *testing.T) {
	store := cache.NewMemoryStore()
	configurer := &MockConfigurer{}
	r := NewReconciler(configurer, store)

	brand := &models.Brand{
		BrandName: "Acme",
		Keywords:  []string{"acme", "acme cloud"},
		Platforms: []string{"twitter"},
	}

	groups := r.Reconcile(context.Background(), brand)

	require.Len(t, groups, 1)
	assert.Equal(t, DefaultGroupName, groups[0].Name)
	assert.Equal(t, brand.Keywords, groups[0].Keywords)
	assert.Equal(t, brand.Platforms, groups[0].Platforms)

	// The synthetic group is not persisted anywhere.
	_, err := store.Retrieve(cache.KeyForBrand("Acme"))
	assert.ErrorIs(t, err, cache.ErrNotFound)
	configurer.AssertNotCalled(t, "ConfigureBrand", mock.Anything, mock.Anything)
}

func TestSave_RecomputesFlatKeywords(t *testing.T) {
	store := cache.NewMemoryStore()
	configurer := &MockConfigurer{}
	r := NewReconciler(configurer, store)

	brand := &models.Brand{
		BrandName: "Acme",
		Keywords:  []string{"acme", "old term", "shared"},
		Platforms: []string{"twitter"},
		Frequency: "30m",
		KeywordGroups: []models.KeywordGroup{
			{Name: "Core", Keywords: []string{"acme", "old term"}},
			{Name: "Other", Keywords: []string{"shared"}},
		},
	}

	var captured backend.ConfigureRequest
	configurer.On("ConfigureBrand", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(backend.ConfigureRequest)
		}).
		Return(&backend.ConfigureResponse{Success: true}, nil).Once()

	edited := models.KeywordGroup{Name: "Core", Keywords: []string{"acme", "new term"}, Platforms: []string{"youtube"}}
	updated, groups, err := r.Save(context.Background(), brand, edited, "Core")

	require.NoError(t, err)
	require.NotNil(t, updated)
	require.Len(t, groups, 2)

	// Old group keywords leave the flat list, the new set joins it at the
	// end, and keywords owned by other groups survive.
	assert.Equal(t, []string{"shared", "acme", "new term"}, captured.Keywords)
	assert.Equal(t, []string{"youtube", "twitter"}, captured.Platforms)
	require.Len(t, captured.KeywordGroups, 2)
	assert.Empty(t, captured.KeywordGroups[0].Platforms)

	warmed := cachedGroups(t, store, "Acme")
	assert.Equal(t, []string{"youtube"}, warmed[0].Platforms)
}

func TestSave_RenamePreservesPosition(t *testing.T) {
	store := cache.NewMemoryStore()
	configurer := &MockConfigurer{}
	r := NewReconciler(configurer, store)

	brand := &models.Brand{
		BrandName: "Acme",
		Keywords:  []string{"acme"},
		KeywordGroups: []models.KeywordGroup{
			{Name: "First", Keywords: []string{"acme"}},
			{Name: "Second", Keywords: nil},
		},
	}

	configurer.On("ConfigureBrand", mock.Anything, mock.Anything).
		Return(&backend.ConfigureResponse{Success: true}, nil).Once()

	_, groups, err := r.Save(context.Background(), brand,
		models.KeywordGroup{Name: "Renamed", Keywords: []string{"acme"}}, "First")

	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Renamed", groups[0].Name)
	assert.Equal(t, "Second", groups[1].Name)
}

func TestSave_FailureLeavesCacheUntouched(t *testing.T) {
	store := cache.NewMemoryStore()
	configurer := &MockConfigurer{}
	r := NewReconciler(configurer, store)

	original := []models.KeywordGroup{{Name: "Core", Keywords: []string{"acme"}, Paused: true}}
	seedCache(t, store, "Acme", original)

	brand := &models.Brand{
		BrandName:     "Acme",
		Keywords:      []string{"acme"},
		KeywordGroups: []models.KeywordGroup{{Name: "Core", Keywords: []string{"acme"}}},
	}

	configurer.On("ConfigureBrand", mock.Anything, mock.Anything).
		Return(nil, &backend.APIError{StatusCode: 500, Message: "write failed"}).Once()

	_, _, err := r.Save(context.Background(), brand,
		models.KeywordGroup{Name: "Core", Keywords: []string{"changed"}}, "Core")

	require.Error(t, err)
	assert.Equal(t, original, cachedGroups(t, store, "Acme"))
}

func TestSave_ResponseBrandWins(t *testing.T) {
	store := cache.NewMemoryStore()
	configurer := &MockConfigurer{}
	r := NewReconciler(configurer, store)

	brand := &models.Brand{BrandName: "Acme", Keywords: []string{"acme"}}

	serverBrand := &models.Brand{
		BrandName:     "Acme",
		Keywords:      []string{"acme", "fresh"},
		KeywordGroups: []models.KeywordGroup{{Name: "Core", Keywords: []string{"acme", "fresh"}}},
	}
	configurer.On("ConfigureBrand", mock.Anything, mock.Anything).
		Return(&backend.ConfigureResponse{Success: true, Brand: serverBrand}, nil).Once()

	updated, _, err := r.Save(context.Background(), brand,
		models.KeywordGroup{Name: "Core", Keywords: []string{"acme", "fresh"}}, "")

	require.NoError(t, err)
	assert.Equal(t, serverBrand.Keywords, updated.Keywords)
}

func TestDelete_RemovesGroupAndKeywords(t *testing.T) {
	store := cache.NewMemoryStore()
	configurer := &MockConfigurer{}
	r := NewReconciler(configurer, store)

	brand := &models.Brand{
		BrandName: "Acme",
		Keywords:  []string{"acme", "only here", "shared"},
		KeywordGroups: []models.KeywordGroup{
			{Name: "Core", Keywords: []string{"acme", "shared"}},
			{Name: "Extra", Keywords: []string{"only here", "shared"}},
		},
	}

	var captured backend.ConfigureRequest
	configurer.On("ConfigureBrand", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(backend.ConfigureRequest)
		}).
		Return(&backend.ConfigureResponse{Success: true}, nil).Once()

	_, groups, err := r.Delete(context.Background(), brand, "Extra")

	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Core", groups[0].Name)
	// "shared" stays because Core still claims it; "only here" is dropped.
	assert.Equal(t, []string{"acme", "shared"}, captured.Keywords)
}

func TestDelete_UnknownGroup(t *testing.T) {
	r := NewReconciler(&MockConfigurer{}, cache.NewMemoryStore())

	_, _, err := r.Delete(context.Background(), &models.Brand{BrandName: "Acme"}, "Missing")
	assert.Error(t, err)
}

func TestDuplicate_Naming(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		source   string
		expected string
	}{
		{"First copy", []string{"Core"}, "Core", "Core (copy)"},
		{"Second copy", []string{"Core", "Core (copy)"}, "Core", "Core (copy) 2"},
		{"Third copy", []string{"Core", "Core (copy)", "Core (copy) 2"}, "Core", "Core (copy) 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := cache.NewMemoryStore()
			configurer := &MockConfigurer{}
			r := NewReconciler(configurer, store)

			brand := &models.Brand{BrandName: "Acme", Keywords: []string{"acme"}}
			for _, name := range tt.existing {
				brand.KeywordGroups = append(brand.KeywordGroups,
					models.KeywordGroup{Name: name, Keywords: []string{"acme"}})
			}

			var captured backend.ConfigureRequest
			configurer.On("ConfigureBrand", mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) {
					captured = args.Get(1).(backend.ConfigureRequest)
				}).
				Return(&backend.ConfigureResponse{Success: true}, nil).Once()

			_, groups, err := r.Duplicate(context.Background(), brand, tt.source)

			require.NoError(t, err)
			assert.Equal(t, tt.expected, groups[len(groups)-1].Name)
			// Duplicating introduces no new keywords.
			assert.Equal(t, brand.Keywords, captured.Keywords)
		})
	}
}

func TestDuplicate_RetainsUIFields(t *testing.T) {
	store := cache.NewMemoryStore()
	configurer := &MockConfigurer{}
	r := NewReconciler(configurer, store)

	seedCache(t, store, "Acme", []models.KeywordGroup{
		{Name: "Core", Keywords: []string{"acme"}, Platforms: []string{"youtube"}, Languages: []string{"en"}},
	})
	brand := &models.Brand{
		BrandName:     "Acme",
		Keywords:      []string{"acme"},
		KeywordGroups: []models.KeywordGroup{{Name: "Core", Keywords: []string{"acme"}}},
	}

	configurer.On("ConfigureBrand", mock.Anything, mock.Anything).
		Return(&backend.ConfigureResponse{Success: true}, nil).Once()

	_, groups, err := r.Duplicate(context.Background(), brand, "Core")

	require.NoError(t, err)
	copied := groups[len(groups)-1]
	assert.Equal(t, "Core (copy)", copied.Name)
	assert.Equal(t, []string{"youtube"}, copied.Platforms)
	assert.Equal(t, []string{"en"}, copied.Languages)
}

func TestSetPaused_RoundTripsConfigure(t *testing.T) {
	store := cache.NewMemoryStore()
	configurer := &MockConfigurer{}
	r := NewReconciler(configurer, store)

	brand := &models.Brand{
		BrandName:     "Acme",
		Keywords:      []string{"acme"},
		KeywordGroups: []models.KeywordGroup{{Name: "Core", Keywords: []string{"acme"}}},
	}

	var captured backend.ConfigureRequest
	configurer.On("ConfigureBrand", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(backend.ConfigureRequest)
		}).
		Return(&backend.ConfigureResponse{Success: true}, nil).Once()

	_, groups, err := r.SetPaused(context.Background(), brand, "Core", true)

	require.NoError(t, err)
	assert.True(t, groups[0].Paused)
	// Pause never crosses the boundary; the flat keywords are untouched.
	assert.False(t, captured.KeywordGroups[0].Paused)
	assert.Equal(t, brand.Keywords, captured.Keywords)

	// The flag survives locally.
	warmed := cachedGroups(t, store, "Acme")
	assert.True(t, warmed[0].Paused)
}

func TestBackendPlatforms(t *testing.T) {
	tests := []struct {
		name     string
		groups   []models.KeywordGroup
		brand    []string
		expected []string
	}{
		{
			name:     "Youtube maps to itself",
			groups:   []models.KeywordGroup{{Platforms: []string{"youtube"}}},
			expected: []string{"youtube"},
		},
		{
			name:     "Quora searches reddit",
			groups:   []models.KeywordGroup{{Platforms: []string{"quora", "reddit"}}},
			expected: []string{"reddit"},
		},
		{
			name:     "Unknown platforms fall back to twitter",
			groups:   []models.KeywordGroup{{Platforms: []string{"linkedin", "news"}}},
			expected: []string{"twitter"},
		},
		{
			name:     "Groups without platforms use the brand's",
			groups:   []models.KeywordGroup{{}},
			brand:    []string{"youtube"},
			expected: []string{"youtube"},
		},
		{
			name:     "Deduplicated in encounter order",
			groups:   []models.KeywordGroup{{Platforms: []string{"youtube", "twitter", "quora", "facebook"}}},
			expected: []string{"youtube", "twitter", "reddit"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BackendPlatforms(tt.groups, tt.brand))
		})
	}
}
