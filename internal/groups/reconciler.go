// Package groups manages a brand's keyword groups across two stores that
// disagree about what a group is. The backend persists name, keywords and
// assigned users; platform, locale and pause settings only survive in the
// local scratch cache. The reconciler merges both on every load and keeps
// them converged on every mutation.
package groups

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/brandlens/brandlens/internal/backend"
	"github.com/brandlens/brandlens/internal/cache"
	"github.com/brandlens/brandlens/internal/metrics"
	"github.com/brandlens/brandlens/internal/models"
)

// DefaultGroupName is the name of the synthesized group shown when a brand
// has keywords but no groups anywhere.
const DefaultGroupName = "Default Group"

// Configurer is the slice of the backend client the reconciler mutates
// through.
type Configurer interface {
	ConfigureBrand(ctx context.Context, req backend.ConfigureRequest) (*backend.ConfigureResponse, error)
}

// Reconciler merges backend groups with locally cached UI state and pushes
// every group mutation through a whole-document brand configure call.
type Reconciler struct {
	backend Configurer
	store   cache.Store
}

// NewReconciler creates a reconciler over the backend client and the
// scratch store.
func NewReconciler(configurer Configurer, store cache.Store) *Reconciler {
	return &Reconciler{backend: configurer, store: store}
}

// Reconcile returns the groups to display for brand, resolving the three
// possible states:
//
// Backend has groups: the backend list is authoritative. Cached UI fields
// are merged in by group name, missing platform selections default to the
// brand's platforms, and the merged result re-warms the cache.
//
// Backend has none but the cache does: the cached groups are returned and
// written back to the backend in the background. The write-back is
// best-effort; its failure is logged, counted, and never surfaced.
//
// Neither has groups: a single synthetic group covering the brand's flat
// keywords is returned. It is never persisted anywhere.
func (r *Reconciler) Reconcile(ctx context.Context, brand *models.Brand) []models.KeywordGroup {
	cached := r.cachedGroups(brand.BrandName)

	if len(brand.KeywordGroups) > 0 {
		merged := r.mergeUIState(brand, cached)
		r.warmCache(brand.BrandName, merged)
		return merged
	}

	if len(cached) > 0 {
		r.writeBack(brand, cached)
		return cached
	}

	return []models.KeywordGroup{{
		Name:      DefaultGroupName,
		Keywords:  brand.Keywords,
		Platforms: brand.Platforms,
	}}
}

// load is Reconcile without the background write-back, used by mutation
// paths that immediately follow with a synchronous configure of their own.
func (r *Reconciler) load(brand *models.Brand) []models.KeywordGroup {
	cached := r.cachedGroups(brand.BrandName)
	if len(brand.KeywordGroups) > 0 {
		return r.mergeUIState(brand, cached)
	}
	if len(cached) > 0 {
		return cached
	}
	return []models.KeywordGroup{{
		Name:      DefaultGroupName,
		Keywords:  brand.Keywords,
		Platforms: brand.Platforms,
	}}
}

// mergeUIState overlays cached UI-only fields onto the backend's group list,
// matching by name.
func (r *Reconciler) mergeUIState(brand *models.Brand, cached []models.KeywordGroup) []models.KeywordGroup {
	byName := make(map[string]models.KeywordGroup, len(cached))
	for _, g := range cached {
		byName[g.Name] = g
	}

	merged := make([]models.KeywordGroup, 0, len(brand.KeywordGroups))
	for _, g := range brand.KeywordGroups {
		if local, ok := byName[g.Name]; ok {
			g.Platforms = local.Platforms
			g.Countries = local.Countries
			g.Languages = local.Languages
			g.Paused = local.Paused
		}
		if len(g.Platforms) == 0 {
			g.Platforms = brand.Platforms
		}
		merged = append(merged, g)
	}
	return merged
}

// writeBack pushes cache-only groups to the backend in the background so
// they survive a cache wipe. Display never waits on it.
func (r *Reconciler) writeBack(brand *models.Brand, groups []models.KeywordGroup) {
	req := backend.ConfigureRequest{
		BrandName:     brand.BrandName,
		Keywords:      brand.Keywords,
		Platforms:     brand.Platforms,
		Frequency:     models.NormalizeFrequency(brand.Frequency),
		AvatarURL:     brand.AvatarURL,
		KeywordGroups: backendShapes(groups),
	}
	go func() {
		if _, err := r.backend.ConfigureBrand(context.Background(), req); err != nil {
			metrics.GroupSyncs.WithLabelValues("failure").Inc()
			logrus.Warnf("Background group sync for %s failed: %v", brand.BrandName, err)
			return
		}
		metrics.GroupSyncs.WithLabelValues("success").Inc()
	}()
}

// Save creates or updates a group. oldName is the name the group had before
// an edit, or empty on create. The brand's flat keyword list is recomputed
// as (current − old group's keywords) ∪ new group's keywords, the whole
// configuration is replaced in one call, and the response's brand document,
// when present, supersedes the caller's snapshot. On failure nothing is
// cached, so the pre-save list stays intact.
func (r *Reconciler) Save(ctx context.Context, brand *models.Brand, group models.KeywordGroup, oldName string) (*models.Brand, []models.KeywordGroup, error) {
	if strings.TrimSpace(group.Name) == "" {
		return nil, nil, fmt.Errorf("group name is required")
	}

	current := r.load(brand)

	replaced := oldName
	if replaced == "" {
		replaced = group.Name
	}

	var oldKeywords []string
	next := make([]models.KeywordGroup, 0, len(current)+1)
	found := false
	for _, g := range current {
		if g.Name == replaced {
			oldKeywords = g.Keywords
			next = append(next, group)
			found = true
			continue
		}
		next = append(next, g)
	}
	if !found {
		next = append(next, group)
	}

	flat := recomputeKeywords(brand.Keywords, oldKeywords, group.Keywords)
	return r.configure(ctx, brand, next, flat)
}

// Delete removes a group by name. Its keywords leave the brand's flat list
// unless another group still claims them.
func (r *Reconciler) Delete(ctx context.Context, brand *models.Brand, name string) (*models.Brand, []models.KeywordGroup, error) {
	current := r.load(brand)

	var removed *models.KeywordGroup
	next := make([]models.KeywordGroup, 0, len(current))
	for _, g := range current {
		if g.Name == name {
			g := g
			removed = &g
			continue
		}
		next = append(next, g)
	}
	if removed == nil {
		return nil, nil, fmt.Errorf("keyword group %q not found", name)
	}

	retained := make(map[string]bool)
	for _, g := range next {
		for _, k := range g.Keywords {
			retained[strings.ToLower(strings.TrimSpace(k))] = true
		}
	}
	drop := make([]string, 0, len(removed.Keywords))
	for _, k := range removed.Keywords {
		if !retained[strings.ToLower(strings.TrimSpace(k))] {
			drop = append(drop, k)
		}
	}

	flat := recomputeKeywords(brand.Keywords, drop, nil)
	return r.configure(ctx, brand, next, flat)
}

// Duplicate copies a group under the first free "(copy)" name, keeping its
// UI settings. The flat keyword list is unchanged since the copy introduces
// no new keywords.
func (r *Reconciler) Duplicate(ctx context.Context, brand *models.Brand, name string) (*models.Brand, []models.KeywordGroup, error) {
	current := r.load(brand)

	var source *models.KeywordGroup
	for i := range current {
		if current[i].Name == name {
			source = &current[i]
			break
		}
	}
	if source == nil {
		return nil, nil, fmt.Errorf("keyword group %q not found", name)
	}

	copied := *source
	copied.Keywords = append([]string(nil), source.Keywords...)
	copied.AssignedUsers = append([]string(nil), source.AssignedUsers...)
	copied.Platforms = append([]string(nil), source.Platforms...)
	copied.Countries = append([]string(nil), source.Countries...)
	copied.Languages = append([]string(nil), source.Languages...)
	copied.Name = copyName(name, current)

	next := append(append([]models.KeywordGroup(nil), current...), copied)
	return r.configure(ctx, brand, next, brand.Keywords)
}

// SetPaused flips a group's pause flag. Pause is a local display setting,
// but the configuration still round-trips so the backend document stays the
// single source of truth for the rest of the group.
func (r *Reconciler) SetPaused(ctx context.Context, brand *models.Brand, name string, paused bool) (*models.Brand, []models.KeywordGroup, error) {
	current := r.load(brand)

	found := false
	next := make([]models.KeywordGroup, 0, len(current))
	for _, g := range current {
		if g.Name == name {
			g.Paused = paused
			found = true
		}
		next = append(next, g)
	}
	if !found {
		return nil, nil, fmt.Errorf("keyword group %q not found", name)
	}

	return r.configure(ctx, brand, next, brand.Keywords)
}

// configure replaces the brand's whole configuration with the given groups
// and flat keyword list, then caches the UI state and returns the updated
// brand document.
func (r *Reconciler) configure(ctx context.Context, brand *models.Brand, groups []models.KeywordGroup, flat []string) (*models.Brand, []models.KeywordGroup, error) {
	req := backend.ConfigureRequest{
		BrandName:     brand.BrandName,
		Keywords:      flat,
		Platforms:     BackendPlatforms(groups, brand.Platforms),
		Frequency:     models.NormalizeFrequency(brand.Frequency),
		AvatarURL:     brand.AvatarURL,
		KeywordGroups: backendShapes(groups),
	}

	resp, err := r.backend.ConfigureBrand(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	updated := *brand
	updated.Keywords = flat
	updated.KeywordGroups = backendShapes(groups)
	if resp.Brand != nil {
		if len(resp.Brand.KeywordGroups) == 0 && len(groups) > 0 {
			logrus.Warnf("configure response for %s omitted keyword groups, keeping local list", brand.BrandName)
			resp.Brand.KeywordGroups = backendShapes(groups)
		}
		updated = *resp.Brand
	}

	r.warmCache(brand.BrandName, groups)
	return &updated, groups, nil
}

func (r *Reconciler) cachedGroups(brandName string) []models.KeywordGroup {
	data, err := r.store.Retrieve(cache.KeyForBrand(brandName))
	if err != nil {
		if err != cache.ErrNotFound {
			logrus.Warnf("Failed to read cached groups for %s: %v", brandName, err)
		}
		return nil
	}
	var groups []models.KeywordGroup
	if err := json.Unmarshal(data, &groups); err != nil {
		logrus.Warnf("Discarding corrupt cached groups for %s: %v", brandName, err)
		return nil
	}
	return groups
}

func (r *Reconciler) warmCache(brandName string, groups []models.KeywordGroup) {
	data, err := json.Marshal(groups)
	if err != nil {
		logrus.Errorf("Failed to encode groups for %s: %v", brandName, err)
		return
	}
	if err := r.store.Store(cache.KeyForBrand(brandName), data); err != nil {
		logrus.Warnf("Failed to cache groups for %s: %v", brandName, err)
	}
}

// recomputeKeywords removes the edited group's previous keywords from the
// flat list and appends the new set, preserving the original order and
// de-duplicating case-insensitively.
func recomputeKeywords(flat, remove, add []string) []string {
	removeSet := make(map[string]bool, len(remove))
	for _, k := range remove {
		removeSet[strings.ToLower(strings.TrimSpace(k))] = true
	}

	next := make([]string, 0, len(flat)+len(add))
	seen := make(map[string]bool, len(flat)+len(add))
	for _, k := range flat {
		norm := strings.ToLower(strings.TrimSpace(k))
		if norm == "" || removeSet[norm] || seen[norm] {
			continue
		}
		seen[norm] = true
		next = append(next, k)
	}
	for _, k := range add {
		norm := strings.ToLower(strings.TrimSpace(k))
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		next = append(next, k)
	}
	return next
}

// copyName finds the first free duplicate name: "<name> (copy)", then
// "<name> (copy) 2", and so on.
func copyName(name string, existing []models.KeywordGroup) string {
	taken := make(map[string]bool, len(existing))
	for _, g := range existing {
		taken[g.Name] = true
	}

	candidate := name + " (copy)"
	for n := 2; taken[candidate]; n++ {
		candidate = fmt.Sprintf("%s (copy) %d", name, n)
	}
	return candidate
}

// BackendPlatforms maps the groups' platform selections onto the three
// channels the collection backend actually searches: youtube stays youtube,
// reddit and quora both search reddit, and everything else falls back to
// twitter. Groups without a selection contribute the brand's platforms.
func BackendPlatforms(groups []models.KeywordGroup, brandPlatforms []string) []string {
	var selected []string
	for _, g := range groups {
		platforms := g.Platforms
		if len(platforms) == 0 {
			platforms = brandPlatforms
		}
		selected = append(selected, platforms...)
	}
	if len(selected) == 0 {
		selected = brandPlatforms
	}

	seen := make(map[string]bool, 3)
	mapped := make([]string, 0, 3)
	for _, p := range selected {
		target := mapPlatform(p)
		if !seen[target] {
			seen[target] = true
			mapped = append(mapped, target)
		}
	}
	return mapped
}

func mapPlatform(platform string) string {
	switch strings.ToLower(strings.TrimSpace(platform)) {
	case "youtube":
		return "youtube"
	case "reddit", "quora":
		return "reddit"
	default:
		return "twitter"
	}
}

func backendShapes(groups []models.KeywordGroup) []models.KeywordGroup {
	shaped := make([]models.KeywordGroup, 0, len(groups))
	for _, g := range groups {
		shaped = append(shaped, g.BackendShape())
	}
	return shaped
}
