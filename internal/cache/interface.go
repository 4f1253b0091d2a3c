// Package cache provides the durable scratch store for keyword-group UI
// state. The backend only persists a group's name, keywords and assigned
// users; platform, locale and pause settings survive here, keyed per brand,
// exactly as the dashboard needs them back on the next load. Concurrent
// writers are not coordinated: last writer wins.
package cache

import "errors"

// ErrNotFound is returned when no entry exists for a key.
var ErrNotFound = errors.New("cache: key not found")

// Store is the contract for keyword-group scratch storage.
type Store interface {
	Store(key string, data []byte) error
	Retrieve(key string) ([]byte, error)
	List(prefix string) ([]string, error)
	Delete(key string) error
}

// KeyForBrand returns the scratch key holding a brand's keyword groups.
func KeyForBrand(brandName string) string {
	return "keywordGroups:" + brandName
}
