// File: internal/input/locations.go
package input

import (
	"sort"

	gocache "github.com/patrickmn/go-cache"

	"github.com/trainingloop/coursepilot/api/schemas"
)

// Locations is the in-memory cache of named UI positions, held in physical
// display space. It is a cache, not a record of truth: never persisted,
// cleared at process restart.
type Locations struct {
	cache *gocache.Cache
}

// NewLocations creates an empty location cache.
func NewLocations() *Locations {
	return &Locations{cache: gocache.New(gocache.NoExpiration, 0)}
}

// Put stores or replaces a named display-space position.
func (l *Locations) Put(name string, x, y int) {
	l.cache.Set(name, schemas.Point{X: x, Y: y}, gocache.NoExpiration)
}

// Get looks up a named position.
func (l *Locations) Get(name string) (schemas.Point, bool) {
	v, ok := l.cache.Get(name)
	if !ok {
		return schemas.Point{}, false
	}
	return v.(schemas.Point), true
}

// Names returns all cached names, sorted for stable listings.
func (l *Locations) Names() []string {
	items := l.cache.Items()
	names := make([]string, 0, len(items))
	for name := range items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports the number of cached locations.
func (l *Locations) Len() int {
	return l.cache.ItemCount()
}
