package table

import "sync"

// FacetCache computes filter facets from a full dataset once and returns
// the same result on every later call.
type FacetCache[R Row, F any] struct {
	once    sync.Once
	compute func([]R) F
	facets  F
}

// NewFacetCache wraps compute.
func NewFacetCache[R Row, F any](compute func([]R) F) *FacetCache[R, F] {
	return &FacetCache[R, F]{compute: compute}
}

// Get returns the facets, computing them from rows on the first call only.
func (c *FacetCache[R, F]) Get(rows []R) F {
	c.once.Do(func() {
		c.facets = c.compute(rows)
	})
	return c.facets
}
