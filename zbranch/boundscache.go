package zbranch

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Bounds is a cached (lb, ub) pair for a given history fingerprint.
type Bounds struct {
	Lb int
	Ub uint16
}

// BoundsCache memoizes (lb, ub) by history fingerprint (SPEC_FULL.md
// section 3). The fingerprint covers the exact, ordered operation list,
// so a hit needs the same operation sequence: structurally identical
// graphs reached by applying operations in different orders get distinct
// keys and are not matched. A hit still gets re-validated by the caller
// (lb <= ub) before being trusted.
type BoundsCache struct {
	lru *lru.Cache[uint64, Bounds]
}

// NewBoundsCache returns a cache holding at most size entries.
func NewBoundsCache(size int) *BoundsCache {
	if size <= 0 {
		size = 4096
	}
	c, err := lru.New[uint64, Bounds](size)
	if err != nil {
		// Only returns an error for size <= 0, already guarded above.
		panic(err)
	}
	return &BoundsCache{lru: c}
}

// Get looks up the bounds for a history fingerprint.
func (c *BoundsCache) Get(fp uint64) (Bounds, bool) {
	return c.lru.Get(fp)
}

// Put records the bounds for a history fingerprint.
func (c *BoundsCache) Put(fp uint64, b Bounds) {
	c.lru.Add(fp, b)
}
