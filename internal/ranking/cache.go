package ranking

import "github.com/seizurelab/eegrank/internal/domain"

// Cache memoizes verdicts for unordered snippet pairs within one
// session. A verdict recorded for (a,b) is retrievable as (b,a) with
// the sign inverted, and at most one verdict exists per unordered pair.
// The cache never invents verdicts: only Record adds entries, and the
// engine calls Record exclusively for pairs the oracle answered.
//
// The cache is discarded together with its sort run on restart.
type Cache struct {
	verdicts map[domain.Pair]domain.Verdict
}

// NewCache returns an empty comparison cache.
func NewCache() *Cache {
	return &Cache{verdicts: make(map[domain.Pair]domain.Verdict)}
}

// Record stores the verdict for the pair (a,b) as judged left-to-right.
// If the unordered pair was already recorded, the stored orientation is
// kept and its value replaced, preserving the one-entry invariant.
func (c *Cache) Record(a, b string, v domain.Verdict) {
	key := domain.Pair{Left: a, Right: b}
	if _, ok := c.verdicts[key.Reversed()]; ok {
		c.verdicts[key.Reversed()] = v.Negate()
		return
	}
	c.verdicts[key] = v
}

// Lookup returns the verdict for (a,b) as judged left-to-right, in
// either stored orientation.
func (c *Cache) Lookup(a, b string) (domain.Verdict, bool) {
	key := domain.Pair{Left: a, Right: b}
	if v, ok := c.verdicts[key]; ok {
		return v, true
	}
	if v, ok := c.verdicts[key.Reversed()]; ok {
		return v.Negate(), true
	}
	return domain.Tie, false
}

// Len returns the number of unordered pairs recorded.
func (c *Cache) Len() int { return len(c.verdicts) }
