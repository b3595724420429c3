// Package catalog holds the fixed table of ripeness levels.
package catalog

import (
	"fmt"

	"github.com/menta2k/banana-grader/pkg/types"
)

// Catalog is a read-only, ordered table of ripeness levels
type Catalog struct {
	entries []types.LevelInfo
	index   map[types.RipenessLevel]int
}

var defaultEntries = []types.LevelInfo{
	{
		Level:          types.Level2,
		Name:           "Green",
		Swatch:         types.RGB{R: 76, G: 140, B: 43},
		Description:    "Fully green peel, firm flesh, starch not yet converted",
		Recommendation: "Hold in ripening room; not ready for retail",
	},
	{
		Level:          types.Level3,
		Name:           "Green with trace of yellow",
		Swatch:         types.RGB{R: 120, G: 170, B: 50},
		Description:    "Mostly green with the first yellow tint appearing",
		Recommendation: "Continue ripening; re-inspect within 24 hours",
	},
	{
		Level:          types.Level4,
		Name:           "More green than yellow",
		Swatch:         types.RGB{R: 170, G: 190, B: 60},
		Description:    "Yellow breaking through, green still dominant",
		Recommendation: "Suitable for shipment to distant stores",
	},
	{
		Level:          types.Level5,
		Name:           "Yellow with green tips",
		Swatch:         types.RGB{R: 220, G: 210, B: 60},
		Description:    "Peel yellow with green necks and tips",
		Recommendation: "Ready for retail display",
	},
	{
		Level:          types.Level6,
		Name:           "Full yellow",
		Swatch:         types.RGB{R: 250, G: 215, B: 50},
		Description:    "Evenly yellow peel, ideal eating ripeness",
		Recommendation: "Sell immediately; peak quality",
	},
	{
		Level:          types.Level7,
		Name:           "Yellow with brown flecks",
		Swatch:         types.RGB{R: 230, G: 170, B: 40},
		Description:    "Sugar spots forming, flesh soft and sweet",
		Recommendation: "Discount for quick sale",
	},
	{
		Level:          types.Level8,
		Name:           "Brown spotted",
		Swatch:         types.RGB{R: 170, G: 110, B: 40},
		Description:    "Large brown areas on the peel, over-ripe",
		Recommendation: "Divert to processing; file over-ripe claim",
	},
	{
		Level:          types.Level9,
		Name:           "Dark / spoiled",
		Swatch:         types.RGB{R: 60, G: 40, B: 25},
		Description:    "Peel dark or black, possible rot",
		Recommendation: "Reject lot; file spoilage claim",
	},
}

// Default returns the standard eight-level catalog
func Default() *Catalog {
	c, err := New(defaultEntries)
	if err != nil {
		panic(err)
	}
	return c
}

// New builds a catalog from entries, which must cover every level exactly once
func New(entries []types.LevelInfo) (*Catalog, error) {
	c := &Catalog{
		entries: make([]types.LevelInfo, 0, len(entries)),
		index:   make(map[types.RipenessLevel]int, len(entries)),
	}
	for _, e := range entries {
		if !e.Level.Valid() {
			return nil, fmt.Errorf("catalog: invalid level %d", e.Level)
		}
		if _, dup := c.index[e.Level]; dup {
			return nil, fmt.Errorf("catalog: duplicate level %d", e.Level)
		}
		c.index[e.Level] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	for l := types.MinLevel; l <= types.MaxLevel; l++ {
		if _, ok := c.index[l]; !ok {
			return nil, fmt.Errorf("catalog: missing level %d", l)
		}
	}
	return c, nil
}

// Lookup returns the entry for level
func (c *Catalog) Lookup(level types.RipenessLevel) (types.LevelInfo, bool) {
	i, ok := c.index[level]
	if !ok {
		return types.LevelInfo{}, false
	}
	return c.entries[i], true
}

// Entries returns a copy of all entries in catalog order
func (c *Catalog) Entries() []types.LevelInfo {
	out := make([]types.LevelInfo, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of levels
func (c *Catalog) Len() int {
	return len(c.entries)
}
