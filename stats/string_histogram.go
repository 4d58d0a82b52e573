package stats

import (
	"github.com/cespare/xxhash/v2"

	"shale/types"
)

// stringHashRange bounds the integer projection of strings. Every string
// hashes somewhere in [0, stringHashRange).
const stringHashRange = 1 << 20

// hashString projects a string into the bounded integer range shared by
// the histogram and the min/max pass of table stats.
func hashString(s string) int {
	return int(xxhash.Sum64String(s) % stringHashRange)
}

// StringHistogram hashes strings into a bounded integer range and reuses
// IntHistogram over the projection.
type StringHistogram struct {
	h *IntHistogram
}

func NewStringHistogram(buckets int) *StringHistogram {
	return &StringHistogram{h: NewIntHistogram(buckets, 0, stringHashRange-1)}
}

func (sh *StringHistogram) AddValue(s string) {
	sh.h.AddValue(hashString(s))
}

func (sh *StringHistogram) EstimateSelectivity(op types.Op, s string) (float64, error) {
	return sh.h.EstimateSelectivity(op, hashString(s))
}

func (sh *StringHistogram) AvgSelectivity() float64 {
	return sh.h.AvgSelectivity()
}
