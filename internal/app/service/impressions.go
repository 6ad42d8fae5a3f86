package service

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Sized for the traffic a single funnel node sees in a day; at this capacity
// the false-positive rate stays around 1%.
const (
	impressionCapacity = 100_000
	impressionFPRate   = 0.01
)

// DailyImpressions remembers which hashed visitors have already landed
// today. The filter resets at the first landing of each new day, so the
// "unique" flag is per calendar day. A bloom false positive undercounts a
// real unique visitor, which is acceptable for ad reporting.
type DailyImpressions struct {
	clock Clock

	mu     sync.Mutex
	day    string
	filter *bloom.BloomFilter
}

// NewDailyImpressions returns a tracker using the given clock.
func NewDailyImpressions(clock Clock) *DailyImpressions {
	if clock == nil {
		clock = SystemClock()
	}
	return &DailyImpressions{
		clock:  clock,
		filter: bloom.NewWithEstimates(impressionCapacity, impressionFPRate),
	}
}

// FirstToday reports whether this ip hash has not been seen yet today, and
// marks it seen.
func (d *DailyImpressions) FirstToday(ipHash string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	day := d.clock.Now().Format("2006-01-02")
	if day != d.day {
		d.day = day
		d.filter.ClearAll()
	}

	if d.filter.TestString(ipHash) {
		return false
	}
	d.filter.AddString(ipHash)
	return true
}
