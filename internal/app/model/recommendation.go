package model

import "time"

// RecommendationEntry is one memoized recommendation result. Entries stay
// valid for the configured TTL measured from ComputedAt; truncation to the
// caller's limit happens on read, so one entry serves several list sizes.
type RecommendationEntry struct {
	ComputedAt time.Time      `json:"timestamp"`
	Courses    []CourseRecord `json:"courses"`
}
