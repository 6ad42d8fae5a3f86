package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/quicktrends/couponfunnel/internal/app/model"
	"github.com/quicktrends/couponfunnel/internal/app/repository"
	infraPrometheus "github.com/quicktrends/couponfunnel/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	// Sizes of the two recommendation rows shown on the redirect pages.
	topSimilarCount    = 6
	bottomRelatedCount = 5

	// How many candidates the category pass fetches before the rows are cut.
	categoryFetchLimit = 20

	// How many general-pool courses the backfill fetches.
	fallbackFetchLimit = 12
)

// Recommender produces ranked, deduplicated lists of related courses.
// Category lookups are recomputed per request; the general pool is memoized
// per target URL with a bounded TTL.
type Recommender struct {
	feed     repository.FeedRepository
	cache    repository.CacheStore
	activity *ActivityEvaluator
	clock    Clock
	ttl      time.Duration
	logger   *zap.Logger
}

// RecommenderDeps groups the collaborators a Recommender needs.
type RecommenderDeps struct {
	Feed     repository.FeedRepository
	Cache    repository.CacheStore
	Activity *ActivityEvaluator
	Clock    Clock
	TTL      time.Duration
	Logger   *zap.Logger
}

// NewRecommender builds a Recommender. TTL defaults to 6 hours.
func NewRecommender(deps RecommenderDeps) *Recommender {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock()
	}
	activity := deps.Activity
	if activity == nil {
		activity = NewActivityEvaluator(clock)
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recommender{
		feed:     deps.Feed,
		cache:    deps.Cache,
		activity: activity,
		clock:    clock,
		ttl:      ttl,
		logger:   logger,
	}
}

// CacheKey derives the stable cache key for a target URL.
func CacheKey(targetURL string) string {
	sum := md5.Sum([]byte(targetURL))
	return hex.EncodeToString(sum[:])
}

// RelatedByCategory returns active courses in the given category, best-rated
// first, excluding the record with excludeSlug. An empty category widens the
// candidate set to every active course with a URL. Results are never cached:
// the category dimension is cheap to scan.
func (r *Recommender) RelatedByCategory(ctx context.Context, category, excludeSlug string, limit int) []model.CourseRecord {
	wantCategory := strings.ToLower(strings.TrimSpace(category))

	var filtered []model.CourseRecord
	for _, c := range r.feed.LoadFeed(ctx) {
		if excludeSlug != "" && DeriveSlug(c.URL) == strings.ToLower(excludeSlug) {
			continue
		}
		if !r.activity.IsActive(&c) {
			continue
		}
		if wantCategory != "" {
			if strings.ToLower(strings.TrimSpace(c.Category)) != wantCategory {
				continue
			}
		} else if c.URL == "" {
			continue
		}
		filtered = append(filtered, c)
	}

	sortByRating(filtered)
	return truncate(filtered, limit)
}

// RelatedCourses returns the general related pool for a target URL. Results
// are memoized per URL; a hit within the TTL is served as-is (truncated to
// the caller's limit), so callers with different limits share one entry.
func (r *Recommender) RelatedCourses(ctx context.Context, targetURL string, limit int) []model.CourseRecord {
	key := CacheKey(targetURL)

	if entry, err := r.cache.Get(ctx, key); err == nil {
		if r.clock.Now().Sub(entry.ComputedAt) < r.ttl {
			infraPrometheus.RecommendationCache.WithLabelValues("hit").Inc()
			return truncate(entry.Courses, limit)
		}
	} else if err != repository.ErrCacheMiss {
		r.logger.Warn("recommendation cache read failed", zap.Error(err))
	}
	infraPrometheus.RecommendationCache.WithLabelValues("miss").Inc()

	excludeSlug := DeriveSlug(targetURL)

	var filtered []model.CourseRecord
	for _, c := range r.feed.LoadFeed(ctx) {
		if c.URL == "" {
			continue
		}
		if excludeSlug != "" && DeriveSlug(c.URL) == excludeSlug {
			continue
		}
		if !r.activity.IsActive(&c) {
			continue
		}
		filtered = append(filtered, c)
	}

	sortByRating(filtered)
	selected := truncate(filtered, limit)

	entry := &model.RecommendationEntry{
		ComputedAt: r.clock.Now(),
		Courses:    selected,
	}
	if err := r.cache.Set(ctx, key, entry); err != nil {
		// Cache trouble means recomputing next time, never a failed request.
		r.logger.Warn("recommendation cache write failed", zap.Error(err))
	}

	return selected
}

// RelatedLists builds the two recommendation rows for a redirect page: a
// "similar coupons" top row and a disjoint "related" bottom row, both
// slug-deduplicated against each other and against the current course.
// Under-filled rows are backfilled from the general pool.
func (r *Recommender) RelatedLists(ctx context.Context, targetURL, category string) (top, bottom []model.CourseRecord) {
	curSlug := DeriveSlug(targetURL)
	seen := map[string]bool{}
	if curSlug != "" {
		seen[curSlug] = true
	}

	for _, rc := range r.RelatedByCategory(ctx, category, curSlug, categoryFetchLimit) {
		s := DeriveSlug(rc.URL)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		if len(top) < topSimilarCount {
			top = append(top, rc)
		} else if len(bottom) < bottomRelatedCount {
			bottom = append(bottom, rc)
		}
	}

	if len(top) == 0 || len(bottom) == 0 {
		for _, fc := range r.RelatedCourses(ctx, targetURL, fallbackFetchLimit) {
			s := DeriveSlug(fc.URL)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			if len(top) < topSimilarCount {
				top = append(top, fc)
				continue
			}
			if len(bottom) < bottomRelatedCount {
				bottom = append(bottom, fc)
			}
			if len(top) >= topSimilarCount && len(bottom) >= bottomRelatedCount {
				break
			}
		}
	}

	return top, bottom
}

// sortByRating orders best-rated first. The sort is stable so equal ratings
// keep feed order.
func sortByRating(courses []model.CourseRecord) {
	sort.SliceStable(courses, func(i, j int) bool {
		return courses[i].Rating > courses[j].Rating
	})
}

func truncate(courses []model.CourseRecord, limit int) []model.CourseRecord {
	if limit <= 0 || limit >= len(courses) {
		return courses
	}
	return courses[:limit]
}
