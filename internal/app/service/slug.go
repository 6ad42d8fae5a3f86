package service

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/quicktrends/couponfunnel/internal/app/model"
)

var coursePathPattern = regexp.MustCompile(`/course/([^/]+)`)

// DeriveSlug extracts the stable course identifier from a URL: the path
// segment following "/course/", lower-cased. URLs without such a segment
// yield the empty string, which downstream code treats as "no match".
func DeriveSlug(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	m := coursePathPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// FindBySlug returns the first feed record whose derived slug matches.
// An empty slug never matches anything, so two slug-less records are never
// confused for each other. Returns nil when no record matches.
func FindBySlug(records []model.CourseRecord, slug string) *model.CourseRecord {
	if slug == "" {
		return nil
	}
	for i := range records {
		if DeriveSlug(records[i].URL) == slug {
			return &records[i]
		}
	}
	return nil
}
