package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/quicktrends/couponfunnel/internal/app/model"
	"github.com/quicktrends/couponfunnel/internal/app/repository"
	"go.uber.org/zap"
)

var (
	// ErrInvalidTargetURL signals a missing or malformed target URL.
	ErrInvalidTargetURL = errors.New("invalid target url")

	// ErrForbiddenDestination signals a target host outside the allow-list.
	ErrForbiddenDestination = errors.New("destination domain not allowed")

	// ErrUnknownEventType signals a beacon event type this core does not accept.
	ErrUnknownEventType = errors.New("unknown event type")
)

// Visitor carries the request-scoped client attributes the transport layer
// resolved: the client address (trusted proxy header first), the raw user
// agent, and the referrer.
type Visitor struct {
	IP        string
	UserAgent string
	Referrer  string
}

// CourseDetail is what the funnel knows about the target course. When the
// feed has no matching record, Matched is false and the title is derived
// from the URL itself so the funnel still renders something sensible.
type CourseDetail struct {
	Title    string              `json:"title"`
	Platform string              `json:"platform"`
	Category string              `json:"category"`
	Matched  bool                `json:"matched"`
	Active   bool                `json:"active"`
	Course   *model.CourseRecord `json:"course,omitempty"`
}

// LandingResult is the data behind the first funnel page.
type LandingResult struct {
	TargetURL     string               `json:"target_url"`
	DisplayHost   string               `json:"display_host"`
	Detail        CourseDetail         `json:"detail"`
	TopSimilar    []model.CourseRecord `json:"top_similar"`
	BottomRelated []model.CourseRecord `json:"bottom_related"`
	Stats         FeedStats            `json:"stats"`
}

// FinalResult is the data behind the confirmation page; OutboundURL is the
// link the visitor follows off-site.
type FinalResult struct {
	TargetURL   string       `json:"target_url"`
	OutboundURL string       `json:"outbound_url"`
	DisplayHost string       `json:"display_host"`
	Detail      CourseDetail `json:"detail"`
}

// BeaconInput is the payload of a client-side analytics beacon.
type BeaconInput struct {
	EventType model.EventType
	URL       string
	TimeSpent int
	MaxScroll int
	AdViews   int
	Timestamp int64
}

// FunnelService drives the two-step redirect funnel: validate the target,
// resolve the course, assemble recommendations, and record click events.
type FunnelService struct {
	feed        repository.FeedRepository
	activity    *ActivityEvaluator
	recommender *Recommender
	events      EventLogger
	impressions *DailyImpressions
	allowed     []string
	salt        string
	clock       Clock
	logger      *zap.Logger
}

// FunnelDeps groups the collaborators a FunnelService needs.
type FunnelDeps struct {
	Feed           repository.FeedRepository
	Activity       *ActivityEvaluator
	Recommender    *Recommender
	Events         EventLogger
	Impressions    *DailyImpressions
	AllowedDomains []string
	IPHashSalt     string
	Clock          Clock
	Logger         *zap.Logger
}

// NewFunnelService builds the funnel controller.
func NewFunnelService(deps FunnelDeps) *FunnelService {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	activity := deps.Activity
	if activity == nil {
		activity = NewActivityEvaluator(clock)
	}
	impressions := deps.Impressions
	if impressions == nil {
		impressions = NewDailyImpressions(clock)
	}

	allowed := make([]string, 0, len(deps.AllowedDomains))
	for _, d := range deps.AllowedDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			allowed = append(allowed, d)
		}
	}

	return &FunnelService{
		feed:        deps.Feed,
		activity:    activity,
		recommender: deps.Recommender,
		events:      deps.Events,
		impressions: impressions,
		allowed:     allowed,
		salt:        deps.IPHashSalt,
		clock:       clock,
		logger:      logger,
	}
}

// Landing enters the first funnel state: validate the target, look up the
// course, build both recommendation rows, and record a landing event. The
// validation errors are the only ones a visitor ever sees; everything else
// degrades.
func (s *FunnelService) Landing(ctx context.Context, targetURL string, v Visitor) (*LandingResult, error) {
	host, err := s.validateTarget(targetURL)
	if err != nil {
		return nil, err
	}

	records := s.feed.LoadFeed(ctx)
	course := FindBySlug(records, DeriveSlug(targetURL))
	detail := s.buildDetail(targetURL, course)

	top, bottom := s.recommender.RelatedLists(ctx, targetURL, detail.Category)

	event := s.newEvent(model.EventLanding, targetURL, v)
	event.Step = "landing"
	event.UniqueImpression = s.impressions.FirstToday(event.IPHash)
	s.record(ctx, event)

	return &LandingResult{
		TargetURL:     targetURL,
		DisplayHost:   host,
		Detail:        detail,
		TopSimilar:    top,
		BottomRelated: bottom,
		Stats:         s.Stats(ctx),
	}, nil
}

// Final enters the terminal funnel state. The allow-list is re-checked
// because visitors can deep-link here without passing through landing.
func (s *FunnelService) Final(ctx context.Context, targetURL string, v Visitor) (*FinalResult, error) {
	host, err := s.validateTarget(targetURL)
	if err != nil {
		return nil, err
	}

	records := s.feed.LoadFeed(ctx)
	course := FindBySlug(records, DeriveSlug(targetURL))
	detail := s.buildDetail(targetURL, course)

	event := s.newEvent(model.EventFinal, targetURL, v)
	event.Step = "final"
	s.record(ctx, event)

	return &FinalResult{
		TargetURL:   targetURL,
		OutboundURL: targetURL,
		DisplayHost: host,
		Detail:      detail,
	}, nil
}

// RecordBeacon stores a client-side engagement or conversion event. Only
// beacon event types are accepted; funnel steps cannot be forged this way.
func (s *FunnelService) RecordBeacon(ctx context.Context, in BeaconInput, v Visitor) error {
	if !model.BeaconEventTypes[in.EventType] {
		return ErrUnknownEventType
	}

	event := s.newEvent(in.EventType, in.URL, v)
	switch in.EventType {
	case model.EventEngagement:
		event.TimeSpent = in.TimeSpent
		event.MaxScroll = in.MaxScroll
	case model.EventStep2Engagement:
		event.TimeSpent = in.TimeSpent
		event.AdViews = in.AdViews
	case model.EventConversion:
		event.ConversionTime = in.Timestamp
		if event.ConversionTime == 0 {
			event.ConversionTime = s.clock.Now().Unix()
		}
	}

	s.record(ctx, event)
	return nil
}

// ActiveCourses lists currently active feed records, optionally filtered by
// category, best-rated first.
func (s *FunnelService) ActiveCourses(ctx context.Context, category string, limit int) []model.CourseRecord {
	return s.recommender.RelatedByCategory(ctx, category, "", limit)
}

// Stats summarizes the current feed snapshot.
func (s *FunnelService) Stats(ctx context.Context) FeedStats {
	now := s.clock.Now()
	latest := s.feed.ModTime()
	active := 0

	for _, c := range s.feed.LoadFeed(ctx) {
		if s.activity.IsActive(&c) {
			active++
		}
		if t := c.LatestUpdate(); t.After(latest) {
			latest = t
		}
	}
	if latest.IsZero() {
		latest = now
	}

	return FeedStats{
		ActiveCount:  active,
		UpdatedAt:    latest,
		UpdatedHuman: humanTime(now, latest),
	}
}

// HashIP produces the salted one-way visitor hash. The raw address is never
// stored and cannot be recovered from the hash.
func (s *FunnelService) HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip + s.salt))
	return hex.EncodeToString(sum[:])
}

// validateTarget checks syntax first (400-class), then the allow-list
// (403-class), and returns the target's host for display.
func (s *FunnelService) validateTarget(targetURL string) (string, error) {
	if targetURL == "" {
		return "", ErrInvalidTargetURL
	}

	u, err := url.Parse(targetURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return "", ErrInvalidTargetURL
	}

	host := strings.ToLower(u.Hostname())
	for _, d := range s.allowed {
		if host == d || strings.HasSuffix(host, "."+d) {
			return host, nil
		}
	}
	return "", ErrForbiddenDestination
}

func (s *FunnelService) buildDetail(targetURL string, course *model.CourseRecord) CourseDetail {
	detail := CourseDetail{
		Title:    "Premium Educational Course",
		Platform: "Udemy",
		Category: "Professional Development",
	}

	if slug := DeriveSlug(targetURL); slug != "" {
		detail.Title = titleFromSlug(slug)
	}

	if course != nil {
		detail.Matched = true
		detail.Course = course
		detail.Active = s.activity.IsActive(course)
		if course.Title != "" {
			detail.Title = course.Title
		}
		if course.Category != "" {
			detail.Category = course.Category
		}
	} else {
		// NoMatchFound is not an error: the funnel proceeds with the
		// URL-derived title and the general recommendation pool.
		detail.Active = true
	}
	return detail
}

func (s *FunnelService) newEvent(t model.EventType, subjectURL string, v Visitor) model.ClickEvent {
	return model.ClickEvent{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: s.clock.Now(),
		IPHash:    s.HashIP(v.IP),
		UserAgent: TruncateUserAgent(v.UserAgent),
		URL:       subjectURL,
		Referrer:  v.Referrer,
	}
}

// record appends the event, swallowing failures: analytics trouble is an
// operational concern, never a visitor-facing one.
func (s *FunnelService) record(ctx context.Context, event model.ClickEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Log(ctx, event); err != nil {
		s.logger.Error("failed to record click event",
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}
}

// titleFromSlug turns "intro-python" into "Intro Python".
func titleFromSlug(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
