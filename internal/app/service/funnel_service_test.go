package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/quicktrends/couponfunnel/internal/app/model"
)

type capturingLogger struct {
	events []model.ClickEvent
}

func (c *capturingLogger) Log(_ context.Context, event model.ClickEvent) error {
	c.events = append(c.events, event)
	return nil
}

func newTestFunnel(feed *stubFeed, events EventLogger, clock Clock) *FunnelService {
	return NewFunnelService(FunnelDeps{
		Feed:           feed,
		Recommender:    newTestRecommender(feed, newMemCache(), clock),
		Events:         events,
		AllowedDomains: []string{"udemy.com", "Coursera.org "},
		IPHashSalt:     "test-salt",
		Clock:          clock,
	})
}

var testVisitor = Visitor{
	IP:        "203.0.113.7",
	UserAgent: "Mozilla/5.0",
	Referrer:  "https://t.me/channel",
}

func TestLanding_HappyPath(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	feed := &stubFeed{records: []model.CourseRecord{
		course("intro-python", "dev", 4.5),
		course("other-a", "dev", 4.0),
		course("other-b", "dev", 3.5),
	}}
	events := &capturingLogger{}
	svc := newTestFunnel(feed, events, clock)

	res, err := svc.Landing(context.Background(), "https://www.udemy.com/course/intro-python/", testVisitor)
	if err != nil {
		t.Fatalf("landing: %v", err)
	}

	if res.DisplayHost != "www.udemy.com" {
		t.Fatalf("unexpected display host %q", res.DisplayHost)
	}
	if !res.Detail.Matched || res.Detail.Title != "intro-python" {
		t.Fatalf("expected matched course, got %+v", res.Detail)
	}
	for _, c := range append(append([]model.CourseRecord{}, res.TopSimilar...), res.BottomRelated...) {
		if DeriveSlug(c.URL) == "intro-python" {
			t.Fatal("recommendations must exclude the target course")
		}
	}

	if len(events.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events.events))
	}
	e := events.events[0]
	if e.Type != model.EventLanding || e.Step != "landing" {
		t.Fatalf("unexpected event %+v", e)
	}
	if !e.UniqueImpression {
		t.Fatal("first landing of the day must be a unique impression")
	}
	if e.Timestamp != clock.t {
		t.Fatal("event must carry the clock time")
	}
}

func TestLanding_RepeatVisitorNotUnique(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	feed := &stubFeed{records: nil}
	events := &capturingLogger{}
	svc := newTestFunnel(feed, events, clock)

	target := "https://www.udemy.com/course/a/"
	if _, err := svc.Landing(context.Background(), target, testVisitor); err != nil {
		t.Fatalf("landing: %v", err)
	}
	if _, err := svc.Landing(context.Background(), target, testVisitor); err != nil {
		t.Fatalf("landing: %v", err)
	}

	if !events.events[0].UniqueImpression || events.events[1].UniqueImpression {
		t.Fatal("only the first landing per visitor per day is unique")
	}
}

func TestLanding_NoMatchFallsBackToSlugTitle(t *testing.T) {
	svc := newTestFunnel(&stubFeed{}, &capturingLogger{}, &fakeClock{t: time.Now()})

	res, err := svc.Landing(context.Background(), "https://www.udemy.com/course/learn-go-fast/", testVisitor)
	if err != nil {
		t.Fatalf("landing: %v", err)
	}
	if res.Detail.Matched {
		t.Fatal("no feed record should match")
	}
	if res.Detail.Title != "Learn Go Fast" {
		t.Fatalf("expected slug-derived title, got %q", res.Detail.Title)
	}
	if !res.Detail.Active {
		t.Fatal("unmatched targets default to active")
	}
	if res.Detail.Platform != "Udemy" || res.Detail.Category != "Professional Development" {
		t.Fatalf("expected default platform and category, got %+v", res.Detail)
	}
}

func TestLanding_InvalidTarget(t *testing.T) {
	events := &capturingLogger{}
	svc := newTestFunnel(&stubFeed{}, events, &fakeClock{t: time.Now()})

	for _, target := range []string{
		"",
		"javascript:alert(1)",
		"ftp://udemy.com/course/a/",
		"https:///no-host",
		"not a url",
	} {
		if _, err := svc.Landing(context.Background(), target, testVisitor); err != ErrInvalidTargetURL {
			t.Fatalf("target %q: expected ErrInvalidTargetURL, got %v", target, err)
		}
	}
	if len(events.events) != 0 {
		t.Fatal("rejected requests must not record events")
	}
}

func TestLanding_ForbiddenDestination(t *testing.T) {
	events := &capturingLogger{}
	svc := newTestFunnel(&stubFeed{}, events, &fakeClock{t: time.Now()})

	for _, target := range []string{
		"https://evil.example/phish",
		"https://udemy.com.evil.example/course/a/",
		"https://notudemy.com/course/a/",
	} {
		if _, err := svc.Landing(context.Background(), target, testVisitor); err != ErrForbiddenDestination {
			t.Fatalf("target %q: expected ErrForbiddenDestination, got %v", target, err)
		}
	}
	if len(events.events) != 0 {
		t.Fatal("forbidden requests must not record events")
	}
}

func TestValidateTarget_AllowListMatching(t *testing.T) {
	svc := newTestFunnel(&stubFeed{}, nil, &fakeClock{t: time.Now()})

	// Exact domain, subdomains, and case-folded config entries all pass.
	for _, target := range []string{
		"https://udemy.com/course/a/",
		"https://www.udemy.com/course/a/",
		"http://WWW.UDEMY.COM/course/a/",
		"https://www.coursera.org/learn/x",
	} {
		if _, err := svc.Landing(context.Background(), target, testVisitor); err != nil {
			t.Fatalf("target %q should be allowed: %v", target, err)
		}
	}
}

func TestFinal_RevalidatesAndRecords(t *testing.T) {
	events := &capturingLogger{}
	svc := newTestFunnel(&stubFeed{}, events, &fakeClock{t: time.Now()})

	res, err := svc.Final(context.Background(), "https://www.udemy.com/course/a/", testVisitor)
	if err != nil {
		t.Fatalf("final: %v", err)
	}
	if res.OutboundURL != "https://www.udemy.com/course/a/" {
		t.Fatalf("unexpected outbound URL %q", res.OutboundURL)
	}

	if _, err := svc.Final(context.Background(), "https://evil.example/", testVisitor); err != ErrForbiddenDestination {
		t.Fatalf("deep-linked final must re-check the allow-list, got %v", err)
	}

	if len(events.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events.events))
	}
	if events.events[0].Type != model.EventFinal || events.events[0].Step != "final" {
		t.Fatalf("unexpected event %+v", events.events[0])
	}
}

func TestHashIP_NeverLeaksAddress(t *testing.T) {
	svc := newTestFunnel(&stubFeed{}, nil, &fakeClock{t: time.Now()})

	hash := svc.HashIP("203.0.113.7")
	if len(hash) != 64 {
		t.Fatalf("expected sha256 hex, got %d chars", len(hash))
	}
	if strings.Contains(hash, "203.0.113.7") {
		t.Fatal("hash must not contain the raw address")
	}
	if hash != svc.HashIP("203.0.113.7") {
		t.Fatal("hash must be deterministic for a fixed salt")
	}
	if hash == svc.HashIP("203.0.113.8") {
		t.Fatal("different addresses must hash differently")
	}
}

func TestRecordBeacon(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	events := &capturingLogger{}
	svc := newTestFunnel(&stubFeed{}, events, clock)

	err := svc.RecordBeacon(context.Background(), BeaconInput{
		EventType: model.EventEngagement,
		URL:       "https://www.udemy.com/course/a/",
		TimeSpent: 42,
		MaxScroll: 87,
	}, testVisitor)
	if err != nil {
		t.Fatalf("engagement: %v", err)
	}

	err = svc.RecordBeacon(context.Background(), BeaconInput{
		EventType: model.EventStep2Engagement,
		TimeSpent: 15,
		AdViews:   3,
	}, testVisitor)
	if err != nil {
		t.Fatalf("step2: %v", err)
	}

	// Conversion without a client timestamp falls back to the server clock.
	err = svc.RecordBeacon(context.Background(), BeaconInput{
		EventType: model.EventConversion,
	}, testVisitor)
	if err != nil {
		t.Fatalf("conversion: %v", err)
	}

	if len(events.events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events.events))
	}
	if e := events.events[0]; e.TimeSpent != 42 || e.MaxScroll != 87 {
		t.Fatalf("engagement payload lost: %+v", e)
	}
	if e := events.events[1]; e.TimeSpent != 15 || e.AdViews != 3 {
		t.Fatalf("step2 payload lost: %+v", e)
	}
	if e := events.events[2]; e.ConversionTime != clock.t.Unix() {
		t.Fatalf("expected server-clock conversion time, got %d", e.ConversionTime)
	}
}

func TestRecordBeacon_RejectsFunnelTypes(t *testing.T) {
	events := &capturingLogger{}
	svc := newTestFunnel(&stubFeed{}, events, &fakeClock{t: time.Now()})

	for _, typ := range []model.EventType{model.EventLanding, model.EventFinal, "bogus", ""} {
		err := svc.RecordBeacon(context.Background(), BeaconInput{EventType: typ}, testVisitor)
		if err != ErrUnknownEventType {
			t.Fatalf("type %q: expected ErrUnknownEventType, got %v", typ, err)
		}
	}
	if len(events.events) != 0 {
		t.Fatal("rejected beacons must not record events")
	}
}

func TestStats(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	updated := now.Add(-30 * time.Minute)

	dead := course("dead", "dev", 4.0)
	dead.Expired = boolPtr(true)

	fresh := course("fresh", "dev", 4.5)
	fresh.UpdatedAt = flexTime(updated)

	feed := &stubFeed{
		records: []model.CourseRecord{fresh, course("plain", "dev", 3.0), dead},
		mod:     now.Add(-2 * time.Hour),
	}
	svc := newTestFunnel(feed, nil, &fakeClock{t: now})

	stats := svc.Stats(context.Background())
	if stats.ActiveCount != 2 {
		t.Fatalf("expected 2 active courses, got %d", stats.ActiveCount)
	}
	if !stats.UpdatedAt.Equal(updated) {
		t.Fatalf("expected record timestamp to win over feed mtime, got %v", stats.UpdatedAt)
	}
	if stats.UpdatedHuman != "30 min ago" {
		t.Fatalf("unexpected human time %q", stats.UpdatedHuman)
	}
}

func TestActiveCourses_CategoryAndLimit(t *testing.T) {
	feed := &stubFeed{records: []model.CourseRecord{
		course("a", "dev", 4.0),
		course("b", "dev", 5.0),
		course("c", "design", 3.0),
	}}
	svc := newTestFunnel(feed, nil, &fakeClock{t: time.Now()})

	got := svc.ActiveCourses(context.Background(), "dev", 1)
	if len(got) != 1 || got[0].Title != "b" {
		t.Fatalf("expected top-rated dev course, got %+v", got)
	}

	all := svc.ActiveCourses(context.Background(), "", 10)
	if len(all) != 3 {
		t.Fatalf("expected all 3 courses, got %d", len(all))
	}
}
