package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/quicktrends/couponfunnel/internal/app/model"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time { return f.t }

func boolPtr(b bool) *bool { return &b }

func flexTime(t time.Time) model.FlexTime { return model.FlexTime{Time: t} }

func TestIsActive_FailOpen(t *testing.T) {
	eval := NewActivityEvaluator(&fakeClock{t: time.Now()})

	if !eval.IsActive(&model.CourseRecord{URL: "https://x.test/course/a/"}) {
		t.Fatal("record with no lifecycle signals must be active")
	}
	if !eval.IsActive(nil) {
		t.Fatal("nil record must be active")
	}
}

func TestIsActive_Precedence(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	eval := NewActivityEvaluator(&fakeClock{t: now})

	// An explicit expired flag wins over everything else.
	c := &model.CourseRecord{
		Expired:      boolPtr(true),
		Active:       boolPtr(true),
		CouponStatus: "active",
	}
	if eval.IsActive(c) {
		t.Fatal("expired=true must override active=true")
	}

	// active=false wins over a usable coupon status.
	c = &model.CourseRecord{
		Active:       boolPtr(false),
		CouponStatus: "active",
	}
	if eval.IsActive(c) {
		t.Fatal("active=false must override coupon_status")
	}

	// A usable coupon status short-circuits before the expiry fields, so a
	// past expiry on the same record does not matter... unless the status is
	// unusable, which is terminal.
	c = &model.CourseRecord{CouponStatus: "expired"}
	if eval.IsActive(c) {
		t.Fatal("unrecognized coupon_status must be inactive")
	}
}

func TestIsActive_CouponStatuses(t *testing.T) {
	eval := NewActivityEvaluator(&fakeClock{t: time.Now()})

	for _, status := range []string{"active", "Valid", "AVAILABLE", "live", "working"} {
		if !eval.IsActive(&model.CourseRecord{CouponStatus: status}) {
			t.Fatalf("status %q should be active", status)
		}
	}
	for _, status := range []string{"expired", "dead", "used", "unknown"} {
		if eval.IsActive(&model.CourseRecord{CouponStatus: status}) {
			t.Fatalf("status %q should be inactive", status)
		}
	}
}

func TestIsActive_ExpiryBoundary(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	eval := NewActivityEvaluator(&fakeClock{t: now})

	// Expiring at this exact instant is still active; strictly past is not.
	c := &model.CourseRecord{ExpiresAt: flexTime(now)}
	if !eval.IsActive(c) {
		t.Fatal("expiry equal to now must still be active")
	}

	c = &model.CourseRecord{ExpiresAt: flexTime(now.Add(-time.Second))}
	if eval.IsActive(c) {
		t.Fatal("expiry one second past must be inactive")
	}

	c = &model.CourseRecord{ExpiresAt: flexTime(now.Add(time.Hour))}
	if !eval.IsActive(c) {
		t.Fatal("future expiry must be active")
	}
}

func TestIsActive_FirstExpiryFieldWins(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	eval := NewActivityEvaluator(&fakeClock{t: now})

	// Any present expiry field in the past marks the record inactive, even
	// when an earlier-precedence field is still in the future.
	c := &model.CourseRecord{
		ExpiresAt: flexTime(now.Add(time.Hour)),
		ValidTill: flexTime(now.Add(-time.Hour)),
	}
	if eval.IsActive(c) {
		t.Fatal("any past expiry signal must mark the record inactive")
	}
}

func TestIsActive_UnparsableExpiryIgnored(t *testing.T) {
	var c model.CourseRecord
	if err := json.Unmarshal([]byte(`{"url":"https://x.test/course/a/","expires_at":"soon"}`), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(c.ExpirySignals()) != 0 {
		t.Fatal("unparsable expiry must not produce a signal")
	}

	eval := NewActivityEvaluator(&fakeClock{t: time.Now()})
	if !eval.IsActive(&c) {
		t.Fatal("unparsable expiry must leave the record active")
	}
}
