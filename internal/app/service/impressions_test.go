package service

import (
	"testing"
	"time"
)

func TestDailyImpressions_FirstAndRepeat(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
	tracker := NewDailyImpressions(clock)

	if !tracker.FirstToday("hash-a") {
		t.Fatal("first landing must be unique")
	}
	if tracker.FirstToday("hash-a") {
		t.Fatal("repeat landing must not be unique")
	}
	if !tracker.FirstToday("hash-b") {
		t.Fatal("a different visitor must be unique")
	}
}

func TestDailyImpressions_DayRollover(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)}
	tracker := NewDailyImpressions(clock)

	if !tracker.FirstToday("hash-a") {
		t.Fatal("first landing must be unique")
	}

	clock.t = clock.t.Add(2 * time.Minute)
	if !tracker.FirstToday("hash-a") {
		t.Fatal("the same visitor counts as unique again after midnight")
	}
	if tracker.FirstToday("hash-a") {
		t.Fatal("repeat within the new day must not be unique")
	}
}
