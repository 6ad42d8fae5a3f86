package service

import (
	"testing"
	"time"
)

func TestHumanTime(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "just now"},
		{5 * time.Minute, "5 min ago"},
		{90 * time.Minute, "1 hr ago"},
		{23 * time.Hour, "23 hr ago"},
		{48 * time.Hour, "2 days ago"},
	}
	for _, tc := range cases {
		if got := humanTime(now, now.Add(-tc.ago)); got != tc.want {
			t.Fatalf("humanTime(-%v) = %q, want %q", tc.ago, got, tc.want)
		}
	}

	if got := humanTime(now, time.Time{}); got != "" {
		t.Fatalf("zero time should render empty, got %q", got)
	}
}
