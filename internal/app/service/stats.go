package service

import (
	"fmt"
	"time"
)

// FeedStats summarizes the current feed snapshot for the catalog pages.
type FeedStats struct {
	ActiveCount  int       `json:"active_count"`
	UpdatedAt    time.Time `json:"updated_at"`
	UpdatedHuman string    `json:"updated_human"`
}

// humanTime renders a coarse "how long ago" label.
func humanTime(now, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d min ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hr ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	}
}
