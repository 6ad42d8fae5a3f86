package model

import "time"

// EventType identifies one kind of funnel occurrence.
type EventType string

const (
	EventLanding         EventType = "landing"
	EventFinal           EventType = "final"
	EventEngagement      EventType = "engagement"
	EventConversion      EventType = "conversion"
	EventStep2Engagement EventType = "step2_engagement"
)

// BeaconEventTypes are the types the client-side analytics beacon may send.
// Funnel steps (landing, final) are only ever recorded server-side.
var BeaconEventTypes = map[EventType]bool{
	EventEngagement:      true,
	EventConversion:      true,
	EventStep2Engagement: true,
}

// LogFileName maps an event type to its append-only log file. Landing and
// final share the funnel click log; the Step field tells them apart.
func (t EventType) LogFileName() string {
	switch t {
	case EventLanding, EventFinal:
		return "clicks.log"
	case EventEngagement:
		return "engagement.log"
	case EventConversion:
		return "conversions.log"
	case EventStep2Engagement:
		return "step2_engagement.log"
	default:
		return "unknown.log"
	}
}

// ClickEvent is one recorded funnel or engagement occurrence. Events are
// appended to per-type log files and, when the mirror is enabled, published
// to JetStream and warehoused in Postgres. IPHash is a salted one-way hash;
// the raw client address is never stored.
type ClickEvent struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Type      EventType `json:"type" gorm:"size:24;index"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`
	IPHash    string    `json:"ip_hash" gorm:"size:64;index"`
	UserAgent string    `json:"user_agent,omitempty" gorm:"size:200"`
	URL       string    `json:"url,omitempty" gorm:"type:text"`
	Referrer  string    `json:"referrer,omitempty" gorm:"type:text"`

	// Step distinguishes the two funnel states on shared log files.
	Step string `json:"step,omitempty" gorm:"size:16"`

	// Engagement payload.
	TimeSpent int `json:"time_spent,omitempty"`
	MaxScroll int `json:"max_scroll,omitempty"`
	AdViews   int `json:"ad_views,omitempty"`

	// Conversion payload: the client-reported departure time (unix seconds).
	ConversionTime int64 `json:"conversion_time,omitempty"`

	// First landing from this ip_hash today.
	UniqueImpression bool `json:"unique_impression,omitempty"`
}

const (
	ClickStreamName     = "FUNNEL_CLICKS"
	ClickStreamSubject  = "funnel.clicks"
	ClickConsumerName   = "click-warehouse"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
