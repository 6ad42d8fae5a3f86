package model

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// CourseRecord is one course offer as exported by the scraping bot. The feed
// is scraped from several sources, so most fields are optional and a few use
// forgiving types that absorb the shape differences between scrapers.
type CourseRecord struct {
	URL         string     `json:"url"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Image       string     `json:"image,omitempty"`
	Category    string     `json:"category,omitempty"`
	Language    string     `json:"language,omitempty"`
	Level       string     `json:"level,omitempty"`
	Duration    string     `json:"duration,omitempty"`
	Lectures    FlexString `json:"lectures,omitempty"`
	Subtitle    string     `json:"subtitle,omitempty"`

	Rating   FlexFloat  `json:"rating,omitempty"`
	Students FlexString `json:"students,omitempty"`

	// Recency candidates; whichever are present feed into the stats endpoint.
	ScrapedAt   FlexTime `json:"scraped_at,omitempty"`
	UpdatedAt   FlexTime `json:"updated_at,omitempty"`
	PublishedAt FlexTime `json:"published_at,omitempty"`
	Timestamp   FlexTime `json:"timestamp,omitempty"`
	Date        FlexTime `json:"date,omitempty"`

	// Lifecycle flags. Pointers distinguish "absent" from "false".
	Expired      *bool  `json:"expired,omitempty"`
	Active       *bool  `json:"active,omitempty"`
	CouponStatus string `json:"coupon_status,omitempty"`

	// Expiry candidates; evaluated in this order by the activity check.
	ExpiresAt    FlexTime `json:"expires_at,omitempty"`
	Expiry       FlexTime `json:"expiry,omitempty"`
	Expires      FlexTime `json:"expires,omitempty"`
	CouponExpiry FlexTime `json:"coupon_expiry,omitempty"`
	ValidTill    FlexTime `json:"valid_till,omitempty"`
	EndDate      FlexTime `json:"end_date,omitempty"`
	CouponEnd    FlexTime `json:"coupon_end,omitempty"`
	ExpiryTime   FlexTime `json:"expiry_time,omitempty"`

	Learn            StringList `json:"learn,omitempty"`
	WhatYouWillLearn StringList `json:"what_you_will_learn,omitempty"`
	Objectives       StringList `json:"objectives,omitempty"`
	Requirements     StringList `json:"requirements,omitempty"`
	Audience         StringList `json:"audience,omitempty"`
	WhoIsFor         StringList `json:"who_is_for,omitempty"`
}

// ExpirySignal is one named expiry timestamp extracted from a record.
type ExpirySignal struct {
	Name string
	At   time.Time
}

// ExpirySignals returns the expiry timestamps present on the record, in the
// fixed precedence order the activity check evaluates them.
func (c *CourseRecord) ExpirySignals() []ExpirySignal {
	candidates := []struct {
		name string
		t    FlexTime
	}{
		{"expires_at", c.ExpiresAt},
		{"expiry", c.Expiry},
		{"expires", c.Expires},
		{"coupon_expiry", c.CouponExpiry},
		{"valid_till", c.ValidTill},
		{"end_date", c.EndDate},
		{"coupon_end", c.CouponEnd},
		{"expiry_time", c.ExpiryTime},
	}

	var out []ExpirySignal
	for _, cand := range candidates {
		if !cand.t.IsZero() {
			out = append(out, ExpirySignal{Name: cand.name, At: cand.t.Time})
		}
	}
	return out
}

// LatestUpdate returns the most recent recency timestamp on the record, or
// the zero time when none is present.
func (c *CourseRecord) LatestUpdate() time.Time {
	var latest time.Time
	for _, t := range []FlexTime{c.UpdatedAt, c.PublishedAt, c.Timestamp, c.ScrapedAt, c.Date} {
		if t.After(latest) {
			latest = t.Time
		}
	}
	return latest
}

// LearnPoints returns the first non-empty "what you will learn" list.
func (c *CourseRecord) LearnPoints() []string {
	for _, l := range []StringList{c.Learn, c.WhatYouWillLearn, c.Objectives} {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}

// AudienceList returns the first non-empty target-audience list.
func (c *CourseRecord) AudienceList() []string {
	for _, l := range []StringList{c.Audience, c.WhoIsFor} {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}

// HDImage upgrades udemycdn course thumbnails to the high-resolution variant.
func (c *CourseRecord) HDImage() string {
	if strings.Contains(c.Image, "img-c.udemycdn.com") && strings.Contains(c.Image, "/course/750x422/") {
		return strings.Replace(c.Image, "/course/750x422/", "/course/1250x720/", 1)
	}
	return c.Image
}

// FlexTime absorbs the timestamp shapes seen in scraped feeds: unix epoch
// numbers (also as strings) or any common date layout. Unparsable values
// decode to the zero time rather than an error.
type FlexTime struct {
	time.Time
}

func (t *FlexTime) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}

	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	s := string(raw)
	if raw[0] == '"' {
		var err error
		if s, err = strconv.Unquote(s); err != nil {
			return nil
		}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		if epoch > 0 {
			t.Time = time.Unix(epoch, 0).UTC()
		}
		return nil
	}

	if parsed, err := dateparse.ParseAny(s); err == nil && parsed.Unix() > 0 {
		t.Time = parsed
	}
	return nil
}

func (t FlexTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

// FlexFloat decodes numbers that some scrapers quote as strings.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = 0

	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	s := string(raw)
	if raw[0] == '"' {
		var err error
		if s, err = strconv.Unquote(s); err != nil {
			return nil
		}
	}

	if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		*f = FlexFloat(v)
	}
	return nil
}

// FlexString decodes a JSON string or number into a string. Feeds report
// counts like "students" either way.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	*s = ""

	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	if raw[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return nil
		}
		*s = FlexString(str)
		return nil
	}

	*s = FlexString(raw)
	return nil
}

// sentenceSplit breaks free text on newlines, semicolons, and full stops.
// Commas followed by a capital letter are handled separately, since Go's
// regexp has no lookahead.
var sentenceSplit = regexp.MustCompile(`\n|;|\.`)

// StringList decodes either an array of strings or a single delimited blob
// into a cleaned list of items.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	*l = nil

	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	if raw[0] == '[' {
		var items []string
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		for _, item := range items {
			if t := strings.TrimSpace(item); len(t) > 1 {
				*l = append(*l, t)
			}
		}
		return nil
	}

	var blob string
	if err := json.Unmarshal(raw, &blob); err != nil {
		return nil
	}
	*l = splitFreeText(blob)
	return nil
}

func splitFreeText(blob string) []string {
	blob = strings.NewReplacer("•", "\n", "\r", "").Replace(blob)

	var out []string
	for _, part := range splitOnDelimiters(blob) {
		t := strings.Trim(part, " -\t\n")
		if len(t) > 3 {
			out = append(out, t)
		}
	}
	return out
}

func splitOnDelimiters(s string) []string {
	var parts []string
	for _, chunk := range sentenceSplit.Split(s, -1) {
		parts = append(parts, splitOnCommaCapital(chunk)...)
	}
	return parts
}

func splitOnCommaCapital(s string) []string {
	var parts []string
	last := 0
	runes := []rune(s)
	for i := 0; i < len(runes)-1; i++ {
		if runes[i] != ',' {
			continue
		}
		j := i + 1
		for j < len(runes) && runes[j] == ' ' {
			j++
		}
		if j < len(runes) && runes[j] >= 'A' && runes[j] <= 'Z' {
			parts = append(parts, string(runes[last:i]))
			last = j
		}
	}
	parts = append(parts, string(runes[last:]))
	return parts
}
