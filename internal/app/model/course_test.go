package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFlexTime_EpochNumber(t *testing.T) {
	var ft FlexTime
	if err := json.Unmarshal([]byte(`1700000000`), &ft); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if ft.Unix() != 1700000000 {
		t.Fatalf("expected epoch 1700000000, got %d", ft.Unix())
	}
}

func TestFlexTime_EpochString(t *testing.T) {
	var ft FlexTime
	if err := json.Unmarshal([]byte(`"1700000000"`), &ft); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if ft.Unix() != 1700000000 {
		t.Fatalf("expected epoch 1700000000, got %d", ft.Unix())
	}
}

func TestFlexTime_DateString(t *testing.T) {
	var ft FlexTime
	if err := json.Unmarshal([]byte(`"2026-03-01 12:30:00"`), &ft); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if ft.IsZero() {
		t.Fatal("expected a parsed time")
	}
	if ft.Year() != 2026 || ft.Month() != time.March {
		t.Fatalf("unexpected parse result: %v", ft.Time)
	}
}

func TestFlexTime_GarbageIsAbsent(t *testing.T) {
	for _, raw := range []string{`"soon"`, `""`, `null`, `{}`, `"0"`} {
		var ft FlexTime
		if err := json.Unmarshal([]byte(raw), &ft); err != nil {
			t.Fatalf("unmarshal %s: unexpected error %v", raw, err)
		}
		if !ft.IsZero() {
			t.Fatalf("expected %s to decode to the zero time, got %v", raw, ft.Time)
		}
	}
}

func TestFlexFloat_QuotedNumber(t *testing.T) {
	var f FlexFloat
	if err := json.Unmarshal([]byte(`"4.8"`), &f); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if f != 4.8 {
		t.Fatalf("expected 4.8, got %v", f)
	}
}

func TestFlexString_Number(t *testing.T) {
	var s FlexString
	if err := json.Unmarshal([]byte(`12345`), &s); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if s != "12345" {
		t.Fatalf("expected \"12345\", got %q", s)
	}
}

func TestStringList_Array(t *testing.T) {
	var l StringList
	if err := json.Unmarshal([]byte(`["Build APIs", " ", "Deploy to prod "]`), &l); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(l) != 2 || l[0] != "Build APIs" || l[1] != "Deploy to prod" {
		t.Fatalf("unexpected list: %#v", l)
	}
}

func TestStringList_DelimitedBlob(t *testing.T) {
	var l StringList
	if err := json.Unmarshal([]byte(`"Learn Go basics\nWrite tests; Ship it"`), &l); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(l) != 3 {
		t.Fatalf("expected 3 items, got %#v", l)
	}
	if l[0] != "Learn Go basics" || l[2] != "Ship it" {
		t.Fatalf("unexpected items: %#v", l)
	}
}

func TestCourseRecord_ExpirySignalOrder(t *testing.T) {
	raw := `{
		"url": "https://x.test/course/a/",
		"valid_till": 1700000000,
		"expires_at": 1800000000
	}`

	var c CourseRecord
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	signals := c.ExpirySignals()
	if len(signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(signals))
	}
	if signals[0].Name != "expires_at" || signals[1].Name != "valid_till" {
		t.Fatalf("signals out of precedence order: %#v", signals)
	}
}

func TestCourseRecord_LatestUpdate(t *testing.T) {
	raw := `{"url":"u","scraped_at":1700000000,"updated_at":1710000000}`

	var c CourseRecord
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if c.LatestUpdate().Unix() != 1710000000 {
		t.Fatalf("expected latest 1710000000, got %d", c.LatestUpdate().Unix())
	}
}

func TestCourseRecord_HDImage(t *testing.T) {
	c := CourseRecord{Image: "https://img-c.udemycdn.com/course/750x422/123.jpg"}
	want := "https://img-c.udemycdn.com/course/1250x720/123.jpg"
	if got := c.HDImage(); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}

	c = CourseRecord{Image: "https://elsewhere.example/pic.jpg"}
	if got := c.HDImage(); got != c.Image {
		t.Fatalf("non-udemycdn image should pass through, got %s", got)
	}
}

func TestEventType_LogFileName(t *testing.T) {
	cases := map[EventType]string{
		EventLanding:         "clicks.log",
		EventFinal:           "clicks.log",
		EventEngagement:      "engagement.log",
		EventConversion:      "conversions.log",
		EventStep2Engagement: "step2_engagement.log",
	}
	for et, want := range cases {
		if got := et.LogFileName(); got != want {
			t.Fatalf("%s: expected %s, got %s", et, want, got)
		}
	}
}
