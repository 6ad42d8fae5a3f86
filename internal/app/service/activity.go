package service

import (
	"strings"

	"github.com/quicktrends/couponfunnel/internal/app/model"
)

// Coupon statuses that still count as usable.
var activeCouponStatuses = map[string]bool{
	"active":    true,
	"valid":     true,
	"available": true,
	"live":      true,
	"working":   true,
}

// ActivityEvaluator decides whether a course's coupon is still considered
// valid. The policy is fail-open: a record is active unless it carries
// explicit evidence of inactivity. Ambiguous or unparsable expiry data must
// not hide a possibly still-valid coupon.
type ActivityEvaluator struct {
	clock Clock
}

// NewActivityEvaluator returns an evaluator using the given clock.
func NewActivityEvaluator(clock Clock) *ActivityEvaluator {
	if clock == nil {
		clock = SystemClock()
	}
	return &ActivityEvaluator{clock: clock}
}

// IsActive evaluates the lifecycle signals in fixed precedence order, first
// match wins: expired flag, active flag, coupon status, then each expiry
// timestamp. Expiry uses a strict past comparison, so a coupon expiring at
// this exact instant is still active.
func (e *ActivityEvaluator) IsActive(c *model.CourseRecord) bool {
	if c == nil {
		return true
	}

	if c.Expired != nil && *c.Expired {
		return false
	}
	if c.Active != nil && !*c.Active {
		return false
	}
	if c.CouponStatus != "" && !activeCouponStatuses[strings.ToLower(c.CouponStatus)] {
		return false
	}

	now := e.clock.Now()
	for _, sig := range c.ExpirySignals() {
		if now.After(sig.At) {
			return false
		}
	}
	return true
}
