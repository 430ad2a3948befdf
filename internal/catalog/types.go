package catalog

import (
	"time"

	"github.com/osd-exam/backend-registration/internal/examcode"
)

// Session is one bookable exam date+location combination as stored in the
// backing store's exam_sessions table.
type Session struct {
	ID            string   `json:"id"`
	Date          string   `json:"date"`
	Location      string   `json:"location"`
	Levels        []string `json:"levels"`
	IsActive      bool     `json:"is_active"`
	IsActiveUntil string   `json:"is_active_until,omitempty"`
}

// Selectable reports whether the session can still be booked: it must be
// active and, when a registration deadline is set, the current time must
// precede it.
func (s Session) Selectable(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	if s.IsActiveUntil == "" {
		return true
	}
	deadline, err := time.Parse("2006-01-02", s.IsActiveUntil)
	if err != nil {
		// An unparsable deadline does not block booking; the store owns the format.
		return true
	}
	// The deadline day itself is still open for registration.
	return now.Before(deadline.AddDate(0, 0, 1))
}

// Product is a priced exam offering from the exam_products table. Prices are
// in minor currency units (分).
type Product struct {
	ID              string              `json:"id"`
	Code            string              `json:"code"`
	Name            string              `json:"name"`
	Level           string              `json:"level"`
	Location        string              `json:"location"`
	ModuleType      examcode.ModuleType `json:"module_type"`
	PriceOriginal   int64               `json:"price_original"`
	PriceDiscounted *int64              `json:"price_discounted"`
	IsActive        bool                `json:"is_active"`
}

// Coupon is a discount authorization scoped to a single session.
type Coupon struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	SessionID string `json:"session_id"`
	IsActive  bool   `json:"is_active"`
}
