// Package coupon validates discount codes against the backing store. A coupon
// is only good for the exact (code, session, active) triple; a miss is a
// normal negative outcome, not an error.
package coupon

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/osd-exam/backend-registration/internal/catalog"
)

// Result is the outcome of a validation attempt. Valid=false with a Message
// is the expected shape for every non-matching code; transport failures are
// reported separately as errors.
type Result struct {
	Valid   bool            `json:"valid"`
	Message string          `json:"message"`
	Coupon  *catalog.Coupon `json:"coupon,omitempty"`
}

// Service runs coupon lookups through the catalog query capability.
type Service struct {
	Client *catalog.Client
	Logger zerolog.Logger
}

// Validate checks a coupon code against a session. The code must be non-empty
// after trimming and the session must be the one currently selected. Zero
// matching rows yields a negative Result; only a failing store query returns
// an error.
func (s *Service) Validate(ctx context.Context, code, sessionID string) (Result, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return Result{Valid: false, Message: "请输入专属代码"}, nil
	}
	if sessionID == "" {
		return Result{Valid: false, Message: "请先选择考试场次"}, nil
	}
	coupons, err := s.Client.Coupons(ctx, trimmed, sessionID)
	if err != nil {
		s.Logger.Error().Err(err).Str("session_id", sessionID).Msg("coupon lookup failed")
		return Result{}, err
	}
	if len(coupons) == 0 {
		return Result{Valid: false, Message: "专属代码无效或不适用于此场次"}, nil
	}
	c := coupons[0]
	return Result{Valid: true, Message: "专属代码验证成功！", Coupon: &c}, nil
}
