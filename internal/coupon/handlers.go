package coupon

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/osd-exam/backend-registration/internal/common"
	"github.com/osd-exam/backend-registration/internal/obs"
)

// Handler exposes coupon validation over HTTP.
type Handler struct {
	Svc    *Service
	Logger zerolog.Logger
}

type validateRequest struct {
	Code      string `json:"code"`
	SessionID string `json:"sessionId"`
}

// Validate handles POST /api/coupons/validate. Negative outcomes are 200s
// with valid=false; only a failing catalog query is surfaced as an error,
// prompting the caller to retry.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	result, err := h.Svc.Validate(r.Context(), req.Code, req.SessionID)
	if err != nil {
		common.JSONError(w, http.StatusBadGateway, "CATALOG_QUERY_FAILED", "验证专属代码时发生错误，请稍后重试", nil)
		return
	}
	if obs.CouponValidations != nil {
		outcome := "invalid"
		if result.Valid {
			outcome = "valid"
		}
		obs.CouponValidations.WithLabelValues(outcome).Inc()
	}
	common.JSON(w, http.StatusOK, result)
}
