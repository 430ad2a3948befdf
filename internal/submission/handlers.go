package submission

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/osd-exam/backend-registration/internal/catalog"
	"github.com/osd-exam/backend-registration/internal/common"
	"github.com/osd-exam/backend-registration/internal/coupon"
	"github.com/osd-exam/backend-registration/internal/obs"
	"github.com/osd-exam/backend-registration/internal/pricing"
	"github.com/osd-exam/backend-registration/internal/selection"
)

// insertAttempts bounds application-id regeneration on collision.
const insertAttempts = 5

// Enqueuer hands persisted submissions to the workflow queue.
type Enqueuer interface {
	EnqueueRegistration(ctx context.Context, applicationID string) error
	EnqueuePaymentProof(ctx context.Context, applicationID string) error
}

// CouponValidator re-validates a claimed coupon server-side.
type CouponValidator interface {
	Validate(ctx context.Context, code, sessionID string) (coupon.Result, error)
}

// Handler serves the registration intake and admin listing endpoints. Now is
// injectable for deadline tests and defaults to time.Now.
type Handler struct {
	Store    Store
	Loader   *catalog.Loader
	Coupons  CouponValidator
	Queue    Enqueuer
	Validate *validator.Validate
	Now      func() time.Time
	Logger   zerolog.Logger
}

// Routes mounts the submission endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/registrations", h.Create)
	r.Post("/registrations/{applicationID}/payment-proof", h.AttachProof)
	r.Get("/registrations", h.ListRegistrations)
	r.Get("/payment-proofs", h.ListProofs)
}

// Create handles POST /api/registrations. Fees and coupon eligibility are
// recomputed server-side from the raw codes; the client's own numbers are
// never trusted.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		countRegistration("invalid")
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := h.Validate.Struct(in); err != nil {
		countRegistration("invalid")
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "表单校验未通过", validationDetails(err))
		return
	}

	snapshot, err := h.Loader.Load(r.Context())
	if err != nil {
		h.Logger.Error().Err(err).Msg("catalog load failed during intake")
		countRegistration("error")
		common.JSONError(w, http.StatusBadGateway, "CATALOG_QUERY_FAILED", "无法加载考试信息，请稍后重试", nil)
		return
	}
	// Replay the submitted choices through the selection rules. The client
	// cannot be trusted to have enforced them, and a set the machine would
	// rewrite (Full alongside its own singles, codes across levels) is
	// rejected rather than silently corrected.
	machine := selection.Machine{Catalog: snapshot, Now: h.Now, Logger: h.Logger}
	var sel selection.State
	if err := machine.SelectSession(&sel, in.SessionID); err != nil {
		countRegistration("invalid")
		if errors.Is(err, selection.ErrSessionNotSelectable) {
			common.JSONError(w, http.StatusUnprocessableEntity, "SESSION_CLOSED", "所选考试场次已截止报名", nil)
			return
		}
		common.JSONError(w, http.StatusUnprocessableEntity, "UNKNOWN_SESSION", "所选考试场次不存在", nil)
		return
	}
	for _, code := range in.ExamSessions {
		if err := machine.SelectProduct(&sel, code); err != nil {
			countRegistration("invalid")
			common.JSONError(w, http.StatusUnprocessableEntity, "UNKNOWN_PRODUCT", "所选考试科目不存在", map[string]string{"code": code})
			return
		}
	}
	pricer := pricing.Engine{Catalog: snapshot, Logger: h.Logger}
	if !equalCodeSets(sel.Codes, pricer.Promote(in.ExamSessions)) {
		countRegistration("invalid")
		common.JSONError(w, http.StatusUnprocessableEntity, "SELECTION_CONFLICT", "所选考试科目互相冲突，请重新选择",
			map[string]any{"resolved": sel.Codes})
		return
	}

	couponApplied := false
	if strings.TrimSpace(in.CouponCode) != "" {
		result, err := h.Coupons.Validate(r.Context(), in.CouponCode, in.SessionID)
		if err != nil {
			countRegistration("error")
			common.JSONError(w, http.StatusBadGateway, "CATALOG_QUERY_FAILED", "验证专属代码时发生错误，请稍后重试", nil)
			return
		}
		couponApplied = result.Valid
	}

	assembler := Assembler{
		Catalog: snapshot,
		Pricing: pricer,
		Logger:  h.Logger,
	}

	var rec Record
	for attempt := 0; ; attempt++ {
		payload := assembler.Assemble(in, couponApplied)
		rec, err = h.Store.Insert(r.Context(), payload)
		if err == nil {
			break
		}
		if errors.Is(err, ErrDuplicateApplicationID) && attempt < insertAttempts-1 {
			continue
		}
		h.Logger.Error().Err(err).Msg("persist submission failed")
		countRegistration("error")
		if errors.Is(err, ErrDuplicateApplicationID) {
			common.JSONError(w, http.StatusConflict, "APPLICATION_ID_CONFLICT", "申请编号冲突，请重试", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "提交失败，请稍后重试", nil)
		return
	}

	if err := h.Queue.EnqueueRegistration(r.Context(), rec.ApplicationID); err != nil {
		// The record is persisted; the worker can be replayed from it.
		h.Logger.Error().Err(err).Str("application_id", rec.ApplicationID).Msg("enqueue registration task failed")
	}

	countRegistration("accepted")
	common.JSON(w, http.StatusCreated, map[string]any{
		"success":       true,
		"applicationID": rec.ApplicationID,
		"totalFee":      rec.Payload.TotalFee,
		"feeDetails":    rec.Payload.FeeDetails,
	})
}

// AttachProof handles POST /api/registrations/{applicationID}/payment-proof.
func (h *Handler) AttachProof(w http.ResponseWriter, r *http.Request) {
	applicationID := strings.TrimSpace(chi.URLParam(r, "applicationID"))
	var in PaymentProofInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	in.ApplicationID = applicationID
	if err := h.Validate.Struct(in); err != nil {
		countProof("invalid")
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "表单校验未通过", validationDetails(err))
		return
	}

	rec, err := h.Store.AttachPaymentProof(r.Context(), applicationID, in.PaymentProof)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			countProof("invalid")
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "未找到对应的报名记录", nil)
			return
		}
		h.Logger.Error().Err(err).Str("application_id", applicationID).Msg("persist payment proof failed")
		countProof("error")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "提交失败，请稍后重试", nil)
		return
	}

	if err := h.Queue.EnqueuePaymentProof(r.Context(), applicationID); err != nil {
		h.Logger.Error().Err(err).Str("application_id", applicationID).Msg("enqueue payment proof task failed")
	}

	countProof("accepted")
	common.JSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"applicationID": rec.ApplicationID,
		"submittedAt":   rec.SubmittedAt,
	})
}

// ListRegistrations handles GET /api/registrations.
func (h *Handler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 50)
	records, err := h.Store.List(r.Context(), int32(perPage), int32((page-1)*perPage))
	if err != nil {
		h.Logger.Error().Err(err).Msg("list submissions failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list submissions", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": records})
}

// ListProofs handles GET /api/payment-proofs.
func (h *Handler) ListProofs(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 50)
	records, err := h.Store.ListProofs(r.Context(), int32(perPage), int32((page-1)*perPage))
	if err != nil {
		h.Logger.Error().Err(err).Msg("list payment proofs failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list payment proofs", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": records})
}

func countRegistration(result string) {
	if obs.RegistrationsTotal != nil {
		obs.RegistrationsTotal.WithLabelValues(result).Inc()
	}
}

func countProof(result string) {
	if obs.PaymentProofsTotal != nil {
		obs.PaymentProofsTotal.WithLabelValues(result).Inc()
	}
}

// equalCodeSets compares two code multisets regardless of order. The replay
// result may legitimately differ from the raw input only by the same
// promotion the pricing engine applies, so the promoted input is what gets
// compared.
func equalCodeSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, code := range a {
		counts[code]++
	}
	for _, code := range b {
		if counts[code] == 0 {
			return false
		}
		counts[code]--
	}
	return true
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}
