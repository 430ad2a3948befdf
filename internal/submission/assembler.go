package submission

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/osd-exam/backend-registration/internal/catalog"
	"github.com/osd-exam/backend-registration/internal/examcode"
	"github.com/osd-exam/backend-registration/internal/pricing"
)

const applicationIDPrefix = "OSD"

// beijing is the fixed UTC+8 offset every outbound timestamp is normalized
// to, regardless of server locale.
var beijing = time.FixedZone("Asia/Shanghai", 8*60*60)

// NewApplicationID returns a fresh application identifier: the fixed prefix
// plus a zero-padded 3-digit random suffix. Not globally unique; the store
// rejects collisions and the caller retries.
func NewApplicationID() string {
	return fmt.Sprintf("%s%03d", applicationIDPrefix, rand.Intn(1000))
}

// Assembler derives the outbound registration payload from validated input
// and a catalog snapshot. Now and NewID are injectable for tests.
type Assembler struct {
	Catalog *catalog.Snapshot
	Pricing pricing.Engine
	Now     func() time.Time
	NewID   func() string
	Logger  zerolog.Logger
}

func (a Assembler) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a Assembler) newID() string {
	if a.NewID != nil {
		return a.NewID()
	}
	return NewApplicationID()
}

// Assemble builds the registration payload. couponApplied must reflect a
// server-side validation of in.CouponCode, never the client's claim.
func (a Assembler) Assemble(in Input, couponApplied bool) Payload {
	now := a.now().In(beijing)
	codes := a.Pricing.Promote(in.ExamSessions)
	breakdown := a.Pricing.Compute(in.ExamSessions, couponApplied)

	nationality := in.Nationality
	if nationality == "Other" && strings.TrimSpace(in.OtherNationality) != "" {
		nationality = strings.TrimSpace(in.OtherNationality)
	}
	passport := strings.TrimSpace(in.PassportNumber)
	if passport == "" {
		passport = "后补"
	}

	p := Payload{
		ApplicationID:    a.newID(),
		FirstName:        in.FirstName,
		LastName:         in.LastName,
		Gender:           in.Gender,
		BirthDate:        in.BirthDate,
		Nationality:      nationality,
		OtherNationality: in.OtherNationality,
		BirthPlace:       in.BirthPlace,
		Email:            in.Email,
		PhoneNumber:      in.PhoneNumber,
		FirstTimeExam:    in.FirstTimeExam,
		PassportNumber:   passport,
		ExamSessions:     codes,
		SelectedVenues:   []string{in.SessionID},

		ExamLevel:           a.examLevel(codes),
		ExamDate:            a.ExamDateDisplay(in.SessionID),
		ExamSessionsDisplay: a.SessionsDisplay(codes),

		Timestamp:                       now.Format("2006-01-02T15:04:05.000Z07:00"),
		OriginalSubmissionTimeFormatted: now.Format("2006/01/02 15:04:05"),
		DeadlineDate:                    now.AddDate(0, 0, 7).Format("2006-01-02"),

		FeeCalculation: breakdown,
		TotalFee:       breakdown.TotalFee,
		FeeDetails:     breakdown.Details,

		CouponApplied: couponApplied,

		PassportUpload: in.PassportUpload,
	}
	if couponApplied {
		p.CouponCode = strings.TrimSpace(in.CouponCode)
	}

	if session, ok := a.Catalog.SessionByID(in.SessionID); ok && strings.TrimSpace(session.IsActiveUntil) != "" {
		p.RegistrationDeadline = session.IsActiveUntil
		if t, err := time.Parse("2006-01-02", session.IsActiveUntil); err == nil {
			p.RegistrationDeadlineFormatted = fmt.Sprintf("%d年%02d月%02d日", t.Year(), t.Month(), t.Day())
		}
	}
	return p
}

// AssemblePaymentProof wraps a persisted submission with the proof file and a
// fresh timestamp.
func (a Assembler) AssemblePaymentProof(original Payload, proof Attachment) PaymentProofPayload {
	now := a.now().In(beijing)
	return PaymentProofPayload{
		Payload:               original,
		PaymentProof:          proof,
		PaymentSubmissionTime: now.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// SessionsDisplay joins the Chinese product names for the given codes with
// the Chinese enumeration comma. Codes without a product fall back to the raw
// code so the display never silently shrinks.
func (a Assembler) SessionsDisplay(codes []string) string {
	if len(codes) == 0 {
		return "未选择考试科目"
	}
	names := make([]string, 0, len(codes))
	for _, code := range codes {
		if product, ok := a.Catalog.ProductByCode(code); ok {
			names = append(names, product.Name)
			continue
		}
		names = append(names, code)
	}
	return strings.Join(names, "、")
}

// ExamDateDisplay renders "date (city)" for the chosen session.
func (a Assembler) ExamDateDisplay(sessionID string) string {
	session, ok := a.Catalog.SessionByID(sessionID)
	if !ok {
		return "待定"
	}
	return fmt.Sprintf("%s (%s)", session.Date, examcode.LocationName(session.Location))
}

func (a Assembler) examLevel(codes []string) string {
	for _, code := range codes {
		if decoded, err := examcode.Decode(code); err == nil {
			return decoded.Level
		}
	}
	return ""
}
