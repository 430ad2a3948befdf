package workflow

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/osd-exam/backend-registration/internal/catalog"
	"github.com/osd-exam/backend-registration/internal/examcode"
	"github.com/osd-exam/backend-registration/internal/pricing"
	"github.com/osd-exam/backend-registration/internal/submission"
)

var beijing = time.FixedZone("Asia/Shanghai", 8*60*60)

// BinaryPart is a decoded file attachment ready for downstream handling.
type BinaryPart struct {
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// ProcessedRegistration is the authoritative registration document. Every
// derived field is recomputed here from the raw codes; the values persisted at
// intake are carried along but never trusted for the derivation.
type ProcessedRegistration struct {
	submission.Payload
	ExamLevelDisplay string             `json:"examLevelDisplay"`
	ExamDetails      []pricing.LineItem `json:"examDetails"`
	ProcessedAt      string             `json:"processedAt"`
	Passport         *BinaryPart        `json:"-"`
}

// ProcessedPaymentProof pairs the reprocessed registration with the decoded
// proof file.
type ProcessedPaymentProof struct {
	ProcessedRegistration
	PaymentProof          submission.Attachment `json:"paymentProof"`
	PaymentSubmissionTime string                `json:"paymentSubmissionTime"`
	Proof                 *BinaryPart           `json:"-"`
}

// Processor re-derives registration documents from persisted submissions.
type Processor struct {
	Catalog *catalog.Snapshot
	Now     func() time.Time
	Logger  zerolog.Logger
}

func (p Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// ProcessRegistration recomputes the derived fields of a stored submission.
func (p Processor) ProcessRegistration(rec submission.Record) (ProcessedRegistration, error) {
	payload := rec.Payload
	engine := pricing.Engine{Catalog: p.Catalog, Logger: p.Logger}
	assembler := submission.Assembler{Catalog: p.Catalog, Pricing: engine, Logger: p.Logger}

	codes := engine.Promote(payload.ExamSessions)
	breakdown := engine.Compute(payload.ExamSessions, payload.CouponApplied)

	level := ""
	for _, code := range codes {
		if decoded, err := examcode.Decode(code); err == nil {
			level = decoded.Level
			break
		}
	}

	if payload.Nationality == "Other" && strings.TrimSpace(payload.OtherNationality) != "" {
		payload.Nationality = strings.TrimSpace(payload.OtherNationality)
	}

	payload.ExamSessions = codes
	payload.ExamLevel = level
	payload.ExamSessionsDisplay = assembler.SessionsDisplay(codes)
	if len(payload.SelectedVenues) > 0 {
		payload.ExamDate = assembler.ExamDateDisplay(payload.SelectedVenues[0])
	}
	payload.FeeCalculation = breakdown
	payload.TotalFee = breakdown.TotalFee
	payload.FeeDetails = breakdown.Details

	out := ProcessedRegistration{
		Payload:          payload,
		ExamLevelDisplay: examcode.LevelDisplay(level),
		ExamDetails:      breakdown.Details,
		ProcessedAt:      p.now().In(beijing).Format("2006-01-02T15:04:05.000Z07:00"),
	}

	if payload.PassportUpload != nil {
		part, err := decodeAttachment(*payload.PassportUpload)
		if err != nil {
			return ProcessedRegistration{}, fmt.Errorf("decode passport upload: %w", err)
		}
		out.Passport = part
	}
	return out, nil
}

// ProcessPaymentProof reprocesses the original submission and attaches the
// decoded proof.
func (p Processor) ProcessPaymentProof(rec submission.Record, proof submission.ProofRecord) (ProcessedPaymentProof, error) {
	base, err := p.ProcessRegistration(rec)
	if err != nil {
		return ProcessedPaymentProof{}, err
	}
	part, err := decodeAttachment(proof.Proof)
	if err != nil {
		return ProcessedPaymentProof{}, fmt.Errorf("decode payment proof: %w", err)
	}
	return ProcessedPaymentProof{
		ProcessedRegistration: base,
		PaymentProof:          proof.Proof,
		PaymentSubmissionTime: proof.SubmittedAt.In(beijing).Format("2006-01-02T15:04:05.000Z07:00"),
		Proof:                 part,
	}, nil
}

func decodeAttachment(a submission.Attachment) (*BinaryPart, error) {
	data, err := base64.StdEncoding.DecodeString(a.Content)
	if err != nil {
		return nil, err
	}
	return &BinaryPart{FileName: a.Filename, MimeType: a.MimeType, Data: data}, nil
}
