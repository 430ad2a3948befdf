// Package submission assembles, persists and serves registration
// submissions. The assembled payload carries both the raw applicant input and
// the derived display and pricing fields downstream consumers render from.
package submission

import (
	"github.com/osd-exam/backend-registration/internal/pricing"
)

// Attachment is a base64-encoded uploaded file embedded in a payload.
type Attachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// Input is the applicant-submitted registration form.
type Input struct {
	FirstName        string      `json:"firstName" validate:"required"`
	LastName         string      `json:"lastName" validate:"required"`
	Gender           string      `json:"gender" validate:"required,oneof=male female"`
	BirthDate        string      `json:"birthDate" validate:"required,datetime=2006-01-02"`
	Nationality      string      `json:"nationality" validate:"required"`
	OtherNationality string      `json:"otherNationality" validate:"required_if=Nationality Other"`
	BirthPlace       string      `json:"birthPlace" validate:"required"`
	Email            string      `json:"email" validate:"required,email"`
	PhoneNumber      string      `json:"phoneNumber" validate:"required"`
	FirstTimeExam    string      `json:"firstTimeExam" validate:"required,oneof=yes no"`
	PassportNumber   string      `json:"passportNumber"`
	SessionID        string      `json:"sessionId" validate:"required"`
	ExamSessions     []string    `json:"examSessions" validate:"required,min=1,dive,required"`
	CouponCode       string      `json:"couponCode"`
	PassportUpload   *Attachment `json:"passportUpload,omitempty"`
}

// Payload is the assembled registration document forwarded to the workflow
// webhook and persisted as the submission record. Field names follow the
// downstream workflow's contract.
type Payload struct {
	ApplicationID    string   `json:"applicationID"`
	FirstName        string   `json:"firstName"`
	LastName         string   `json:"lastName"`
	Gender           string   `json:"gender"`
	BirthDate        string   `json:"birthDate"`
	Nationality      string   `json:"nationality"`
	OtherNationality string   `json:"otherNationality,omitempty"`
	BirthPlace       string   `json:"birthPlace"`
	Email            string   `json:"email"`
	PhoneNumber      string   `json:"phoneNumber"`
	FirstTimeExam    string   `json:"firstTimeExam"`
	PassportNumber   string   `json:"passportNumber"`
	ExamSessions     []string `json:"examSessions"`
	SelectedVenues   []string `json:"selectedVenues"`

	ExamLevel           string `json:"examLevel,omitempty"`
	ExamDate            string `json:"examDate"`
	ExamSessionsDisplay string `json:"examSessionsDisplay"`

	Timestamp                       string `json:"timestamp"`
	OriginalSubmissionTimeFormatted string `json:"originalSubmissionTimeFormatted"`
	DeadlineDate                    string `json:"deadlineDate"`
	RegistrationDeadline            string `json:"registrationDeadline,omitempty"`
	RegistrationDeadlineFormatted   string `json:"registrationDeadlineFormatted,omitempty"`

	FeeCalculation pricing.Breakdown  `json:"feeCalculation"`
	TotalFee       float64            `json:"totalFee"`
	FeeDetails     []pricing.LineItem `json:"feeDetails"`

	CouponCode    string `json:"couponCode,omitempty"`
	CouponApplied bool   `json:"couponApplied"`

	PassportUpload *Attachment `json:"passportUpload,omitempty"`
}

// PaymentProofInput is the second-step request attaching a proof of payment
// to an earlier submission.
type PaymentProofInput struct {
	ApplicationID string     `json:"applicationID" validate:"required"`
	PaymentProof  Attachment `json:"paymentProof" validate:"required"`
}

// PaymentProofPayload extends the original submission with the proof file and
// its own timestamp. It is posted to the payment webhook as an independent
// request.
type PaymentProofPayload struct {
	Payload
	PaymentProof          Attachment `json:"paymentProof"`
	PaymentSubmissionTime string     `json:"paymentSubmissionTime"`
}
