package submission_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/osd-exam/backend-registration/internal/catalog"
	"github.com/osd-exam/backend-registration/internal/pricing"
	"github.com/osd-exam/backend-registration/internal/submission"
)

func price(v int64) *int64 { return &v }

func testSnapshot() *catalog.Snapshot {
	sessions := []catalog.Session{
		{ID: "s1", Date: "2025-08-27", Location: "CD", Levels: []string{"A1"}, IsActive: true, IsActiveUntil: "2025-08-20"},
	}
	products := []catalog.Product{
		{Code: "A1_CD_Full", Name: "A1全科", Level: "A1", Location: "CD", ModuleType: "Full", PriceOriginal: 155000, PriceDiscounted: price(135000), IsActive: true},
		{Code: "A1_CD_Written", Name: "A1笔试", Level: "A1", Location: "CD", ModuleType: "Written", PriceOriginal: 95000, IsActive: true},
		{Code: "A1_CD_Oral", Name: "A1口试", Level: "A1", Location: "CD", ModuleType: "Oral", PriceOriginal: 60000, IsActive: true},
	}
	return catalog.NewSnapshot(sessions, products)
}

func testAssembler(snapshot *catalog.Snapshot) submission.Assembler {
	return submission.Assembler{
		Catalog: snapshot,
		Pricing: pricing.Engine{Catalog: snapshot, Logger: zerolog.Nop()},
		Now:     func() time.Time { return time.Date(2025, 8, 10, 4, 30, 0, 0, time.UTC) },
		NewID:   func() string { return "OSD042" },
		Logger:  zerolog.Nop(),
	}
}

func testInput() submission.Input {
	return submission.Input{
		FirstName:     "Wei",
		LastName:      "Zhang",
		Gender:        "female",
		BirthDate:     "2001-03-15",
		Nationality:   "China",
		BirthPlace:    "Chengdu",
		Email:         "wei.zhang@example.com",
		PhoneNumber:   "+86 13800000000",
		FirstTimeExam: "yes",
		SessionID:     "s1",
		ExamSessions:  []string{"A1_CD_Full"},
	}
}

func TestAssembleBasics(t *testing.T) {
	a := testAssembler(testSnapshot())
	p := a.Assemble(testInput(), false)

	require.Equal(t, "OSD042", p.ApplicationID)
	require.Equal(t, []string{"A1_CD_Full"}, p.ExamSessions)
	require.Equal(t, []string{"s1"}, p.SelectedVenues)
	require.Equal(t, "A1", p.ExamLevel)
	require.Equal(t, "2025-08-27 (成都)", p.ExamDate)
	require.Equal(t, "A1全科", p.ExamSessionsDisplay)
	require.Equal(t, "后补", p.PassportNumber)
	require.False(t, p.CouponApplied)
	require.InDelta(t, 1550.00, p.TotalFee, 0.001)
}

func TestAssembleTimestampsAreBeijingTime(t *testing.T) {
	a := testAssembler(testSnapshot())
	p := a.Assemble(testInput(), false)

	// 04:30 UTC is 12:30 in UTC+8.
	require.Equal(t, "2025-08-10T12:30:00.000+08:00", p.Timestamp)
	require.Equal(t, "2025/08/10 12:30:00", p.OriginalSubmissionTimeFormatted)
	require.Equal(t, "2025-08-17", p.DeadlineDate)
}

func TestAssembleRegistrationDeadlineFromSession(t *testing.T) {
	a := testAssembler(testSnapshot())
	p := a.Assemble(testInput(), false)

	require.Equal(t, "2025-08-20", p.RegistrationDeadline)
	require.Equal(t, "2025年08月20日", p.RegistrationDeadlineFormatted)
}

func TestAssembleCouponApplied(t *testing.T) {
	a := testAssembler(testSnapshot())
	in := testInput()
	in.CouponCode = " EARLY "
	p := a.Assemble(in, true)

	require.True(t, p.CouponApplied)
	require.Equal(t, "EARLY", p.CouponCode)
	require.InDelta(t, 1350.00, p.TotalFee, 0.001)
	require.True(t, p.FeeDetails[0].IsDiscounted)
}

func TestAssembleOtherNationalityFolds(t *testing.T) {
	a := testAssembler(testSnapshot())
	in := testInput()
	in.Nationality = "Other"
	in.OtherNationality = "Singapore"
	p := a.Assemble(in, false)

	require.Equal(t, "Singapore", p.Nationality)
}

func TestAssemblePromotesSinglesIntoFull(t *testing.T) {
	a := testAssembler(testSnapshot())
	in := testInput()
	in.ExamSessions = []string{"A1_CD_Written", "A1_CD_Oral"}
	p := a.Assemble(in, false)

	require.Equal(t, []string{"A1_CD_Full"}, p.ExamSessions)
	require.Equal(t, "A1全科", p.ExamSessionsDisplay)
	require.InDelta(t, 1550.00, p.TotalFee, 0.001)
}

func TestAssemblePaymentProof(t *testing.T) {
	a := testAssembler(testSnapshot())
	original := a.Assemble(testInput(), false)
	proof := submission.Attachment{Filename: "receipt.jpg", Content: "aGk=", MimeType: "image/jpeg", Size: 2}

	p := a.AssemblePaymentProof(original, proof)
	require.Equal(t, original.ApplicationID, p.ApplicationID)
	require.Equal(t, proof, p.PaymentProof)
	require.Equal(t, "2025-08-10T12:30:00.000+08:00", p.PaymentSubmissionTime)
}

func TestNewApplicationIDShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		id := submission.NewApplicationID()
		require.Len(t, id, 6)
		require.Equal(t, "OSD", id[:3])
		for _, c := range id[3:] {
			require.True(t, c >= '0' && c <= '9')
		}
	}
}
