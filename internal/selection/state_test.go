package selection_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/osd-exam/backend-registration/internal/catalog"
	"github.com/osd-exam/backend-registration/internal/coupon"
	"github.com/osd-exam/backend-registration/internal/selection"
)

func price(v int64) *int64 { return &v }

func testCatalog() *catalog.Snapshot {
	sessions := []catalog.Session{
		{ID: "s1", Date: "2025-08-27", Location: "CD", Levels: []string{"A1", "A2", "B1"}, IsActive: true, IsActiveUntil: "2025-08-20"},
		{ID: "s2", Date: "2025-09-10", Location: "SH", Levels: []string{"A1"}, IsActive: true, IsActiveUntil: "2025-09-01"},
		{ID: "s3", Date: "2025-07-01", Location: "BJ", Levels: []string{"A1"}, IsActive: true, IsActiveUntil: "2025-06-20"},
	}
	products := []catalog.Product{
		{Code: "A1_CD_Full", Name: "A1全科", Level: "A1", Location: "CD", ModuleType: "Full", PriceOriginal: 155000, PriceDiscounted: price(135000), IsActive: true},
		{Code: "A1_CD_Written", Name: "A1笔试", Level: "A1", Location: "CD", ModuleType: "Written", PriceOriginal: 95000, IsActive: true},
		{Code: "A1_CD_Oral", Name: "A1口试", Level: "A1", Location: "CD", ModuleType: "Oral", PriceOriginal: 60000, IsActive: true},
		{Code: "A2_CD_Written", Name: "A2笔试", Level: "A2", Location: "CD", ModuleType: "Written", PriceOriginal: 95000, IsActive: true},
		{Code: "B1_CD_Listening", Name: "B1听力", Level: "B1", Location: "CD", ModuleType: "Listening", PriceOriginal: 60000, IsActive: true},
		{Code: "B1_CD_Reading", Name: "B1阅读", Level: "B1", Location: "CD", ModuleType: "Reading", PriceOriginal: 60000, IsActive: true},
		{Code: "B1_CD_Oral", Name: "B1口语", Level: "B1", Location: "CD", ModuleType: "Oral", PriceOriginal: 60000, IsActive: true},
		{Code: "B1_CD_Written", Name: "B1写作", Level: "B1", Location: "CD", ModuleType: "Written", PriceOriginal: 60000, IsActive: true},
	}
	return catalog.NewSnapshot(sessions, products)
}

func testMachine() selection.Machine {
	return selection.Machine{
		Catalog: testCatalog(),
		Now:     func() time.Time { return time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC) },
		Logger:  zerolog.Nop(),
	}
}

func TestSelectSessionRejectsExpired(t *testing.T) {
	m := testMachine()
	var s selection.State
	err := m.SelectSession(&s, "s3")
	require.ErrorIs(t, err, selection.ErrSessionNotSelectable)
	require.Empty(t, s.SessionID)
}

func TestSelectSessionUnknown(t *testing.T) {
	m := testMachine()
	var s selection.State
	require.ErrorIs(t, m.SelectSession(&s, "nope"), selection.ErrUnknownSession)
}

func TestSessionChangeClearsSelection(t *testing.T) {
	m := testMachine()
	var s selection.State
	require.NoError(t, m.SelectSession(&s, "s1"))
	require.NoError(t, m.SelectProduct(&s, "A1_CD_Written"))
	s.Coupon = &catalog.Coupon{ID: "c1", Code: "SAVE", SessionID: "s1", IsActive: true}

	require.NoError(t, m.SelectSession(&s, "s2"))
	require.Equal(t, "s2", s.SessionID)
	require.Empty(t, s.Codes)
	require.Nil(t, s.Coupon)
}

func TestReselectingSameSessionKeepsSelection(t *testing.T) {
	m := testMachine()
	var s selection.State
	require.NoError(t, m.SelectSession(&s, "s1"))
	require.NoError(t, m.SelectProduct(&s, "A1_CD_Written"))
	require.NoError(t, m.SelectSession(&s, "s1"))
	require.Equal(t, []string{"A1_CD_Written"}, s.Codes)
}

func TestSelectProductRequiresSession(t *testing.T) {
	m := testMachine()
	var s selection.State
	require.ErrorIs(t, m.SelectProduct(&s, "A1_CD_Written"), selection.ErrNoSession)
}

func TestSelectProductSingleLevelInvariant(t *testing.T) {
	m := testMachine()
	var s selection.State
	require.NoError(t, m.SelectSession(&s, "s1"))
	require.NoError(t, m.SelectProduct(&s, "A1_CD_Written"))
	require.NoError(t, m.SelectProduct(&s, "A2_CD_Written"))
	require.Equal(t, []string{"A2_CD_Written"}, s.Codes)
}

func TestFullCourseDisplacesSingles(t *testing.T) {
	m := testMachine()
	var s selection.State
	require.NoError(t, m.SelectSession(&s, "s1"))
	require.NoError(t, m.SelectProduct(&s, "A1_CD_Written"))
	require.NoError(t, m.SelectProduct(&s, "A1_CD_Full"))
	require.Equal(t, []string{"A1_CD_Full"}, s.Codes)

	require.NoError(t, m.SelectProduct(&s, "A1_CD_Oral"))
	require.Equal(t, []string{"A1_CD_Oral"}, s.Codes)
}

func TestCompleteSinglesCollapseToFull(t *testing.T) {
	m := testMachine()
	var s selection.State
	require.NoError(t, m.SelectSession(&s, "s1"))
	require.NoError(t, m.SelectProduct(&s, "A1_CD_Written"))
	require.NoError(t, m.SelectProduct(&s, "A1_CD_Oral"))
	require.Equal(t, []string{"A1_CD_Full"}, s.Codes)
}

func TestFourSkillSetWithoutFullProductStaysSingles(t *testing.T) {
	m := testMachine()
	var s selection.State
	require.NoError(t, m.SelectSession(&s, "s1"))
	for _, code := range []string{"B1_CD_Listening", "B1_CD_Reading", "B1_CD_Oral", "B1_CD_Written"} {
		require.NoError(t, m.SelectProduct(&s, code))
	}
	require.Equal(t, []string{"B1_CD_Listening", "B1_CD_Reading", "B1_CD_Oral", "B1_CD_Written"}, s.Codes)
}

func TestUnknownProductLeavesStateUntouched(t *testing.T) {
	m := testMachine()
	var s selection.State
	require.NoError(t, m.SelectSession(&s, "s1"))
	require.NoError(t, m.SelectProduct(&s, "A1_CD_Written"))
	require.ErrorIs(t, m.SelectProduct(&s, "Z9_XX_Full"), selection.ErrUnknownProduct)
	require.Equal(t, []string{"A1_CD_Written"}, s.Codes)
}

func TestDeselectProduct(t *testing.T) {
	m := testMachine()
	var s selection.State
	require.NoError(t, m.SelectSession(&s, "s1"))
	require.NoError(t, m.SelectProduct(&s, "A1_CD_Written"))
	m.DeselectProduct(&s, "A1_CD_Written")
	require.Empty(t, s.Codes)
	m.DeselectProduct(&s, "never-there")
}

type fakeValidator struct {
	result   coupon.Result
	err      error
	onCall   func()
	gotCode  string
	gotSessn string
}

func (f *fakeValidator) Validate(_ context.Context, code, sessionID string) (coupon.Result, error) {
	f.gotCode = code
	f.gotSessn = sessionID
	if f.onCall != nil {
		f.onCall()
	}
	return f.result, f.err
}

func TestApplyCouponAttaches(t *testing.T) {
	m := testMachine()
	var s selection.State
	require.NoError(t, m.SelectSession(&s, "s1"))
	v := &fakeValidator{result: coupon.Result{
		Valid:   true,
		Message: "专属代码验证成功！",
		Coupon:  &catalog.Coupon{ID: "c1", Code: "SAVE", SessionID: "s1", IsActive: true},
	}}
	res, err := m.ApplyCoupon(context.Background(), &s, v, "SAVE")
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.NotNil(t, s.Coupon)
	require.Equal(t, "SAVE", v.gotCode)
	require.Equal(t, "s1", v.gotSessn)
}

func TestApplyCouponDiscardedAfterSessionSwitch(t *testing.T) {
	m := testMachine()
	var s selection.State
	require.NoError(t, m.SelectSession(&s, "s1"))
	v := &fakeValidator{
		result: coupon.Result{
			Valid:  true,
			Coupon: &catalog.Coupon{ID: "c1", Code: "SAVE", SessionID: "s1", IsActive: true},
		},
	}
	// The session switches while the validation round-trip is in flight.
	v.onCall = func() { require.NoError(t, m.SelectSession(&s, "s2")) }

	res, err := m.ApplyCoupon(context.Background(), &s, v, "SAVE")
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Nil(t, s.Coupon)
}

func TestApplyCouponWithoutSession(t *testing.T) {
	m := testMachine()
	var s selection.State
	res, err := m.ApplyCoupon(context.Background(), &s, &fakeValidator{}, "SAVE")
	require.NoError(t, err)
	require.False(t, res.Valid)
}
