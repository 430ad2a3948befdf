package pricing_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/osd-exam/backend-registration/internal/catalog"
	"github.com/osd-exam/backend-registration/internal/pricing"
)

func price(v int64) *int64 { return &v }

func testSnapshot(products ...catalog.Product) *catalog.Snapshot {
	sessions := []catalog.Session{
		{ID: "s1", Date: "2025-08-27", Location: "CD", Levels: []string{"A1", "A2", "B1"}, IsActive: true},
	}
	return catalog.NewSnapshot(sessions, products)
}

func engine(products ...catalog.Product) pricing.Engine {
	return pricing.Engine{Catalog: testSnapshot(products...), Logger: zerolog.Nop()}
}

func TestComputeFullCourseWithoutCoupon(t *testing.T) {
	e := engine(catalog.Product{
		Code: "A1_CD_Full", Name: "A1全科", Level: "A1", Location: "CD",
		ModuleType: "Full", PriceOriginal: 155000, PriceDiscounted: price(135000), IsActive: true,
	})
	b := e.Compute([]string{"A1_CD_Full"}, false)
	require.InDelta(t, 1550.00, b.TotalFee, 0.001)
	require.Len(t, b.Details, 1)
	require.False(t, b.Details[0].IsDiscounted)
	require.InDelta(t, 1550, b.Details[0].OriginalFee, 0.001)
}

func TestComputeFullCourseWithCoupon(t *testing.T) {
	e := engine(catalog.Product{
		Code: "A1_CD_Full", Name: "A1全科", Level: "A1", Location: "CD",
		ModuleType: "Full", PriceOriginal: 155000, PriceDiscounted: price(135000), IsActive: true,
	})
	b := e.Compute([]string{"A1_CD_Full"}, true)
	require.InDelta(t, 1350.00, b.TotalFee, 0.001)
	require.Len(t, b.Details, 1)
	item := b.Details[0]
	require.True(t, item.IsDiscounted)
	require.InDelta(t, 1550, item.OriginalFee, 0.001)
	require.NotNil(t, item.DiscountedFee)
	require.InDelta(t, 1350, *item.DiscountedFee, 0.001)
}

func TestCouponNeverDiscountsSingleModules(t *testing.T) {
	e := engine(
		catalog.Product{Code: "A1_CD_Written", Name: "A1笔试", Level: "A1", Location: "CD", ModuleType: "Written", PriceOriginal: 95000, PriceDiscounted: price(80000), IsActive: true},
	)
	b := e.Compute([]string{"A1_CD_Written"}, true)
	require.Len(t, b.Details, 1)
	require.False(t, b.Details[0].IsDiscounted)
	require.InDelta(t, 950.00, b.Details[0].Fee, 0.001)
}

func TestPromotionAllSinglesBecomesFull(t *testing.T) {
	full := catalog.Product{Code: "A1_CD_Full", Name: "A1全科", Level: "A1", Location: "CD", ModuleType: "Full", PriceOriginal: 155000, PriceDiscounted: price(135000), IsActive: true}
	written := catalog.Product{Code: "A1_CD_Written", Name: "A1笔试", Level: "A1", Location: "CD", ModuleType: "Written", PriceOriginal: 95000, IsActive: true}
	oral := catalog.Product{Code: "A1_CD_Oral", Name: "A1口试", Level: "A1", Location: "CD", ModuleType: "Oral", PriceOriginal: 60000, IsActive: true}

	e := engine(full, written, oral)
	direct := e.Compute([]string{"A1_CD_Full"}, false)
	promoted := e.Compute([]string{"A1_CD_Written", "A1_CD_Oral"}, false)
	require.Equal(t, direct, promoted)
}

func TestPromotionFourSkillLevel(t *testing.T) {
	products := []catalog.Product{
		{Code: "B1_CD_Full", Name: "B1全科", Level: "B1", Location: "CD", ModuleType: "Full", PriceOriginal: 220000, IsActive: true},
		{Code: "B1_CD_Listening", Name: "B1听力", Level: "B1", Location: "CD", ModuleType: "Listening", PriceOriginal: 60000, IsActive: true},
		{Code: "B1_CD_Reading", Name: "B1阅读", Level: "B1", Location: "CD", ModuleType: "Reading", PriceOriginal: 60000, IsActive: true},
		{Code: "B1_CD_Oral", Name: "B1口语", Level: "B1", Location: "CD", ModuleType: "Oral", PriceOriginal: 60000, IsActive: true},
		{Code: "B1_CD_Written", Name: "B1写作", Level: "B1", Location: "CD", ModuleType: "Written", PriceOriginal: 60000, IsActive: true},
	}
	e := engine(products...)

	partial := e.Compute([]string{"B1_CD_Listening", "B1_CD_Reading", "B1_CD_Oral"}, false)
	require.Len(t, partial.Details, 3)
	require.InDelta(t, 1800.00, partial.TotalFee, 0.001)

	complete := e.Compute([]string{"B1_CD_Listening", "B1_CD_Reading", "B1_CD_Oral", "B1_CD_Written"}, false)
	require.Len(t, complete.Details, 1)
	require.Equal(t, "B1_CD_Full", complete.Details[0].Code)
	require.InDelta(t, 2200.00, complete.TotalFee, 0.001)
}

func TestNoPromotionWithoutFullProduct(t *testing.T) {
	e := engine(
		catalog.Product{Code: "A1_CD_Written", Name: "A1笔试", Level: "A1", Location: "CD", ModuleType: "Written", PriceOriginal: 95000, IsActive: true},
		catalog.Product{Code: "A1_CD_Oral", Name: "A1口试", Level: "A1", Location: "CD", ModuleType: "Oral", PriceOriginal: 60000, IsActive: true},
	)
	b := e.Compute([]string{"A1_CD_Written", "A1_CD_Oral"}, false)
	require.Len(t, b.Details, 2)
	require.InDelta(t, 1550.00, b.TotalFee, 0.001)
	require.Equal(t, "A1_CD_Written", b.Details[0].Code)
	require.Equal(t, "A1_CD_Oral", b.Details[1].Code)
}

func TestUnknownCodesAreSkipped(t *testing.T) {
	e := engine(catalog.Product{Code: "A1_CD_Full", Name: "A1全科", Level: "A1", Location: "CD", ModuleType: "Full", PriceOriginal: 155000, IsActive: true})
	b := e.Compute([]string{"A1_CD_Full", "A9_ZZ_Full"}, false)
	require.Len(t, b.Details, 1)
	require.InDelta(t, 1550.00, b.TotalFee, 0.001)
}

func TestEmptyCatalogYieldsZeroBreakdown(t *testing.T) {
	e := pricing.Engine{Catalog: catalog.NewSnapshot(nil, nil), Logger: zerolog.Nop()}
	b := e.Compute([]string{"A1_CD_Full"}, false)
	require.Zero(t, b.TotalFee)
	require.Empty(t, b.Details)
}

func TestLineItemOrderFollowsInput(t *testing.T) {
	e := engine(
		catalog.Product{Code: "A2_CD_Oral", Name: "A2口试", Level: "A2", Location: "CD", ModuleType: "Oral", PriceOriginal: 60000, IsActive: true},
		catalog.Product{Code: "A2_CD_Written", Name: "A2笔试", Level: "A2", Location: "CD", ModuleType: "Written", PriceOriginal: 95000, IsActive: true},
	)
	b := e.Compute([]string{"A2_CD_Oral", "A2_CD_Written"}, false)
	require.Len(t, b.Details, 2)
	require.Equal(t, "A2_CD_Oral", b.Details[0].Code)
	require.Equal(t, "A2_CD_Written", b.Details[1].Code)
}
