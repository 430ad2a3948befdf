// Package pricing derives the registration fee breakdown from a set of
// selected exam product codes. The same engine prices the browser-facing
// intake and the workflow processor, so the two can never drift apart.
package pricing

import (
	"github.com/rs/zerolog"

	"github.com/osd-exam/backend-registration/internal/catalog"
	"github.com/osd-exam/backend-registration/internal/examcode"
)

// Money is a monetary value in minor currency units (分).
type Money = int64

// LineItem is one priced entry of a fee breakdown. Fee values are in major
// currency units (元); the discount fields let a renderer show a
// strikethrough comparison.
type LineItem struct {
	Code          string   `json:"session"`
	Description   string   `json:"description"`
	Fee           float64  `json:"fee"`
	OriginalFee   float64  `json:"originalFee"`
	DiscountedFee *float64 `json:"discountedFee"`
	IsDiscounted  bool     `json:"isDiscounted"`
}

// Breakdown is the derived fee summary for a selection. It has no lifecycle
// of its own; it is recomputed from the catalog and the raw codes on demand.
type Breakdown struct {
	TotalFee float64    `json:"totalFee"`
	Details  []LineItem `json:"details"`
}

// Engine prices code sets against an injected catalog snapshot.
type Engine struct {
	Catalog *catalog.Snapshot
	Logger  zerolog.Logger
}

// Promote collapses a complete set of single-module codes for one
// level/location group into that group's Full-course code, provided the Full
// product exists in the catalog. Groups keep their first-seen order and codes
// keep their input order; codes with no matching product are dropped with a
// diagnostic.
func (e Engine) Promote(codes []string) []string {
	type group struct {
		level    string
		location string
		modules  map[examcode.ModuleType]bool
		codes    []string
		fullCode string
	}
	var order []string
	groups := make(map[string]*group)

	for _, code := range codes {
		product, ok := e.Catalog.ProductByCode(code)
		if !ok {
			e.Logger.Warn().Str("code", code).Msg("selected code not in catalog, skipping")
			continue
		}
		key := product.Level + examcode.Separator + product.Location
		g, ok := groups[key]
		if !ok {
			g = &group{
				level:    product.Level,
				location: product.Location,
				modules:  make(map[examcode.ModuleType]bool),
			}
			groups[key] = g
			order = append(order, key)
		}
		g.modules[product.ModuleType] = true
		g.codes = append(g.codes, code)
		if product.ModuleType == examcode.ModuleFull {
			g.fullCode = code
		}
	}

	result := make([]string, 0, len(codes))
	for _, key := range order {
		g := groups[key]
		if g.fullCode != "" {
			result = append(result, g.fullCode)
			continue
		}
		required := examcode.RequiredModules(g.level)
		complete := len(required) > 0
		for _, m := range required {
			if !g.modules[m] {
				complete = false
				break
			}
		}
		if complete {
			if fullCode, ok := e.Catalog.FullCode(g.level, g.location); ok {
				result = append(result, fullCode)
				continue
			}
			// No Full product in the catalog for this group; keep the singles.
		}
		result = append(result, g.codes...)
	}
	return result
}

// Compute prices the given codes and returns the breakdown. couponApplied
// unlocks the discounted price for Full-course products only; single modules
// always use the original price. Each resolved price is converted from minor
// to major units before accumulating; totals must match what the fee table
// has always shown, so the per-item conversion stays.
func (e Engine) Compute(codes []string, couponApplied bool) Breakdown {
	breakdown := Breakdown{Details: []LineItem{}}
	if e.Catalog == nil || len(e.Catalog.Products) == 0 {
		return breakdown
	}
	for _, code := range e.Promote(codes) {
		product, ok := e.Catalog.ProductByCode(code)
		if !ok {
			e.Logger.Warn().Str("code", code).Msg("no product for code, skipping line item")
			continue
		}
		fee := product.PriceOriginal
		discounted := false
		if couponApplied && product.ModuleType == examcode.ModuleFull && product.PriceDiscounted != nil {
			fee = *product.PriceDiscounted
			discounted = true
		}
		item := LineItem{
			Code:         code,
			Description:  product.Name,
			Fee:          toMajor(fee),
			OriginalFee:  toMajor(product.PriceOriginal),
			IsDiscounted: discounted,
		}
		if product.PriceDiscounted != nil {
			major := toMajor(*product.PriceDiscounted)
			item.DiscountedFee = &major
		}
		breakdown.TotalFee += item.Fee
		breakdown.Details = append(breakdown.Details, item)
	}
	return breakdown
}

func toMajor(minor Money) float64 {
	return float64(minor) / 100
}
