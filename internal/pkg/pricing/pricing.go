package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Depreciation schedule: 10% of the list price per whole year of age,
// capped at 70%, then a 15% margin on top of the depreciated value.
var (
	yearlyRate      = decimal.RequireFromString("0.10")
	maxDepreciation = decimal.RequireFromString("0.70")
	margin          = decimal.RequireFromString("1.15")
	one             = decimal.RequireFromString("1.00")
)

// ComputeOfferPrice returns the offer for an item given its list price and
// purchase date. A nil purchase date counts as zero years of age. The result
// is rounded half-up to two decimal places and is never negative for a
// non-negative list price.
func ComputeOfferPrice(listPrice decimal.Decimal, purchaseDate *time.Time, today time.Time) decimal.Decimal {
	years := 0
	if purchaseDate != nil {
		years = wholeYears(*purchaseDate, today)
	}
	depreciation := yearlyRate.Mul(decimal.NewFromInt(int64(years)))
	if depreciation.GreaterThan(maxDepreciation) {
		depreciation = maxDepreciation
	}
	depreciated := listPrice.Mul(one.Sub(depreciation))
	// decimal.Round is half away from zero, which is half-up for the
	// non-negative amounts handled here.
	return depreciated.Mul(margin).Round(2)
}

// wholeYears counts full calendar years from 'from' to 'to': the year
// difference, minus one when to's month/day falls before from's. Never
// negative.
func wholeYears(from, to time.Time) int {
	years := to.Year() - from.Year()
	if to.Month() < from.Month() || (to.Month() == from.Month() && to.Day() < from.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
