// Package pricing computes order totals for Eubiosis-S. It is the only place
// where prices, discounts and delivery fees are derived; the product page, the
// funnel, the cart, checkout and order persistence all call Compute.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Size is the bottle size of the primary product.
type Size string

const (
	Size50ml  Size = "50ml"
	Size100ml Size = "100ml"
)

// ErrUnknownSize is returned by ParseSize for anything but 50ml or 100ml.
var ErrUnknownSize = errors.New("unknown product size")

// ParseSize converts s to a Size.
func ParseSize(s string) (Size, error) {
	switch Size(s) {
	case Size50ml, Size100ml:
		return Size(s), nil
	default:
		return "", errors.Wrapf(ErrUnknownSize, "%q", s)
	}
}

// PriceInfo is one row of the fixed price table.
type PriceInfo struct {
	Normal     decimal.Decimal
	Launch     decimal.Decimal
	UnitSaving decimal.Decimal
}

var priceTable = map[Size]PriceInfo{
	Size50ml: {
		Normal:     decimal.NewFromInt(325),
		Launch:     decimal.NewFromInt(265),
		UnitSaving: decimal.NewFromInt(60),
	},
	Size100ml: {
		Normal:     decimal.NewFromInt(650),
		Launch:     decimal.NewFromInt(530),
		UnitSaving: decimal.NewFromInt(120),
	},
}

// Prices returns the price table row for size. Unknown sizes get a zero row.
func Prices(size Size) PriceInfo {
	return priceTable[size]
}

// DefaultBundleDiscountPercent applies when a bundle is ordered without an
// explicit percentage.
const DefaultBundleDiscountPercent = 15

var (
	hundred = decimal.NewFromInt(100)

	// IrresistibleOfferPrice is the special price of the extra 50ml bottle.
	IrresistibleOfferPrice = decimal.NewFromInt(235)
	// irresistibleOfferNormal is what the extra bottle would normally cost.
	irresistibleOfferNormal = decimal.NewFromInt(325)

	// FreeShippingThreshold is the pre-delivery subtotal from which the
	// reduced delivery fee applies.
	FreeShippingThreshold = decimal.NewFromInt(650)
	ReducedDeliveryFee    = decimal.NewFromInt(29)
	StandardDeliveryFee   = decimal.NewFromInt(59)
)

// Flags are the add-ons and discounts that modify an order.
type Flags struct {
	IrresistibleOffer bool
	Bundle            bool
	// BundleDiscountPercent is ignored unless Bundle is set. Values outside
	// 1..99 mean DefaultBundleDiscountPercent.
	BundleDiscountPercent int
	// OTOPrice is the one-time-offer add-on price, nil when no offer was taken.
	OTOPrice *decimal.Decimal
}

// ValidBundleDiscount reports whether pct can be applied to a bundle without
// making the bottles free.
func ValidBundleDiscount(pct int) bool {
	return pct > 0 && pct < 100
}

// Totals is the full price breakdown of an order. All values are in Rand.
type Totals struct {
	// BasePrice is what everything in the order costs at normal price.
	BasePrice decimal.Decimal
	// DiscountedPrice is the launch-price subtotal of the primary bottles.
	DiscountedPrice        decimal.Decimal
	IrresistibleOfferPrice decimal.Decimal
	BundleDiscount         decimal.Decimal
	OTOPrice               decimal.Decimal
	// Subtotal is the order value before delivery.
	Subtotal     decimal.Decimal
	DeliveryFee  decimal.Decimal
	Total        decimal.Decimal
	TotalSavings decimal.Decimal
}

// Compute returns the price breakdown for quantity bottles of size with the
// given flags. Callers must reject quantity < 1 before calling.
func Compute(size Size, quantity int, flags Flags) Totals {
	info := Prices(size)
	qty := decimal.NewFromInt(int64(quantity))

	bottles := info.Launch.Mul(qty)
	savings := info.UnitSaving.Mul(qty)
	base := info.Normal.Mul(qty)

	t := Totals{DiscountedPrice: bottles}

	if flags.Bundle {
		pct := flags.BundleDiscountPercent
		if !ValidBundleDiscount(pct) {
			pct = DefaultBundleDiscountPercent
		}
		discounted := bottles.Mul(hundred.Sub(decimal.NewFromInt(int64(pct)))).Div(hundred).Round(2)
		t.BundleDiscount = bottles.Sub(discounted)
		savings = savings.Add(t.BundleDiscount)
		bottles = discounted
	}

	subtotal := bottles

	if flags.IrresistibleOffer {
		t.IrresistibleOfferPrice = IrresistibleOfferPrice
		subtotal = subtotal.Add(IrresistibleOfferPrice)
		savings = savings.Add(irresistibleOfferNormal.Sub(IrresistibleOfferPrice))
		base = base.Add(irresistibleOfferNormal)
	}

	if flags.OTOPrice != nil && flags.OTOPrice.IsPositive() {
		t.OTOPrice = flags.OTOPrice.Round(2)
		subtotal = subtotal.Add(t.OTOPrice)
	}

	t.Subtotal = subtotal
	t.DeliveryFee = DeliveryFee(subtotal)
	t.Total = subtotal.Add(t.DeliveryFee)
	t.TotalSavings = savings
	t.BasePrice = base

	return t
}

// DeliveryFee is the step function of the pre-delivery subtotal.
func DeliveryFee(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(FreeShippingThreshold) {
		return ReducedDeliveryFee
	}
	return StandardDeliveryFee
}

// MinorUnits converts a Rand amount to integer cents, rounding to the nearest
// cent.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts integer cents back to Rand.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
