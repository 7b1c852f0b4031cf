package pricing

import (
	"github.com/shopspring/decimal"
)

// LimitedDealDiscountPercent is the discount offered on the funnel upsell.
const LimitedDealDiscountPercent = 20

// minUpsellQuantity is the smallest bundle the funnel offers.
const minUpsellQuantity = 3

// UpsellOffer is the "upgrade to a bundle" proposal shown after product
// selection.
type UpsellOffer struct {
	Size               Size
	OriginalQuantity   int
	OriginalTotal      decimal.Decimal
	OriginalSupplyDays int

	Quantity        int
	DiscountPercent int
	// Total is the launch-price total of the upsell bundle before the deal.
	Total decimal.Decimal
	// DiscountedTotal is rounded to whole Rand, as advertised.
	DiscountedTotal decimal.Decimal
	Savings         decimal.Decimal
	PercentSaved    int64
	PricePerBottle  decimal.Decimal
	SupplyDays      int
}

// Upsell builds the bundle upsell for an order of quantity bottles: at least
// three bottles, or half as many again, at discountPercent off.
func Upsell(size Size, quantity, discountPercent int) UpsellOffer {
	if discountPercent <= 0 {
		discountPercent = LimitedDealDiscountPercent
	}
	info := Prices(size)

	upQty := (quantity*3 + 1) / 2 // ceil(quantity * 1.5)
	if upQty < minUpsellQuantity {
		upQty = minUpsellQuantity
	}
	q := decimal.NewFromInt(int64(upQty))

	total := info.Launch.Mul(q)
	discounted := total.Mul(hundred.Sub(decimal.NewFromInt(int64(discountPercent)))).Div(hundred).Round(0)
	normal := info.Normal.Mul(q)
	savings := normal.Sub(discounted)

	return UpsellOffer{
		Size:               size,
		OriginalQuantity:   quantity,
		OriginalTotal:      info.Launch.Mul(decimal.NewFromInt(int64(quantity))),
		Quantity:           upQty,
		DiscountPercent:    discountPercent,
		Total:              total,
		DiscountedTotal:    discounted,
		Savings:            savings,
		PercentSaved:       savings.Mul(hundred).Div(normal).Round(0).IntPart(),
		PricePerBottle:     discounted.Div(q).Round(0),
		SupplyDays:         upQty * SupplyDays(size),
		OriginalSupplyDays: quantity * SupplyDays(size),
	}
}

// Flags returns the pricing flags of an accepted upsell.
func (o UpsellOffer) Flags() Flags {
	return Flags{Bundle: true, BundleDiscountPercent: o.DiscountPercent}
}

// SupplyDays is how many days one bottle of size lasts.
func SupplyDays(size Size) int {
	if size == Size100ml {
		return 20
	}
	return 10
}

// OTOOffer is one of the fixed one-time offers.
type OTOOffer struct {
	ID     string
	Title  string
	Normal decimal.Decimal
	Price  decimal.Decimal
}

// Savings is what the shopper saves against the normal price.
func (o OTOOffer) Savings() decimal.Decimal {
	return o.Normal.Sub(o.Price)
}

// OTOOffers lists the one-time offers in display order.
var OTOOffers = []OTOOffer{
	{ID: "offer1", Title: "Extra 50ml bottle", Normal: decimal.NewFromInt(325), Price: decimal.NewFromInt(245)},
	{ID: "offer2", Title: "4-bottle 50ml pack", Normal: decimal.NewFromInt(1300), Price: decimal.NewFromInt(940)},
}

// FindOTOOffer looks up an offer by its ID.
func FindOTOOffer(id string) (OTOOffer, bool) {
	for _, o := range OTOOffers {
		if o.ID == id {
			return o, true
		}
	}
	return OTOOffer{}, false
}
