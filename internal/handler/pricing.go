package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/eubiosis/checkout/internal/domain/checkout"
	"github.com/eubiosis/checkout/internal/domain/pricing"
)

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(errBadRequest, "%s: not a number", name)
	}
	return n, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrapf(errBadRequest, "%s: not a boolean", name)
	}
	return b, nil
}

func querySize(r *http.Request) (pricing.Size, error) {
	v := r.URL.Query().Get("size")
	if v == "" {
		return pricing.Size50ml, nil
	}
	return pricing.ParseSize(v)
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	size, err := querySize(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	qty, err := queryInt(r, "quantity", 1)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if qty < 1 {
		writeDomainError(w, r, &checkout.InvalidQuantityError{Quantity: qty})
		return
	}

	var flags pricing.Flags
	if flags.Bundle, err = queryBool(r, "bundle"); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if flags.BundleDiscountPercent, err = queryInt(r, "bundleDiscount", 0); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if pct := flags.BundleDiscountPercent; flags.Bundle && pct != 0 && !h.checkout.BundleDiscountOffered(pct) {
		writeDomainError(w, r, errors.Wrapf(checkout.ErrInvalidDiscount, "%d%%", pct))
		return
	}
	if flags.IrresistibleOffer, err = queryBool(r, "irresistible"); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if id := r.URL.Query().Get("oto"); id != "" {
		offer, ok := pricing.FindOTOOffer(id)
		if !ok {
			writeDomainError(w, r, errors.Wrap(checkout.ErrUnknownOffer, id))
			return
		}
		price := offer.Price
		flags.OTOPrice = &price
	}

	totals := pricing.Compute(size, qty, flags)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeTotals(e, totals)
	})
}

func (h *Handler) upsell(w http.ResponseWriter, r *http.Request) {
	size, err := querySize(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	qty, err := queryInt(r, "quantity", 1)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if qty < 1 {
		writeDomainError(w, r, &checkout.InvalidQuantityError{Quantity: qty})
		return
	}

	o := pricing.Upsell(size, qty, h.dealDiscount)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		strField(e, "size", string(o.Size))
		intField(e, "originalQuantity", o.OriginalQuantity)
		moneyField(e, "originalTotal", o.OriginalTotal)
		intField(e, "originalSupplyDays", o.OriginalSupplyDays)
		intField(e, "quantity", o.Quantity)
		intField(e, "discountPercent", o.DiscountPercent)
		moneyField(e, "total", o.Total)
		moneyField(e, "discountedTotal", o.DiscountedTotal)
		moneyField(e, "savings", o.Savings)
		field(e, "percentSaved", func() { e.Int64(o.PercentSaved) })
		moneyField(e, "pricePerBottle", o.PricePerBottle)
		intField(e, "supplyDays", o.SupplyDays)
		e.ObjEnd()
	})
}

func (h *Handler) otoOffers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, o := range pricing.OTOOffers {
			e.ObjStart()
			strField(e, "id", o.ID)
			strField(e, "title", o.Title)
			moneyField(e, "normalPrice", o.Normal)
			moneyField(e, "price", o.Price)
			moneyField(e, "savings", o.Savings())
			e.ObjEnd()
		}
		e.ArrEnd()
	})
}

func (h *Handler) provinces(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range checkout.Provinces {
			encodeProvince(e, p)
		}
		e.ArrEnd()
	})
}
