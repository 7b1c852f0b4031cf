package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/eubiosis/checkout/internal/domain/cart"
	"github.com/eubiosis/checkout/internal/domain/checkout"
	"github.com/eubiosis/checkout/internal/domain/order"
	"github.com/eubiosis/checkout/internal/domain/pricing"
	"github.com/eubiosis/checkout/internal/payfast"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("malformed request")

// writeJSON encodes a JSON response with fn.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// decodeBody reads a JSON object body, calling fn for each field.
func decodeBody(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(errBadRequest, err.Error())
	}
	if err := jx.DecodeBytes(data).Obj(fn); err != nil {
		return errors.Wrap(errBadRequest, err.Error())
	}
	return nil
}

func field(e *jx.Encoder, name string, fn func()) {
	e.FieldStart(name)
	fn()
}

func strField(e *jx.Encoder, name, v string) {
	e.FieldStart(name)
	e.Str(v)
}

func intField(e *jx.Encoder, name string, v int) {
	e.FieldStart(name)
	e.Int(v)
}

func boolField(e *jx.Encoder, name string, v bool) {
	e.FieldStart(name)
	e.Bool(v)
}

func moneyField(e *jx.Encoder, name string, v decimal.Decimal) {
	e.FieldStart(name)
	e.Float64(v.InexactFloat64())
}

func timeField(e *jx.Encoder, name string, t time.Time) {
	e.FieldStart(name)
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeTotals(e *jx.Encoder, t pricing.Totals) {
	e.ObjStart()
	moneyField(e, "basePrice", t.BasePrice)
	moneyField(e, "discountedPrice", t.DiscountedPrice)
	moneyField(e, "irresistibleOfferPrice", t.IrresistibleOfferPrice)
	moneyField(e, "bundleDiscount", t.BundleDiscount)
	moneyField(e, "otoPrice", t.OTOPrice)
	moneyField(e, "subtotal", t.Subtotal)
	moneyField(e, "deliveryFee", t.DeliveryFee)
	moneyField(e, "total", t.Total)
	moneyField(e, "totalSavings", t.TotalSavings)
	e.ObjEnd()
}

func encodeDraft(e *jx.Encoder, d order.Draft) {
	e.ObjStart()
	strField(e, "size", string(d.Size))
	intField(e, "quantity", d.Quantity)
	boolField(e, "bundle", d.Bundle)
	intField(e, "bundleDiscountPercent", d.BundleDiscountPercent)
	boolField(e, "tookBigOffer", d.TookBigOffer)
	boolField(e, "irresistibleOffer", d.IrresistibleOffer)
	if d.OTO != "" {
		strField(e, "oto", d.OTO)
	}
	if d.OTOPrice != nil {
		moneyField(e, "otoPrice", *d.OTOPrice)
	}
	e.ObjEnd()
}

func encodeCustomer(e *jx.Encoder, c order.Customer) {
	e.ObjStart()
	strField(e, "firstName", c.FirstName)
	strField(e, "lastName", c.LastName)
	strField(e, "email", c.Email)
	strField(e, "phone", c.Phone)
	strField(e, "address", c.Address)
	strField(e, "city", c.City)
	strField(e, "postalCode", c.PostalCode)
	strField(e, "province", c.Province)
	strField(e, "country", c.Country)
	e.ObjEnd()
}

func encodeStrings(e *jx.Encoder, vs []string) {
	e.ArrStart()
	for _, v := range vs {
		e.Str(v)
	}
	e.ArrEnd()
}

func encodeForm(e *jx.Encoder, f payfast.Form) {
	e.ObjStart()
	strField(e, "action", f.Action)
	field(e, "fields", func() {
		e.ObjStart()
		for _, fl := range f.Fields {
			strField(e, fl.Name, fl.Value)
		}
		e.ObjEnd()
	})
	e.ObjEnd()
}

func encodeProvince(e *jx.Encoder, p checkout.Province) {
	e.ObjStart()
	strField(e, "code", p.Code)
	strField(e, "name", p.Name)
	strField(e, "representative", p.Representative)
	strField(e, "whatsapp", p.WhatsApp)
	e.ObjEnd()
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.ObjStart()
	strField(e, "sessionId", c.SessionID)
	field(e, "items", func() {
		e.ArrStart()
		for _, it := range c.Items {
			e.ObjStart()
			strField(e, "id", it.ProductID)
			strField(e, "name", it.Name)
			strField(e, "size", string(it.Size))
			intField(e, "quantity", it.Quantity)
			boolField(e, "bundle", it.Bundle)
			if it.BundleDiscountPercent > 0 {
				intField(e, "upsellDiscount", it.BundleDiscountPercent)
			}
			moneyField(e, "subtotal", it.Totals().Subtotal)
			e.ObjEnd()
		}
		e.ArrEnd()
	})
	intField(e, "itemCount", c.ItemCount())
	moneyField(e, "total", c.Total())
	e.ObjEnd()
}

// encodeSession writes the session plus everything the storefront derives
// from it.
func (h *Handler) encodeSession(e *jx.Encoder, s *checkout.Session) {
	e.ObjStart()
	strField(e, "id", s.ID)
	strField(e, "step", string(s.Step))
	intField(e, "stepNumber", s.Step.Number())
	field(e, "draft", func() { encodeDraft(e, s.Draft) })
	field(e, "customer", func() { encodeCustomer(e, s.Customer) })
	field(e, "totals", func() { encodeTotals(e, s.Totals()) })
	if s.PaymentMethod != "" {
		strField(e, "paymentMethod", string(s.PaymentMethod))
	}
	boolField(e, "canContinue", s.CanContinue())
	if s.Step == checkout.StepCustomerDetails {
		field(e, "missing", func() { encodeStrings(e, checkout.Validate(s.Customer)) })
	}
	boolField(e, "irresistibleOfferAvailable", s.IrresistibleOfferAvailable())
	boolField(e, "sellerContacted", s.SellerContacted)

	links := checkout.WhatsAppLinks(s, h.sellerNumber)
	field(e, "whatsapp", func() {
		e.ObjStart()
		strField(e, "contactSeller", links.ContactSeller)
		strField(e, "paidConfirmation", links.PaidConfirm)
		if links.Representative != "" {
			strField(e, "representative", links.Representative)
		}
		e.ObjEnd()
	})

	if s.Completed() {
		if s.OrderID != "" {
			strField(e, "orderId", s.OrderID)
			strField(e, "orderNumber", order.Number(s.OrderID))
		}
		if s.ProofURL != "" {
			strField(e, "proofUrl", s.ProofURL)
		}
		if s.CompletedAt != nil {
			timeField(e, "completedAt", *s.CompletedAt)
		}
	}
	timeField(e, "updatedAt", s.UpdatedAt)
	e.ObjEnd()
}
