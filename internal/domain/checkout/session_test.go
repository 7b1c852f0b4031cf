package checkout

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eubiosis/checkout/internal/domain/order"
	"github.com/eubiosis/checkout/internal/domain/pricing"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func completeCustomer() order.Customer {
	return order.Customer{
		FirstName:  "Thandi",
		LastName:   "Mokoena",
		Email:      "thandi@example.co.za",
		Phone:      "0821234567",
		Address:    "12 Long Street",
		City:       "Cape Town",
		PostalCode: "8001",
	}
}

// sessionAt drives a fresh session to the payment step.
func sessionAt(t *testing.T, m order.PaymentMethod, province string) *Session {
	t.Helper()
	s := NewSession("s1", order.Draft{Size: pricing.Size50ml, Quantity: 1}, testNow)
	require.NoError(t, s.Begin())
	require.NoError(t, s.UpdateCustomer(completeCustomer()))
	if province != "" {
		require.NoError(t, s.SetProvince(province))
	}
	require.NoError(t, s.Continue())
	_, err := s.SelectPaymentMethod(m)
	require.NoError(t, err)
	return s
}

func TestStep_Number(t *testing.T) {
	assert.Equal(t, 1, StepProductReview.Number())
	assert.Equal(t, 2, StepCustomerDetails.Number())
	assert.Equal(t, 2, StepPaymentMethod.Number())
	assert.Equal(t, 3, StepPayment.Number())
}

func TestValidateDraft(t *testing.T) {
	require.NoError(t, ValidateDraft(order.Draft{Size: pricing.Size100ml, Quantity: 1}))

	err := ValidateDraft(order.Draft{Size: pricing.Size50ml, Quantity: 0})
	var qe *InvalidQuantityError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 0, qe.Quantity)

	assert.ErrorIs(t, ValidateDraft(order.Draft{Size: "75ml", Quantity: 1}), pricing.ErrUnknownSize)
}

func TestValidateDraft_Prices(t *testing.T) {
	price := func(v int64) *decimal.Decimal {
		p := decimal.NewFromInt(v)
		return &p
	}
	tests := []struct {
		name  string
		draft order.Draft
		err   error
	}{
		{"DefaultBundle", order.Draft{Bundle: true}, nil},
		{"LimitedDeal", order.Draft{Bundle: true, BundleDiscountPercent: 20}, nil},
		{"FreeBottles", order.Draft{Bundle: true, BundleDiscountPercent: 100}, ErrInvalidDiscount},
		{"NegativeTotal", order.Draft{Bundle: true, BundleDiscountPercent: 150}, ErrInvalidDiscount},
		{"NegativeDiscount", order.Draft{Bundle: true, BundleDiscountPercent: -10}, ErrInvalidDiscount},
		{"CatalogOffer", order.Draft{OTO: "offer2"}, nil},
		{"CatalogPrice", order.Draft{OTO: "offer2", OTOPrice: price(940)}, nil},
		{"CheapOffer", order.Draft{OTO: "offer2", OTOPrice: price(1)}, ErrOfferPriceChanged},
		{"UnknownOffer", order.Draft{OTO: "offer9"}, ErrUnknownOffer},
		{"PriceWithoutOffer", order.Draft{OTOPrice: price(245)}, ErrUnknownOffer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.draft
			d.Size, d.Quantity = pricing.Size100ml, 4
			err := ValidateDraft(d)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSession_ContinueRequiresDetails(t *testing.T) {
	required := []struct {
		field string
		clear func(*order.Customer)
	}{
		{FieldFirstName, func(c *order.Customer) { c.FirstName = "  " }},
		{FieldEmail, func(c *order.Customer) { c.Email = "" }},
		{FieldPhone, func(c *order.Customer) { c.Phone = "\t" }},
		{FieldAddress, func(c *order.Customer) { c.Address = "" }},
		{FieldCity, func(c *order.Customer) { c.City = "" }},
		{FieldPostalCode, func(c *order.Customer) { c.PostalCode = " " }},
	}

	for _, tt := range required {
		t.Run(tt.field, func(t *testing.T) {
			s := NewSession("s1", order.Draft{Size: pricing.Size50ml, Quantity: 1}, testNow)
			require.NoError(t, s.Begin())
			c := completeCustomer()
			tt.clear(&c)
			require.NoError(t, s.UpdateCustomer(c))
			before := *s

			assert.False(t, s.CanContinue())
			err := s.Continue()
			var ide *IncompleteDetailsError
			require.ErrorAs(t, err, &ide)
			assert.Equal(t, []string{tt.field}, ide.Missing)
			assert.Equal(t, before, *s, "failed continue leaves state unchanged")
		})
	}
}

func TestSession_ContinueWithoutProvince(t *testing.T) {
	s := NewSession("s1", order.Draft{Size: pricing.Size50ml, Quantity: 1}, testNow)
	require.NoError(t, s.Begin())
	require.NoError(t, s.UpdateCustomer(completeCustomer()))

	assert.True(t, s.CanContinue())
	require.NoError(t, s.Continue())
	assert.Equal(t, StepPaymentMethod, s.Step)
}

func TestSession_Transitions(t *testing.T) {
	s := NewSession("s1", order.Draft{Size: pricing.Size50ml, Quantity: 1}, testNow)

	assert.ErrorIs(t, s.Continue(), ErrInvalidTransition, "continue before begin")
	_, err := s.SelectPaymentMethod(order.PaymentGateway)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, s.Begin())
	assert.ErrorIs(t, s.Begin(), ErrInvalidTransition)
}

func TestSession_GatewayWithProvinceCompletesNow(t *testing.T) {
	s := NewSession("s1", order.Draft{Size: pricing.Size50ml, Quantity: 1}, testNow)
	require.NoError(t, s.Begin())
	require.NoError(t, s.UpdateCustomer(completeCustomer()))
	require.NoError(t, s.SetProvince("WC"))
	require.NoError(t, s.Continue())

	now, err := s.SelectPaymentMethod(order.PaymentGateway)
	require.NoError(t, err)
	assert.True(t, now)
	assert.Equal(t, "Western Cape", s.Customer.Province)
	assert.Equal(t, StepPayment, s.Step)
}

func TestSession_GatewayWithoutProvinceWaits(t *testing.T) {
	s := sessionAt(t, order.PaymentGateway, "")
	assert.ErrorIs(t, s.ReadyToPay(), ErrProvinceRequired)
	assert.ErrorIs(t, s.CompleteGateway("", false, testNow), ErrProvinceRequired)
	assert.Equal(t, StepPayment, s.Step)

	require.NoError(t, s.SetProvince("Gauteng"))
	require.NoError(t, s.CompleteGateway("o1", true, testNow))
	assert.True(t, s.Completed())
	assert.Equal(t, "o1", s.OrderID)
}

func TestSession_PaymentMethodImmutable(t *testing.T) {
	s := sessionAt(t, order.PaymentManualTransfer, "")
	_, err := s.SelectPaymentMethod(order.PaymentGateway)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, order.PaymentManualTransfer, s.PaymentMethod)
}

func TestSession_UnknownPaymentMethod(t *testing.T) {
	s := NewSession("s1", order.Draft{Size: pricing.Size50ml, Quantity: 1}, testNow)
	require.NoError(t, s.Begin())
	require.NoError(t, s.UpdateCustomer(completeCustomer()))
	require.NoError(t, s.Continue())

	_, err := s.SelectPaymentMethod("crypto")
	assert.ErrorIs(t, err, ErrUnknownPayment)
	assert.Equal(t, StepPaymentMethod, s.Step)
}

func TestSession_ManualNeverNeedsProvince(t *testing.T) {
	s := sessionAt(t, order.PaymentManualTransfer, "")

	assert.ErrorIs(t, s.CompleteManual("", "", false, testNow), ErrProofRequired)
	assert.False(t, s.SellerContacted)
	require.NoError(t, s.CompleteManual("https://cdn/proof.jpg", "", false, testNow), "seller contact is not enforced")
	assert.True(t, s.Completed())
	assert.Equal(t, "https://cdn/proof.jpg", s.ProofURL)
}

func TestSession_MarkSellerContacted(t *testing.T) {
	s := sessionAt(t, order.PaymentGateway, "")
	assert.ErrorIs(t, s.MarkSellerContacted(), ErrInvalidTransition)

	s = sessionAt(t, order.PaymentManualTransfer, "")
	require.NoError(t, s.MarkSellerContacted())
	assert.True(t, s.SellerContacted)
}

func TestSession_IrresistibleOffer(t *testing.T) {
	t.Run("needs province", func(t *testing.T) {
		s := sessionAt(t, order.PaymentGateway, "")
		assert.False(t, s.IrresistibleOfferAvailable())
		assert.ErrorIs(t, s.AcceptIrresistibleOffer(), ErrOfferUnavailable)
	})
	t.Run("not after big offer", func(t *testing.T) {
		s := sessionAt(t, order.PaymentGateway, "KZN")
		s.Draft.TookBigOffer = true
		assert.False(t, s.IrresistibleOfferAvailable())
	})
	t.Run("accepted once", func(t *testing.T) {
		s := sessionAt(t, order.PaymentGateway, "KZN")
		require.True(t, s.IrresistibleOfferAvailable())
		require.NoError(t, s.AcceptIrresistibleOffer())
		assert.False(t, s.IrresistibleOfferAvailable())
		assert.ErrorIs(t, s.AcceptIrresistibleOffer(), ErrOfferUnavailable)

		totals := s.Totals()
		assert.True(t, totals.Subtotal.Equal(pricing.Compute(pricing.Size50ml, 1, pricing.Flags{IrresistibleOffer: true}).Subtotal))
	})
}

func TestSession_CompletedIsTerminal(t *testing.T) {
	s := sessionAt(t, order.PaymentGateway, "WC")
	require.NoError(t, s.CompleteGateway("o1", true, testNow))

	assert.ErrorIs(t, s.ReadyToPay(), ErrAlreadyCompleted)
	assert.ErrorIs(t, s.UpdateCustomer(completeCustomer()), ErrAlreadyCompleted)
	assert.ErrorIs(t, s.SetProvince("GP"), ErrAlreadyCompleted)
	assert.False(t, s.IrresistibleOfferAvailable())
}

func TestSession_UpdateCustomerKeepsProvince(t *testing.T) {
	s := NewSession("s1", order.Draft{Size: pricing.Size50ml, Quantity: 1}, testNow)
	require.NoError(t, s.SetProvince("Limpopo"))

	c := completeCustomer()
	c.Province = "Gauteng"
	require.NoError(t, s.UpdateCustomer(c))
	assert.Equal(t, "Limpopo", s.Customer.Province)

	assert.ErrorIs(t, s.SetProvince("Atlantis"), ErrUnknownProvince)
}

func TestSplitFullName(t *testing.T) {
	tests := []struct {
		in, first, last string
	}{
		{"Thandi Mokoena", "Thandi", "Mokoena"},
		{"Mary Jane van Wyk", "Mary Jane van", "Wyk"},
		{"  Sipho  ", "Sipho", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		first, last := SplitFullName(tt.in)
		assert.Equal(t, tt.first, first, tt.in)
		assert.Equal(t, tt.last, last, tt.in)
	}
}

func TestFindProvince(t *testing.T) {
	p, ok := FindProvince("mpumalanga")
	require.True(t, ok)
	assert.Equal(t, "Nadine Marshall", p.Representative)
	assert.Equal(t, "27818909814", p.WhatsApp)

	p, ok = FindProvince("kzn")
	require.True(t, ok)
	assert.Equal(t, "KwaZulu-Natal", p.Name)

	assert.Len(t, Provinces, 9)
}

func TestSession_CustomerFrozenAfterDetails(t *testing.T) {
	s := NewSession("s1", order.Draft{Size: pricing.Size50ml, Quantity: 1}, testNow)
	require.NoError(t, s.Begin())
	require.NoError(t, s.UpdateCustomer(completeCustomer()))
	require.NoError(t, s.SetProvince("WC"))
	require.NoError(t, s.Continue())

	assert.ErrorIs(t, s.UpdateCustomer(order.Customer{}), ErrInvalidTransition, "payment method modal")

	_, err := s.SelectPaymentMethod(order.PaymentGateway)
	require.NoError(t, err)
	assert.ErrorIs(t, s.UpdateCustomer(order.Customer{}), ErrInvalidTransition, "payment step")
	assert.Equal(t, "thandi@example.co.za", s.Customer.Email)
	assert.Equal(t, "Western Cape", s.Customer.Province)
	require.NoError(t, s.ReadyToPay())
}

func TestSession_CompletionRevalidatesDetails(t *testing.T) {
	s := sessionAt(t, order.PaymentGateway, "WC")
	s.Customer.Email = " "
	var ide *IncompleteDetailsError
	require.ErrorAs(t, s.ReadyToPay(), &ide)
	assert.Equal(t, []string{FieldEmail}, ide.Missing)
	assert.Error(t, s.CompleteGateway("o1", true, testNow))
	assert.Equal(t, StepPayment, s.Step)

	s = sessionAt(t, order.PaymentManualTransfer, "")
	s.Customer.Phone = ""
	require.ErrorAs(t, s.ReadyForProof(), &ide)
	assert.Equal(t, []string{FieldPhone}, ide.Missing)
}

func TestSession_ClaimFreezesPrice(t *testing.T) {
	s := sessionAt(t, order.PaymentGateway, "KZN")
	require.True(t, s.IrresistibleOfferAvailable())

	s.Claim(testNow)
	assert.True(t, s.Claimed())
	assert.False(t, s.IrresistibleOfferAvailable())
	assert.ErrorIs(t, s.AcceptIrresistibleOffer(), ErrOfferUnavailable)
	assert.ErrorIs(t, s.SetProvince("Gauteng"), ErrInvalidTransition)
	assert.Equal(t, "KwaZulu-Natal", s.Customer.Province)
}
