package payfast

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eubiosis/checkout/internal/domain/pricing"
)

func testPayment() Payment {
	return Payment{
		Amount:    decimal.NewFromInt(559),
		ItemName:  ItemName(pricing.Size50ml, 1, true, "Western Cape"),
		FirstName: "Thandi",
		LastName:  "Mokoena",
		Email:     "thandi@example.co.za",
		Phone:     "0821234567",
	}
}

func testConfig() Config {
	return Config{MerchantID: "10000100", MerchantKey: "46f0cd694581a"}
}

func TestItemName(t *testing.T) {
	assert.Equal(t, "Eubiosis 100ml x 2 - Gauteng", ItemName(pricing.Size100ml, 2, false, "Gauteng"))
	assert.Equal(t, "Eubiosis 50ml x 1 + Extra 50ml Bottle - Western Cape",
		ItemName(pricing.Size50ml, 1, true, "Western Cape"))
}

func TestEncode(t *testing.T) {
	assert.Equal(t, "Hi+I'm+(x)+R1+%26+2%2F3+%C3%A9", Encode("Hi I'm (x) R1 & 2/3 é"))
	assert.Equal(t, "https%3A%2F%2Fwww.eubiosis.pro%2Fcheckout", Encode("https://www.eubiosis.pro/checkout"))
}

func TestBuild(t *testing.T) {
	form := NewBuilder(testConfig()).Build(testPayment())

	assert.Equal(t, DefaultProcessURL, form.Action)
	assert.Equal(t, "559.00", form.Value("amount"))
	assert.Equal(t, DefaultNotifyURL, form.Value("notify_url"))
	assert.Equal(t, "a4d00f99f5acd24c141ca784473f24e7", form.Value("signature"))
	assert.Equal(t, "signature", form.Fields[len(form.Fields)-1].Name)
	assert.Empty(t, form.Value("m_payment_id"))
}

func TestBuild_Passphrase(t *testing.T) {
	cfg := testConfig()
	cfg.Passphrase = "jt7NOE43FZPn"

	form := NewBuilder(cfg).Build(testPayment())
	assert.Equal(t, "0596ee87733b73d01cb52950ffb764f5", form.Value("signature"))
}

func TestBuild_Deterministic(t *testing.T) {
	b := NewBuilder(testConfig())
	p := testPayment()
	p.OrderID = "3f2a9c1d-7b1e-4c55-9a0d-1e2f3a4b5c6d"

	first := b.Build(p)
	second := b.Build(p)
	assert.Equal(t, first, second)
	assert.Equal(t, p.OrderID, first.Value("m_payment_id"))
	assert.NotEqual(t, "a4d00f99f5acd24c141ca784473f24e7", first.Value("signature"))
}

func TestSignature_IgnoresFieldOrder(t *testing.T) {
	a := []Field{{"b", "2"}, {"a", "1 2"}}
	b := []Field{{"a", "1 2"}, {"b", "2"}}
	assert.Equal(t, Signature(a, ""), Signature(b, ""))
}

func TestRenderAutoSubmit(t *testing.T) {
	form := NewBuilder(testConfig()).Build(testPayment())

	var buf bytes.Buffer
	require.NoError(t, RenderAutoSubmit(&buf, form, DefaultRedirectDelay))

	html := buf.String()
	assert.Contains(t, html, `action="https://www.payfast.co.za/eng/process"`)
	assert.Contains(t, html, `name="signature" value="a4d00f99f5acd24c141ca784473f24e7"`)
	assert.Contains(t, html, "2000")
}

func TestRenderAutoSubmit_NegativeDelay(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderAutoSubmit(&buf, Form{Action: DefaultProcessURL}, -time.Second))
	assert.Regexp(t, `\},\s*0\s*\)`, buf.String())
}
