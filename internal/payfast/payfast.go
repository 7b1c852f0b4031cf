// Package payfast builds the signed redirect form of the PayFast hosted
// payment page.
package payfast

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eubiosis/checkout/internal/domain/pricing"
)

// Defaults of the live storefront.
const (
	DefaultProcessURL = "https://www.payfast.co.za/eng/process"
	DefaultReturnURL  = "https://www.eubiosis.pro/checkout/success"
	DefaultCancelURL  = "https://www.eubiosis.pro/checkout"
	DefaultNotifyURL  = "https://www.eubiosis.pro/api/payfast/notify"
)

// Config holds merchant credentials and redirect URLs.
type Config struct {
	MerchantID  string `json:"merchant_id" yaml:"merchant_id"`
	MerchantKey string `json:"merchant_key" yaml:"merchant_key"`
	// Passphrase is appended to the signature string when set.
	Passphrase string `json:"passphrase" yaml:"passphrase"`
	ProcessURL string `json:"process_url" yaml:"process_url"`
	ReturnURL  string `json:"return_url" yaml:"return_url"`
	CancelURL  string `json:"cancel_url" yaml:"cancel_url"`
	NotifyURL  string `json:"notify_url" yaml:"notify_url"`
}

func (c *Config) setDefaults() {
	if c.ProcessURL == "" {
		c.ProcessURL = DefaultProcessURL
	}
	if c.ReturnURL == "" {
		c.ReturnURL = DefaultReturnURL
	}
	if c.CancelURL == "" {
		c.CancelURL = DefaultCancelURL
	}
	if c.NotifyURL == "" {
		c.NotifyURL = DefaultNotifyURL
	}
}

// Field is one hidden input of the form.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Form is a POST form to the gateway. Fields are in submission order with
// the signature last.
type Form struct {
	Action string  `json:"action"`
	Fields []Field `json:"fields"`
}

// Value returns the value of the named field.
func (f Form) Value(name string) string {
	for _, fl := range f.Fields {
		if fl.Name == name {
			return fl.Value
		}
	}
	return ""
}

// Payment is what the shopper is charged for.
type Payment struct {
	// OrderID is sent as m_payment_id when the order was persisted.
	OrderID   string
	Amount    decimal.Decimal
	ItemName  string
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// ItemName describes the order on the gateway page.
func ItemName(size pricing.Size, quantity int, irresistible bool, province string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Eubiosis %s x %d", size, quantity)
	if irresistible {
		b.WriteString(" + Extra 50ml Bottle")
	}
	fmt.Fprintf(&b, " - %s", province)
	return b.String()
}

// Builder creates signed forms.
type Builder struct {
	cfg Config
}

// NewBuilder creates a Builder.
func NewBuilder(cfg Config) *Builder {
	cfg.setDefaults()
	return &Builder{cfg: cfg}
}

// Build returns the signed form for p. It is deterministic: the same
// payment always yields the same form.
func (b *Builder) Build(p Payment) Form {
	fields := []Field{
		{"merchant_id", b.cfg.MerchantID},
		{"merchant_key", b.cfg.MerchantKey},
		{"amount", p.Amount.StringFixed(2)},
		{"item_name", p.ItemName},
		{"name_first", p.FirstName},
		{"name_last", p.LastName},
		{"email_address", p.Email},
		{"cell_number", p.Phone},
		{"return_url", b.cfg.ReturnURL},
		{"cancel_url", b.cfg.CancelURL},
		{"notify_url", b.cfg.NotifyURL},
	}
	if p.OrderID != "" {
		fields = append(fields, Field{"m_payment_id", p.OrderID})
	}
	fields = append(fields, Field{"signature", Signature(fields, b.cfg.Passphrase)})

	return Form{Action: b.cfg.ProcessURL, Fields: fields}
}

// Signature is the MD5 hex digest of the fields sorted by name, each
// encoded as name=value and joined with '&'.
func Signature(fields []Field, passphrase string) string {
	sorted := make([]Field, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	parts := make([]string, 0, len(sorted)+1)
	for _, f := range sorted {
		parts = append(parts, f.Name+"="+Encode(f.Value))
	}
	if passphrase != "" {
		parts = append(parts, "passphrase="+Encode(passphrase))
	}

	sum := md5.Sum([]byte(strings.Join(parts, "&")))
	return hex.EncodeToString(sum[:])
}

// Encode percent-encodes s like the browser's encodeURIComponent, except
// that spaces become '+'.
func Encode(s string) string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ' ':
			b.WriteByte('+')
		case unreserved(c):
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		}
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
