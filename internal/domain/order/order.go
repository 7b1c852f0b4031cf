package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/eubiosis/checkout/internal/domain/pricing"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order not found")

// Status is the fulfilment status of a persisted order. This service only
// ever writes StatusPending; the back office moves it on.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// PaymentMethod is how the shopper pays.
type PaymentMethod string

const (
	// PaymentGateway redirects to the hosted card payment page.
	PaymentGateway PaymentMethod = "gateway"
	// PaymentManualTransfer is a bank transfer with uploaded proof.
	PaymentManualTransfer PaymentMethod = "manual-transfer"
)

// ParsePaymentMethod accepts the canonical names plus the storefront's
// "payfast" and "eft" aliases.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch strings.ToLower(s) {
	case "gateway", "payfast", "card":
		return PaymentGateway, true
	case "manual-transfer", "manual", "eft":
		return PaymentManualTransfer, true
	default:
		return "", false
	}
}

// Customer holds the shopper's contact and delivery details.
type Customer struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Province   string `json:"province"`
	Country    string `json:"country"`
}

// FullName joins first and last name.
func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Draft is the order as assembled during checkout.
type Draft struct {
	Size                  pricing.Size     `json:"size"`
	Quantity              int              `json:"quantity"`
	Bundle                bool             `json:"bundle"`
	BundleDiscountPercent int              `json:"bundleDiscountPercent"`
	TookBigOffer          bool             `json:"tookBigOffer"`
	IrresistibleOffer     bool             `json:"irresistibleOffer"`
	OTO                   string           `json:"oto,omitempty"`
	OTOPrice              *decimal.Decimal `json:"otoPrice,omitempty"`
	EmailDiscount         bool             `json:"emailDiscount,omitempty"`
}

// Flags returns the pricing flags of the draft.
func (d Draft) Flags() pricing.Flags {
	return pricing.Flags{
		IrresistibleOffer:     d.IrresistibleOffer,
		Bundle:                d.Bundle,
		BundleDiscountPercent: d.BundleDiscountPercent,
		OTOPrice:              d.OTOPrice,
	}
}

// Totals prices the draft.
func (d Draft) Totals() pricing.Totals {
	return pricing.Compute(d.Size, d.Quantity, d.Flags())
}

// Order is a persisted order. Monetary fields are integer cents.
type Order struct {
	ID        string
	CreatedAt time.Time

	Customer Customer

	Size              pricing.Size
	Quantity          int
	IsBundle          bool
	UpsellDiscount    int
	TookBigOffer      bool
	IrresistibleOffer bool
	OTOPrice          decimal.Decimal
	PaymentMethod     PaymentMethod

	SubtotalCents       int64
	DiscountAmountCents int64
	TotalAmountCents    int64

	Status   Status
	MailSent bool
}

// Number is the human-readable order number shown to the shopper.
func (o *Order) Number() string {
	return Number(o.ID)
}

// Number derives the order number from an order ID: "EB" followed by the
// first eight characters of the ID, upper-cased.
func Number(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return "EB" + strings.ToUpper(id)
}

const (
	unconfirmed    = "To be confirmed"
	defaultCountry = "South Africa"
)

// New assembles the pending order for a completed checkout. The persisted
// quantity counts the irresistible-offer bottle.
func New(d Draft, c Customer, method PaymentMethod, mailSent bool) *Order {
	totals := d.Totals()

	qty := d.Quantity
	if d.IrresistibleOffer {
		qty++
	}

	upsell := 0
	if d.Bundle {
		upsell = d.BundleDiscountPercent
		if upsell <= 0 {
			upsell = pricing.DefaultBundleDiscountPercent
		}
	}

	return &Order{
		Customer: Customer{
			FirstName:  c.FirstName,
			LastName:   c.LastName,
			Email:      c.Email,
			Phone:      c.Phone,
			Address:    orDefault(c.Address, unconfirmed),
			City:       orDefault(c.City, unconfirmed),
			PostalCode: orDefault(c.PostalCode, unconfirmed),
			Province:   c.Province,
			Country:    orDefault(c.Country, defaultCountry),
		},
		Size:                d.Size,
		Quantity:            qty,
		IsBundle:            d.Bundle,
		UpsellDiscount:      upsell,
		TookBigOffer:        d.TookBigOffer,
		IrresistibleOffer:   d.IrresistibleOffer,
		OTOPrice:            totals.OTOPrice,
		PaymentMethod:       method,
		SubtotalCents:       pricing.MinorUnits(totals.Subtotal),
		DiscountAmountCents: pricing.MinorUnits(totals.TotalSavings),
		TotalAmountCents:    pricing.MinorUnits(totals.Total),
		Status:              StatusPending,
		MailSent:            mailSent,
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// Repository persists orders.
type Repository interface {
	// Create inserts the order and fills in its generated ID and CreatedAt.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
}
