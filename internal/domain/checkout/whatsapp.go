package checkout

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eubiosis/checkout/internal/domain/order"
)

// DefaultSellerNumber receives bank-transfer enquiries.
const DefaultSellerNumber = "27818909814"

// WhatsAppLink returns a wa.me deep link with a prefilled message.
func WhatsAppLink(number, message string) string {
	return "https://wa.me/" + number + "?text=" + url.QueryEscape(message)
}

func orderLine(verb string, d order.Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi, %s %d bottle", verb, d.Quantity)
	if d.Quantity > 1 {
		b.WriteString("s")
	}
	fmt.Fprintf(&b, " of Eubiosis %s", d.Size)
	if d.IrresistibleOffer {
		b.WriteString(" + Extra 50ml Bottle")
	}
	return b.String()
}

// ContactSellerMessage asks the seller for bank details before a transfer.
func ContactSellerMessage(d order.Draft, total decimal.Decimal) string {
	return orderLine("I want to buy", d) + ". Total: R" + total.String()
}

// PaidMessage tells the seller a transfer was made.
func PaidMessage(d order.Draft, total decimal.Decimal) string {
	return orderLine("I paid for", d) + "\n\nAmount: R" + total.String()
}

// RepresentativeMessage is the enquiry sent to a regional representative.
func RepresentativeMessage(p Province) string {
	return fmt.Sprintf("Hi! I'm interested in ordering Eubiosis for delivery to %s. Can you help me with the bank transfer details?", p.Name)
}

// Links are the WhatsApp deep links of a session.
type Links struct {
	ContactSeller  string `json:"contactSeller"`
	PaidConfirm    string `json:"paidConfirmation"`
	Representative string `json:"representative,omitempty"`
}

// WhatsAppLinks builds the links for s, messaging sellerNumber.
func WhatsAppLinks(s *Session, sellerNumber string) Links {
	total := s.Totals().Total
	l := Links{
		ContactSeller: WhatsAppLink(sellerNumber, ContactSellerMessage(s.Draft, total)),
		PaidConfirm:   WhatsAppLink(sellerNumber, PaidMessage(s.Draft, total)),
	}
	if p, ok := FindProvince(s.Customer.Province); ok {
		l.Representative = WhatsAppLink(p.WhatsApp, RepresentativeMessage(p))
	}
	return l
}
