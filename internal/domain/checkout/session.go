// Package checkout implements the guided checkout: a per-session state
// machine from product review to payment, and the service that runs the
// completion side effects for each payment method.
package checkout

import (
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/eubiosis/checkout/internal/domain/order"
	"github.com/eubiosis/checkout/internal/domain/pricing"
)

// Step is a checkout state.
type Step string

const (
	StepProductReview   Step = "product-review"
	StepCustomerDetails Step = "customer-details"
	// StepPaymentMethod is the payment method modal shown over step 2.
	StepPaymentMethod Step = "payment-method"
	StepPayment       Step = "payment"
	StepCompleted     Step = "completed"
)

// Number is the step indicator shown to the shopper. The modal belongs to
// step 2.
func (s Step) Number() int {
	switch s {
	case StepProductReview:
		return 1
	case StepCustomerDetails, StepPaymentMethod:
		return 2
	default:
		return 3
	}
}

// Session is the state of one shopper's checkout.
type Session struct {
	ID        string    `json:"id"`
	Step      Step      `json:"step"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Draft    order.Draft    `json:"draft"`
	Customer order.Customer `json:"customer"`

	// PaymentMethod is empty until chosen and immutable afterwards.
	PaymentMethod   order.PaymentMethod `json:"paymentMethod,omitempty"`
	SellerContacted bool                `json:"sellerContacted,omitempty"`

	// ClaimedAt is set, and saved, before the completion side effects run.
	// A claimed session never runs them again.
	ClaimedAt *time.Time `json:"claimedAt,omitempty"`

	OrderID     string     `json:"orderId,omitempty"`
	ProofURL    string     `json:"proofUrl,omitempty"`
	MailSent    bool       `json:"mailSent,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// NewSession creates a session at product review. The caller validates the
// draft.
func NewSession(id string, d order.Draft, now time.Time) *Session {
	return &Session{
		ID:        id,
		Step:      StepProductReview,
		CreatedAt: now,
		UpdatedAt: now,
		Draft:     d,
	}
}

// ValidateDraft rejects drafts that cannot be priced. A one-time offer must
// come from the catalog; a price sent along with it must match the catalog.
func ValidateDraft(d order.Draft) error {
	if _, err := pricing.ParseSize(string(d.Size)); err != nil {
		return err
	}
	if d.Quantity < 1 {
		return &InvalidQuantityError{Quantity: d.Quantity}
	}
	if d.Bundle && d.BundleDiscountPercent != 0 && !pricing.ValidBundleDiscount(d.BundleDiscountPercent) {
		return errors.Wrapf(ErrInvalidDiscount, "%d%%", d.BundleDiscountPercent)
	}
	if d.OTO == "" {
		if d.OTOPrice != nil {
			return errors.Wrap(ErrUnknownOffer, "price without offer")
		}
		return nil
	}
	offer, ok := pricing.FindOTOOffer(d.OTO)
	if !ok {
		return errors.Wrapf(ErrUnknownOffer, "%q", d.OTO)
	}
	if d.OTOPrice != nil && !d.OTOPrice.Equal(offer.Price) {
		return errors.Wrapf(ErrOfferPriceChanged, "%s: %s", d.OTO, d.OTOPrice.String())
	}
	return nil
}

// Totals prices the session.
func (s *Session) Totals() pricing.Totals {
	return s.Draft.Totals()
}

// Completed reports whether the session reached its terminal state.
func (s *Session) Completed() bool {
	return s.Step == StepCompleted
}

// Begin moves from product review to customer details.
func (s *Session) Begin() error {
	if s.Step != StepProductReview {
		return transitionError("begin", s.Step)
	}
	s.Step = StepCustomerDetails
	return nil
}

// UpdateCustomer replaces the contact and delivery details. They are frozen
// once the payment method modal opens, so validated details stay valid.
// Province is managed by SetProvince and kept as is.
func (s *Session) UpdateCustomer(c order.Customer) error {
	switch s.Step {
	case StepProductReview, StepCustomerDetails:
	case StepCompleted:
		return ErrAlreadyCompleted
	default:
		return transitionError("update customer", s.Step)
	}
	c.Province = s.Customer.Province
	s.Customer = c
	return nil
}

// SetProvince selects the delivery province from the catalog.
func (s *Session) SetProvince(name string) error {
	if s.Completed() {
		return ErrAlreadyCompleted
	}
	if s.Claimed() {
		return transitionError("set province", s.Step)
	}
	p, ok := FindProvince(name)
	if !ok {
		return ErrUnknownProvince
	}
	s.Customer.Province = p.Name
	return nil
}

// CanContinue reports whether Continue would succeed.
func (s *Session) CanContinue() bool {
	switch s.Step {
	case StepProductReview:
		return true
	case StepCustomerDetails:
		return len(Validate(s.Customer)) == 0
	default:
		return false
	}
}

// Continue opens the payment method modal once the required details are
// filled in. On failure the session is unchanged.
func (s *Session) Continue() error {
	if s.Step != StepCustomerDetails {
		return transitionError("continue", s.Step)
	}
	if missing := Validate(s.Customer); len(missing) > 0 {
		return &IncompleteDetailsError{Missing: missing}
	}
	s.Step = StepPaymentMethod
	return nil
}

// SelectPaymentMethod records the method and moves to payment. It reports
// whether the card completion can run right away, which is the case when
// the province is already known.
func (s *Session) SelectPaymentMethod(m order.PaymentMethod) (completeNow bool, err error) {
	if s.Step != StepPaymentMethod || s.PaymentMethod != "" {
		return false, transitionError("select payment method", s.Step)
	}
	switch m {
	case order.PaymentGateway, order.PaymentManualTransfer:
	default:
		return false, ErrUnknownPayment
	}
	s.PaymentMethod = m
	s.Step = StepPayment
	return m == order.PaymentGateway && s.hasProvince(), nil
}

func (s *Session) hasProvince() bool {
	return strings.TrimSpace(s.Customer.Province) != ""
}

// IrresistibleOfferAvailable reports whether the extra-bottle add-on may be
// offered: only on the payment step, to shoppers who did not take the big
// bundle and have chosen a province.
func (s *Session) IrresistibleOfferAvailable() bool {
	return s.Step == StepPayment &&
		!s.Claimed() &&
		!s.Draft.TookBigOffer &&
		!s.Draft.IrresistibleOffer &&
		s.hasProvince()
}

// AcceptIrresistibleOffer adds the extra bottle.
func (s *Session) AcceptIrresistibleOffer() error {
	if !s.IrresistibleOfferAvailable() {
		return ErrOfferUnavailable
	}
	s.Draft.IrresistibleOffer = true
	return nil
}

// MarkSellerContacted records that the shopper opened the WhatsApp link on
// the transfer path. It does not gate anything.
func (s *Session) MarkSellerContacted() error {
	if s.Step != StepPayment || s.PaymentMethod != order.PaymentManualTransfer {
		return transitionError("contact seller", s.Step)
	}
	s.SellerContacted = true
	return nil
}

// ReadyToPay checks the card payment guard.
func (s *Session) ReadyToPay() error {
	if s.Completed() {
		return ErrAlreadyCompleted
	}
	if s.Step != StepPayment || s.PaymentMethod != order.PaymentGateway {
		return transitionError("pay", s.Step)
	}
	if !s.hasProvince() {
		return ErrProvinceRequired
	}
	return s.validCustomer()
}

func (s *Session) validCustomer() error {
	if missing := Validate(s.Customer); len(missing) > 0 {
		return &IncompleteDetailsError{Missing: missing}
	}
	return nil
}

// Claimed reports whether the completion side effects were started.
func (s *Session) Claimed() bool {
	return s.ClaimedAt != nil
}

// Claim marks the completion side effects as started.
func (s *Session) Claim(now time.Time) {
	s.ClaimedAt = &now
}

// CompleteGateway finishes a card checkout. orderID is empty when the order
// could not be persisted.
func (s *Session) CompleteGateway(orderID string, mailSent bool, now time.Time) error {
	if err := s.ReadyToPay(); err != nil {
		return err
	}
	s.complete(orderID, mailSent, now)
	return nil
}

// ReadyForProof checks the bank transfer guard.
func (s *Session) ReadyForProof() error {
	if s.Completed() {
		return ErrAlreadyCompleted
	}
	if s.Step != StepPayment || s.PaymentMethod != order.PaymentManualTransfer {
		return transitionError("submit proof", s.Step)
	}
	return s.validCustomer()
}

// CompleteManual finishes a bank transfer checkout with the uploaded proof.
func (s *Session) CompleteManual(proofURL, orderID string, mailSent bool, now time.Time) error {
	if err := s.ReadyForProof(); err != nil {
		return err
	}
	if strings.TrimSpace(proofURL) == "" {
		return ErrProofRequired
	}
	s.ProofURL = proofURL
	s.complete(orderID, mailSent, now)
	return nil
}

func (s *Session) complete(orderID string, mailSent bool, now time.Time) {
	s.OrderID = orderID
	s.MailSent = mailSent
	s.Step = StepCompleted
	s.CompletedAt = &now
}
