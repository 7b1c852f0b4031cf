package checkout

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

var (
	ErrSessionNotFound   = errors.New("checkout session not found")
	ErrInvalidTransition = errors.New("invalid checkout transition")
	ErrProvinceRequired  = errors.New("province is required for card payment")
	ErrUnknownProvince   = errors.New("unknown province")
	ErrProofRequired     = errors.New("proof of payment is required")
	ErrProofUpload       = errors.New("proof of payment upload failed")
	ErrOfferUnavailable  = errors.New("irresistible offer is not available")
	ErrAlreadyCompleted  = errors.New("checkout already completed")
	ErrUnknownPayment    = errors.New("unknown payment method")
	ErrInvalidDiscount   = errors.New("bundle discount is not offered")
	ErrUnknownOffer      = errors.New("unknown one-time offer")
	ErrOfferPriceChanged = errors.New("one-time offer price does not match the catalog")
)

// IncompleteDetailsError lists the required customer fields that are empty.
type IncompleteDetailsError struct {
	Missing []string
}

func (e *IncompleteDetailsError) Error() string {
	return "missing customer details: " + strings.Join(e.Missing, ", ")
}

// InvalidQuantityError is returned when a checkout is started with fewer
// than one bottle.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d: at least one bottle is required", e.Quantity)
}

func transitionError(action string, from Step) error {
	return errors.Wrapf(ErrInvalidTransition, "%s from %s", action, from)
}
