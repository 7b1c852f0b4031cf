package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/eubiosis/checkout/internal/domain/cart"
	"github.com/eubiosis/checkout/internal/domain/checkout"
	"github.com/eubiosis/checkout/internal/domain/notify"
	"github.com/eubiosis/checkout/internal/domain/order"
	"github.com/eubiosis/checkout/internal/domain/pricing"
	"github.com/eubiosis/checkout/internal/domain/subscriber"
)

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		strField(e, "code", code)
		strField(e, "message", message)
		e.ObjEnd()
	})
}

// writeDomainError maps err to a status code and error body. Unexpected
// errors are logged and reported without detail.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		incomplete *checkout.IncompleteDetailsError
		quantity   *checkout.InvalidQuantityError
	)
	switch {
	case errors.As(err, &incomplete):
		writeJSON(w, http.StatusUnprocessableEntity, func(e *jx.Encoder) {
			e.ObjStart()
			strField(e, "code", "incomplete_details")
			strField(e, "message", err.Error())
			field(e, "missing", func() { encodeStrings(e, incomplete.Missing) })
			e.ObjEnd()
		})
	case errors.As(err, &quantity):
		writeError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, checkout.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", "checkout session not found")
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", "order not found")
	case errors.Is(err, checkout.ErrProvinceRequired):
		writeError(w, http.StatusUnprocessableEntity, "province_required", err.Error())
	case errors.Is(err, checkout.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, checkout.ErrAlreadyCompleted):
		writeError(w, http.StatusConflict, "already_completed", err.Error())
	case errors.Is(err, checkout.ErrOfferUnavailable):
		writeError(w, http.StatusConflict, "offer_unavailable", err.Error())
	case errors.Is(err, checkout.ErrProofUpload):
		zctx.From(r.Context()).Warn("Proof upload failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "proof_upload_failed", "proof of payment upload failed, please try again")
	case errors.Is(err, checkout.ErrProofRequired):
		writeError(w, http.StatusBadRequest, "proof_required", err.Error())
	case errors.Is(err, checkout.ErrUnknownProvince):
		writeError(w, http.StatusBadRequest, "unknown_province", err.Error())
	case errors.Is(err, checkout.ErrUnknownPayment):
		writeError(w, http.StatusBadRequest, "unknown_payment_method", err.Error())
	case errors.Is(err, checkout.ErrInvalidDiscount):
		writeError(w, http.StatusBadRequest, "invalid_discount", err.Error())
	case errors.Is(err, checkout.ErrUnknownOffer):
		writeError(w, http.StatusBadRequest, "unknown_offer", err.Error())
	case errors.Is(err, checkout.ErrOfferPriceChanged):
		writeError(w, http.StatusBadRequest, "offer_price_mismatch", err.Error())
	case errors.Is(err, pricing.ErrUnknownSize):
		writeError(w, http.StatusBadRequest, "unknown_size", err.Error())
	case errors.Is(err, cart.ErrInvalidItem):
		writeError(w, http.StatusBadRequest, "invalid_item", err.Error())
	case errors.Is(err, subscriber.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "invalid_email", err.Error())
	case errors.Is(err, notify.ErrUnknownEmailType):
		writeError(w, http.StatusBadRequest, "unknown_email_type", err.Error())
	case errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
