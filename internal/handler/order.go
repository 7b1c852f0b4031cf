package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/eubiosis/checkout/internal/domain/notify"
	"github.com/eubiosis/checkout/internal/domain/order"
	"github.com/eubiosis/checkout/internal/domain/pricing"
)

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	// Order IDs are UUIDs; anything else cannot exist.
	if _, err := uuid.Parse(id); err != nil {
		writeDomainError(w, r, errors.Wrap(order.ErrNotFound, id))
		return
	}
	o, err := h.orders.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		strField(e, "id", o.ID)
		strField(e, "orderNumber", o.Number())
		strField(e, "status", string(o.Status))
		strField(e, "paymentMethod", string(o.PaymentMethod))
		strField(e, "size", string(o.Size))
		intField(e, "quantity", o.Quantity)
		moneyField(e, "total", pricing.FromMinorUnits(o.TotalAmountCents))
		boolField(e, "mailSent", o.MailSent)
		timeField(e, "createdAt", o.CreatedAt)
		e.ObjEnd()
	})
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	var email, source string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "email":
			email, err = d.Str()
		case "source":
			source, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	created, err := h.subscribers.Subscribe(r.Context(), email, source)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		boolField(e, "subscribed", true)
		boolField(e, "created", created)
		e.ObjEnd()
	})
}

type notificationRequest struct {
	emailType string
	summary   notify.Summary
}

func decodeNotification(r *http.Request) (notificationRequest, error) {
	var (
		req  notificationRequest
		size string
	)
	s := &req.summary
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "emailType":
			req.emailType, err = d.Str()
		case "customerName":
			s.CustomerName, err = d.Str()
		case "customerEmail":
			s.CustomerEmail, err = d.Str()
		case "phone":
			s.Phone, err = d.Str()
		case "address":
			s.Address, err = d.Str()
		case "city":
			s.City, err = d.Str()
		case "postalCode":
			s.PostalCode, err = d.Str()
		case "size":
			size, err = d.Str()
		case "quantity":
			s.Quantity, err = d.Int()
		case "totalPrice":
			var total decimal.Decimal
			if total, err = decodeAmount(d); err == nil {
				s.Total = total
			}
		case "irresistibleOfferAccepted":
			s.IrresistibleOffer, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return req, err
	}
	if s.Size, err = pricing.ParseSize(size); err != nil {
		return req, err
	}
	return req, nil
}

// sendNotifications sends the pending or purchased emails for an order
// confirmed outside the storefront.
func (h *Handler) sendNotifications(w http.ResponseWriter, r *http.Request) {
	req, err := decodeNotification(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	typ, err := notify.ParseEmailType(req.emailType)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	results := h.mailer.OrderEmails(r.Context(), typ, req.summary)
	sent := notify.AnySent(results)
	status := http.StatusOK
	if !sent {
		status = http.StatusBadGateway
		zctx.From(r.Context()).Warn("No notification delivered",
			zap.String("email_type", string(typ)),
			zap.Int("attempts", len(results)),
		)
	}

	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		boolField(e, "sent", sent)
		field(e, "results", func() {
			e.ArrStart()
			for _, res := range results {
				e.ObjStart()
				strField(e, "name", res.Name)
				boolField(e, "ok", res.OK())
				if res.OK() {
					strField(e, "messageId", res.Value)
				} else {
					strField(e, "error", res.Err.Error())
				}
				e.ObjEnd()
			}
			e.ArrEnd()
		})
		e.ObjEnd()
	})
}
