package handler

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/eubiosis/checkout/internal/domain/checkout"
	"github.com/eubiosis/checkout/internal/domain/order"
	"github.com/eubiosis/checkout/internal/domain/pricing"
	"github.com/eubiosis/checkout/internal/payfast"
)

func decodeAmount(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}

func decodeStartRequest(r *http.Request) (checkout.StartRequest, error) {
	var (
		req  checkout.StartRequest
		size string
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "size":
			size, err = d.Str()
		case "quantity":
			req.Draft.Quantity, err = d.Int()
		case "bundle":
			req.Draft.Bundle, err = d.Bool()
		case "upsellDiscount":
			req.Draft.BundleDiscountPercent, err = d.Int()
		case "tookBigOffer":
			req.Draft.TookBigOffer, err = d.Bool()
		case "oto":
			req.Draft.OTO, err = d.Str()
		case "otoPrice":
			var p decimal.Decimal
			if p, err = decodeAmount(d); err == nil {
				req.Draft.OTOPrice = &p
			}
		case "emailDiscount":
			req.Draft.EmailDiscount, err = d.Bool()
		case "province":
			req.Province, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return req, err
	}
	req.Draft.Size, err = pricing.ParseSize(size)
	return req, err
}

// decodeCustomer accepts either a single fullName, split on its last space,
// or firstName and lastName.
func decodeCustomer(r *http.Request) (order.Customer, error) {
	var (
		c        order.Customer
		fullName string
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "fullName":
			fullName, err = d.Str()
		case "firstName":
			c.FirstName, err = d.Str()
		case "lastName":
			c.LastName, err = d.Str()
		case "email":
			c.Email, err = d.Str()
		case "phone":
			c.Phone, err = d.Str()
		case "address":
			c.Address, err = d.Str()
		case "city":
			c.City, err = d.Str()
		case "postalCode":
			c.PostalCode, err = d.Str()
		case "country":
			c.Country, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if fullName != "" {
		c.FirstName, c.LastName = checkout.SplitFullName(fullName)
	}
	return c, err
}

func decodeStringField(r *http.Request, name string) (string, error) {
	var v string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != name {
			return d.Skip()
		}
		var err error
		v, err = d.Str()
		return err
	})
	return v, err
}

func (h *Handler) writeSession(w http.ResponseWriter, status int, s *checkout.Session) {
	writeJSON(w, status, func(e *jx.Encoder) {
		h.encodeSession(e, s)
	})
}

func redirectPath(id string) string {
	return "/api/checkout/" + id + "/redirect"
}

// writePayment writes the session together with the gateway form the
// storefront submits, or follows via the redirect page.
func (h *Handler) writePayment(w http.ResponseWriter, s *checkout.Session, f *payfast.Form) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		field(e, "session", func() { h.encodeSession(e, s) })
		if f != nil {
			field(e, "payment", func() { encodeForm(e, *f) })
			strField(e, "redirectUrl", redirectPath(s.ID))
		}
		e.ObjEnd()
	})
}

func (h *Handler) startCheckout(w http.ResponseWriter, r *http.Request) {
	req, err := decodeStartRequest(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	sess, err := h.checkout.Start(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusCreated, sess)
}

func (h *Handler) getCheckout(w http.ResponseWriter, r *http.Request) {
	sess, err := h.checkout.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusOK, sess)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCustomer(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	sess, err := h.checkout.UpdateCustomer(r.Context(), chi.URLParam(r, "id"), c)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusOK, sess)
}

func (h *Handler) setProvince(w http.ResponseWriter, r *http.Request) {
	province, err := decodeStringField(r, "province")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	sess, err := h.checkout.SetProvince(r.Context(), chi.URLParam(r, "id"), province)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusOK, sess)
}

func (h *Handler) continueCheckout(w http.ResponseWriter, r *http.Request) {
	sess, err := h.checkout.Continue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusOK, sess)
}

func (h *Handler) selectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	name, err := decodeStringField(r, "method")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	m, ok := order.ParsePaymentMethod(name)
	if !ok {
		writeDomainError(w, r, errors.Wrapf(checkout.ErrUnknownPayment, "%q", name))
		return
	}
	sess, form, err := h.checkout.SelectPaymentMethod(r.Context(), chi.URLParam(r, "id"), m)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writePayment(w, sess, form)
}

func (h *Handler) acceptIrresistibleOffer(w http.ResponseWriter, r *http.Request) {
	sess, err := h.checkout.AcceptIrresistibleOffer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusOK, sess)
}

func (h *Handler) sellerContacted(w http.ResponseWriter, r *http.Request) {
	sess, link, err := h.checkout.MarkSellerContacted(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		field(e, "session", func() { h.encodeSession(e, sess) })
		strField(e, "whatsappUrl", link)
		e.ObjEnd()
	})
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	sess, form, err := h.checkout.Pay(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writePayment(w, sess, &form)
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request) {
	form, err := h.checkout.Form(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := payfast.RenderAutoSubmit(&buf, form, h.redirectDelay); err != nil {
		writeDomainError(w, r, errors.Wrap(err, "render redirect"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// proofFields are the accepted multipart names of the proof file.
var proofFields = []string{"file", "proof"}

func (h *Handler) submitProof(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxProofBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxProofBytes); err != nil {
		writeDomainError(w, r, errors.Wrap(errBadRequest, err.Error()))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	p := checkout.Proof{Email: strings.TrimSpace(r.FormValue("email"))}
	for _, name := range proofFields {
		f, hdr, err := r.FormFile(name)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			writeDomainError(w, r, errors.Wrap(errBadRequest, err.Error()))
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeDomainError(w, r, errors.Wrap(errBadRequest, err.Error()))
			return
		}
		p.Filename = hdr.Filename
		p.ContentType = hdr.Header.Get("Content-Type")
		p.Data = data
		break
	}

	id := chi.URLParam(r, "id")
	zctx.From(r.Context()).Debug("Proof received",
		zap.String("session_id", id),
		zap.String("filename", p.Filename),
		zap.Int("size", len(p.Data)),
	)

	sess, err := h.checkout.SubmitProof(r.Context(), id, p)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusOK, sess)
}
