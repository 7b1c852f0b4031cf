package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/eubiosis/checkout/internal/domain/cart"
	"github.com/eubiosis/checkout/internal/domain/pricing"
)

func decodeCartItem(r *http.Request) (cart.Item, error) {
	var item cart.Item
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			item.ProductID, err = d.Str()
		case "name":
			item.Name, err = d.Str()
		case "size":
			var s string
			s, err = d.Str()
			item.Size = pricing.Size(s)
		case "quantity":
			item.Quantity, err = d.Int()
		case "bundle":
			item.Bundle, err = d.Bool()
		case "upsellDiscount":
			item.BundleDiscountPercent, err = d.Int()
		case "emailDiscount":
			item.EmailDiscount, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	return item, err
}

func (h *Handler) writeCart(w http.ResponseWriter, c *cart.Cart) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCart(e, c)
	})
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.cart.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeCart(w, c)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.Clear(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	item, err := decodeCartItem(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	c, err := h.cart.Add(r.Context(), chi.URLParam(r, "sessionID"), item)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeCart(w, c)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	item, err := decodeCartItem(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if item.ProductID == "" {
		item.ProductID = cart.DefaultProductID
	}
	c, err := h.cart.UpdateQuantity(r.Context(), chi.URLParam(r, "sessionID"), item.ProductID, item.Size, item.Quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeCart(w, c)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("id")
	if id == "" {
		id = cart.DefaultProductID
	}
	size, err := pricing.ParseSize(q.Get("size"))
	if err != nil {
		writeDomainError(w, r, errors.Wrap(errBadRequest, err.Error()))
		return
	}
	c, err := h.cart.Remove(r.Context(), chi.URLParam(r, "sessionID"), id, size)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeCart(w, c)
}
