package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

type addToCartRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"gte=1"`
}

type updateCartRequest struct {
	Quantity int `json:"quantity" validate:"gte=1"`
}

func (h *Handler) viewCart(w http.ResponseWriter, r *http.Request) {
	snap, err := h.carts.View(r.Context(), identity(r).UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, snap) })
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	req := addToCartRequest{Quantity: 1}
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			req.ProductID, err = d.Int64()
		case "quantity":
			req.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil {
		err = h.check(req)
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	line, err := h.carts.Add(r.Context(), identity(r).UserID, req.ProductID, req.Quantity)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCartLine(e, line) })
}

func (h *Handler) updateCartLine(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productID")
	if err != nil {
		fail(w, r, err)
		return
	}
	var req updateCartRequest
	err = decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		var err error
		req.Quantity, err = d.Int()
		return err
	})
	if err == nil {
		err = h.check(req)
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	line, err := h.carts.Update(r.Context(), identity(r).UserID, productID, req.Quantity)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCartLine(e, line) })
}

func (h *Handler) removeCartLine(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productID")
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.carts.Remove(r.Context(), identity(r).UserID, productID); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
