package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-store/internal/domain/order"
)

type placeOrderRequest struct {
	AddressID     *int64 `json:"address_id" validate:"omitempty,gt=0"`
	CouponCode    string `json:"coupon_code" validate:"max=64"`
	PaymentMethod string `json:"payment_method" validate:"max=16"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "address_id":
			return decodeOptional(d, func(d *jx.Decoder) error {
				v, err := d.Int64()
				req.AddressID = &v
				return err
			})
		case "coupon_code":
			return decodeOptional(d, func(d *jx.Decoder) error {
				var err error
				req.CouponCode, err = d.Str()
				return err
			})
		case "payment_method":
			var err error
			req.PaymentMethod, err = d.Str()
			return err
		default:
			return d.Skip()
		}
	})
	if err == nil {
		err = h.check(req)
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceRequest{
		UserID:        identity(r).UserID,
		AddressID:     req.AddressID,
		CouponCode:    req.CouponCode,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	list, err := h.orders.ListOrders(r.Context(), id.UserID, id.IsAdmin())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range list {
				encodeOrder(e, &list[i])
			}
		})
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	o, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"), id.UserID, id.IsAdmin())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		var err error
		req.Status, err = d.Str()
		return err
	})
	if err == nil {
		err = h.check(req)
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	o, err := h.orders.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) orderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.Stats(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeStats(e, stats) })
}
