package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-store/internal/domain/coupon"
	"github.com/xenking/kart-store/pkg/httpmiddleware"
)

type validateCouponRequest struct {
	Code       string          `json:"code" validate:"required,max=64"`
	OrderTotal decimal.Decimal `json:"order_total"`
}

type createCouponRequest struct {
	Code           string              `json:"code" validate:"required,max=64"`
	DiscountType   string              `json:"discount_type" validate:"required,oneof=percent flat"`
	Value          decimal.Decimal     `json:"discount_value"`
	MinOrderAmount decimal.Decimal     `json:"min_order_amount"`
	MaxDiscount    decimal.NullDecimal `json:"max_discount"`
	UsageLimit     *int                `json:"usage_limit" validate:"omitempty,gte=0"`
	ExpiresAt      *time.Time          `json:"expires_at"`
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	var (
		list []coupon.Coupon
		err  error
	)
	if identity(r).IsAdmin() {
		list, err = h.coupons.List(r.Context())
	} else {
		list, err = h.coupons.ListAvailable(r.Context())
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range list {
				encodeCoupon(e, &list[i])
			}
		})
	})
}

func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			req.Code, err = d.Str()
		case "order_total":
			req.OrderTotal, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil {
		err = h.check(req)
	}
	if err == nil && req.OrderTotal.IsNegative() {
		err = badRequest(errors.New("order_total: must not be negative"))
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	q, err := h.coupons.Validate(r.Context(), req.Code, req.OrderTotal)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("valid", func(e *jx.Encoder) { e.Bool(true) })
			e.Field("code", func(e *jx.Encoder) { e.Str(q.Coupon.Code) })
			e.Field("discount_type", func(e *jx.Encoder) { e.Str(string(q.Coupon.DiscountType)) })
			e.Field("discount", func(e *jx.Encoder) { encodeMoney(e, q.Discount) })
			e.Field("final_total", func(e *jx.Encoder) { encodeMoney(e, q.FinalTotal) })
		})
	})
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			req.Code, err = d.Str()
		case "discount_type":
			req.DiscountType, err = d.Str()
		case "discount_value":
			req.Value, err = decodeDecimal(d)
		case "min_order_amount":
			err = decodeOptional(d, func(d *jx.Decoder) error {
				var err error
				req.MinOrderAmount, err = decodeDecimal(d)
				return err
			})
		case "max_discount":
			err = decodeOptional(d, func(d *jx.Decoder) error {
				v, err := decodeDecimal(d)
				req.MaxDiscount = decimal.NewNullDecimal(v)
				return err
			})
		case "usage_limit":
			err = decodeOptional(d, func(d *jx.Decoder) error {
				v, err := d.Int()
				req.UsageLimit = &v
				return err
			})
		case "expires_at":
			err = decodeOptional(d, func(d *jx.Decoder) error {
				s, err := d.Str()
				if err != nil {
					return err
				}
				t, err := time.Parse(time.RFC3339, s)
				if err != nil {
					return err
				}
				req.ExpiresAt = &t
				return nil
			})
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

	c := &coupon.Coupon{
		Code:           req.Code,
		DiscountType:   coupon.DiscountType(req.DiscountType),
		Value:          req.Value,
		MinOrderAmount: req.MinOrderAmount,
		MaxDiscount:    req.MaxDiscount,
		UsageLimit:     req.UsageLimit,
		ExpiresAt:      req.ExpiresAt,
	}
	if err := h.coupons.Create(r.Context(), c); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCoupon(e, c) })
}

func (h *Handler) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.coupons.Delete(r.Context(), id); err != nil {
		// Not found wraps ErrInvalidCoupon, which maps to 400 elsewhere.
		if errors.Is(err, coupon.ErrNotFound) {
			httpmiddleware.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
