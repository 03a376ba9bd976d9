package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-store/internal/domain/address"
	"github.com/xenking/kart-store/internal/domain/cart"
	"github.com/xenking/kart-store/internal/domain/coupon"
	"github.com/xenking/kart-store/internal/domain/order"
	"github.com/xenking/kart-store/internal/domain/product"
)

const maxBodySize = 1 << 20

// writeJSON encodes a response body with fn and writes it with status.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// decodeBody reads a JSON object from the request body, calling fn for every
// field. An empty body is treated as an empty object.
func decodeBody(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return badRequest(errors.Wrap(err, "read body"))
	}
	if len(body) == 0 {
		return nil
	}
	if err := jx.DecodeBytes(body).Obj(fn); err != nil {
		return badRequest(errors.Wrap(err, "invalid JSON body"))
	}
	return nil
}

// pathID parses the named URL parameter as a positive integer.
func pathID(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, badRequest(errors.Errorf("invalid %s", name))
	}
	return v, nil
}

// decodeDecimal accepts both JSON numbers and numeric strings.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	}
}

// decodeOptional calls fn unless the next value is null.
func decodeOptional(d *jx.Decoder, fn func(d *jx.Decoder) error) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return fn(d)
}

func encodeMoney(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.StringFixed(2)))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("price", func(e *jx.Encoder) { encodeMoney(e, p.Price) })
		e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
		e.Field("is_active", func(e *jx.Encoder) { e.Bool(p.Active) })
		e.Field("stock_status", func(e *jx.Encoder) { e.Str(p.StockStatus()) })
	})
}

func encodeCart(e *jx.Encoder, s cart.Snapshot) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, entry := range s.Entries {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_id", func(e *jx.Encoder) { e.Int64(entry.Line.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(entry.Line.Quantity) })
						e.Field("added_at", func(e *jx.Encoder) { encodeTime(e, entry.Line.AddedAt) })
						e.Field("product", func(e *jx.Encoder) {
							if entry.Product == nil {
								e.Null()
								return
							}
							encodeProduct(e, entry.Product)
						})
						e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, entry.Subtotal()) })
					})
				}
			})
		})
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, s.Total) })
		e.Field("item_count", func(e *jx.Encoder) { e.Int(s.ItemCount) })
	})
}

func encodeCartLine(e *jx.Encoder, l *cart.Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product_id", func(e *jx.Encoder) { e.Int64(l.ProductID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
	})
}

func encodeAddress(e *jx.Encoder, a *address.Address) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(a.ID) })
		e.Field("label", func(e *jx.Encoder) { e.Str(a.Label) })
		e.Field("full_name", func(e *jx.Encoder) { e.Str(a.FullName) })
		e.Field("phone", func(e *jx.Encoder) { e.Str(a.Phone) })
		e.Field("address_line1", func(e *jx.Encoder) { e.Str(a.Line1) })
		e.Field("address_line2", func(e *jx.Encoder) { e.Str(a.Line2) })
		e.Field("city", func(e *jx.Encoder) { e.Str(a.City) })
		e.Field("state", func(e *jx.Encoder) { e.Str(a.State) })
		e.Field("zip_code", func(e *jx.Encoder) { e.Str(a.ZipCode) })
		e.Field("country", func(e *jx.Encoder) { e.Str(a.Country) })
		e.Field("is_default", func(e *jx.Encoder) { e.Bool(a.Default) })
	})
}

func encodeShipping(e *jx.Encoder, s *address.Snapshot) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("address_id", func(e *jx.Encoder) { e.Int64(s.AddressID) })
		e.Field("label", func(e *jx.Encoder) { e.Str(s.Label) })
		e.Field("full_name", func(e *jx.Encoder) { e.Str(s.FullName) })
		e.Field("phone", func(e *jx.Encoder) { e.Str(s.Phone) })
		e.Field("address_line1", func(e *jx.Encoder) { e.Str(s.Line1) })
		if s.Line2 != "" {
			e.Field("address_line2", func(e *jx.Encoder) { e.Str(s.Line2) })
		}
		e.Field("city", func(e *jx.Encoder) { e.Str(s.City) })
		e.Field("state", func(e *jx.Encoder) { e.Str(s.State) })
		e.Field("zip_code", func(e *jx.Encoder) { e.Str(s.ZipCode) })
		e.Field("country", func(e *jx.Encoder) { e.Str(s.Country) })
	})
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("discount_type", func(e *jx.Encoder) { e.Str(string(c.DiscountType)) })
		e.Field("discount_value", func(e *jx.Encoder) { encodeMoney(e, c.Value) })
		e.Field("min_order_amount", func(e *jx.Encoder) { encodeMoney(e, c.MinOrderAmount) })
		e.Field("max_discount", func(e *jx.Encoder) {
			if !c.MaxDiscount.Valid {
				e.Null()
				return
			}
			encodeMoney(e, c.MaxDiscount.Decimal)
		})
		e.Field("usage_limit", func(e *jx.Encoder) {
			if c.UsageLimit == nil {
				e.Null()
				return
			}
			e.Int(*c.UsageLimit)
		})
		e.Field("times_used", func(e *jx.Encoder) { e.Int(c.TimesUsed) })
		e.Field("is_active", func(e *jx.Encoder) { e.Bool(c.Active) })
		e.Field("expires_at", func(e *jx.Encoder) {
			if c.ExpiresAt == nil {
				e.Null()
				return
			}
			encodeTime(e, *c.ExpiresAt)
		})
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("user_id", func(e *jx.Encoder) { e.Int64(o.UserID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_id", func(e *jx.Encoder) { e.Int64(it.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("price", func(e *jx.Encoder) { encodeMoney(e, it.Price) })
						e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, it.Subtotal()) })
					})
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, o.Subtotal) })
		e.Field("discount_amount", func(e *jx.Encoder) { encodeMoney(e, o.Discount) })
		e.Field("total_price", func(e *jx.Encoder) { encodeMoney(e, o.Total) })
		e.Field("coupon_code", func(e *jx.Encoder) {
			if o.CouponCode == "" {
				e.Null()
				return
			}
			e.Str(o.CouponCode)
		})
		e.Field("shipping_address", func(e *jx.Encoder) {
			if o.ShippingAddress == nil {
				e.Null()
				return
			}
			encodeShipping(e, o.ShippingAddress)
		})
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(string(o.PaymentMethod)) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
		e.Field("updated_at", func(e *jx.Encoder) { encodeTime(e, o.UpdatedAt) })
	})
}

func encodeStats(e *jx.Encoder, s *order.Stats) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("total_orders", func(e *jx.Encoder) { e.Int(s.Count) })
		e.Field("total_revenue", func(e *jx.Encoder) { encodeMoney(e, s.Revenue) })
		e.Field("by_status", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, st := range order.Statuses {
					e.Field(string(st), func(e *jx.Encoder) { e.Int(s.ByStatus[st]) })
				}
			})
		})
		e.Field("recent_orders", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range s.Recent {
					encodeOrder(e, &s.Recent[i])
				}
			})
		})
	})
}
