package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-store/internal/domain/address"
)

type createAddressRequest struct {
	Label     string `json:"label" validate:"max=50"`
	FullName  string `json:"full_name" validate:"required,max=200"`
	Phone     string `json:"phone" validate:"required,max=20"`
	Line1     string `json:"address_line1" validate:"required,max=255"`
	Line2     string `json:"address_line2" validate:"max=255"`
	City      string `json:"city" validate:"required,max=100"`
	State     string `json:"state" validate:"required,max=100"`
	ZipCode   string `json:"zip_code" validate:"required,max=20"`
	Country   string `json:"country" validate:"max=100"`
	IsDefault bool   `json:"is_default"`
}

func (h *Handler) listAddresses(w http.ResponseWriter, r *http.Request) {
	list, err := h.addresses.List(r.Context(), identity(r).UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range list {
				encodeAddress(e, &list[i])
			}
		})
	})
}

func (h *Handler) createAddress(w http.ResponseWriter, r *http.Request) {
	var req createAddressRequest
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "label":
			req.Label, err = d.Str()
		case "full_name":
			req.FullName, err = d.Str()
		case "phone":
			req.Phone, err = d.Str()
		case "address_line1":
			req.Line1, err = d.Str()
		case "address_line2":
			err = decodeOptional(d, func(d *jx.Decoder) error {
				var err error
				req.Line2, err = d.Str()
				return err
			})
		case "city":
			req.City, err = d.Str()
		case "state":
			req.State, err = d.Str()
		case "zip_code":
			req.ZipCode, err = d.Str()
		case "country":
			req.Country, err = d.Str()
		case "is_default":
			req.IsDefault, err = d.Bool()
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

	a := &address.Address{
		UserID:   identity(r).UserID,
		Label:    req.Label,
		FullName: req.FullName,
		Phone:    req.Phone,
		Line1:    req.Line1,
		Line2:    req.Line2,
		City:     req.City,
		State:    req.State,
		ZipCode:  req.ZipCode,
		Country:  req.Country,
		Default:  req.IsDefault,
	}
	if err := h.addresses.Create(r.Context(), a); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeAddress(e, a) })
}

func (h *Handler) setDefaultAddress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.addresses.SetDefault(r.Context(), identity(r).UserID, id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteAddress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.addresses.Delete(r.Context(), identity(r).UserID, id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
