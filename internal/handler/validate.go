package handler

import (
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check validates a request DTO and reports the first failing field.
func (h *Handler) check(req any) error {
	err := h.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		f := fields[0]
		if f.Param() != "" {
			return badRequest(errors.Errorf("%s: must satisfy %s=%s", f.Field(), f.Tag(), f.Param()))
		}
		return badRequest(errors.Errorf("%s: must satisfy %s", f.Field(), f.Tag()))
	}
	return badRequest(err)
}
