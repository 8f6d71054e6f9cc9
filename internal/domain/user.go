package domain

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// User is a recipient of workflow results.
type User struct {
	ID             int64  `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name" validate:"required,max=100"`
	Email          string `json:"email" yaml:"email" validate:"required,email"`
	LastFMUsername string `json:"last_fm_username,omitempty" yaml:"last_fm_username,omitempty" validate:"omitempty,max=64"`
}

// Location is a named place, e.g. home or office.
type Location struct {
	ID   int64   `json:"id" yaml:"id"`
	Name string  `json:"name" yaml:"name" validate:"required,max=100"`
	Lat  float64 `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lng  float64 `json:"lng" yaml:"lng" validate:"gte=-180,lte=180"`
}

func (u User) Validate() error     { return validateStruct(u) }
func (l Location) Validate() error { return validateStruct(l) }

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// Report fields by their JSON name so errors match the API payloads.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

func validateStruct(v any) error {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: validationMessage(fe)})
	}
	return out.OrNil()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
