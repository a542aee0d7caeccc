package server

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/iancoleman/strcase"
)

// NewValidator reports field names the way they appear on the wire: the json
// tag when present, snake_case of the Go name otherwise.
func NewValidator() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return strcase.ToSnake(field.Name)
		}

		return name
	})

	return validate
}
