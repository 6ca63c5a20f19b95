package binder

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// notBlankValidator rejects strings that are empty once surrounding
// whitespace is removed. Nil pointers pass so the tag can be combined with
// omitempty on optional fields.
func notBlankValidator(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return true
	}
	return strings.TrimSpace(field.String()) != ""
}
