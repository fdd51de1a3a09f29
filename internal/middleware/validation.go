package middleware

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/vespl/caseflow-api/internal/model"
)

// RegisterDomainValidations installs the domain's custom binding tags on
// gin's validator engine. Safe to call more than once.
func RegisterDomainValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	_ = v.RegisterValidation("casestate", func(fl validator.FieldLevel) bool {
		return model.IsValidState(model.CaseState(fl.Field().String()))
	})
	_ = v.RegisterValidation("doctype", func(fl validator.FieldLevel) bool {
		_, known := model.DocumentType(fl.Field().String()).TypeCode()
		return known
	})
	// Error messages name the json field, not the Go field.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
}
