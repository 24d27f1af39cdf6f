package models

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their form name so errors line up with the inputs
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		}
		return name
	})
	return v
}

// ValidationErrors maps a form field to the message rendered next to it.
type ValidationErrors map[string]string

func (e ValidationErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add keeps the first message recorded for a field.
func (e ValidationErrors) Add(field string, message string) {
	if _, ok := e[field]; !ok {
		e[field] = message
	}
}

func (e ValidationErrors) errOrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func AsValidationErrors(err error) (ValidationErrors, bool) {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	return nil, false
}

// keyed by "field.tag" first, then "field"
type fieldMessages map[string]string

var tagMessages = map[string]string{
	"required": "此项为必填项",
	"email":    "请确认邮箱格式",
	"max":      "长度超出限制",
	"min":      "长度不足",
	"len":      "长度不正确",
	"oneof":    "请选择有效选项",
	"eqfield":  "两次输入不一致",
	"nefield":  "不能与原值相同",
}

func validateInput(input any, messages fieldMessages) ValidationErrors {
	errs := ValidationErrors{}
	err := validate.Struct(input)
	if err == nil {
		return errs
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.Add("form", err.Error())
		return errs
	}
	for _, fe := range verrs {
		errs.Add(fe.Field(), messageFor(fe, messages))
	}
	return errs
}

func messageFor(fe validator.FieldError, messages fieldMessages) string {
	if m, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return m
	}
	if m, ok := messages[fe.Field()]; ok {
		return m
	}
	if m, ok := tagMessages[fe.Tag()]; ok {
		return m
	}
	return fe.Error()
}
