// internal/app/system/inputval/inputval.go
//
// Package inputval validates request payloads.
//
// Struct fields declare their rules in a `validate` tag and a human label in
// a `label` tag:
//
//	type registerInput struct {
//	    Name  string `json:"name" validate:"required,min=2,max=100" label:"Name"`
//	    Email string `json:"email" validate:"required,email" label:"Email"`
//	}
//
// Empty optional fields and nil pointers skip every rule except required.
package inputval

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dalemusser/teamhub/internal/app/system/apperr"
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string // json name
	Label   string
	Message string
}

// Result collects the field errors of one Validate call.
type Result struct {
	Errors []FieldError
}

// HasErrors reports whether any rule failed.
func (r *Result) HasErrors() bool { return len(r.Errors) > 0 }

// First returns the first error message, or "".
func (r *Result) First() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// All joins every message with "; ".
func (r *Result) All() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// Fields maps json field name to its first message.
func (r *Result) Fields() map[string]string {
	m := make(map[string]string, len(r.Errors))
	for _, e := range r.Errors {
		if _, seen := m[e.Field]; !seen {
			m[e.Field] = e.Message
		}
	}
	return m
}

// Err returns nil or an apperr validation error carrying the field map.
func (r *Result) Err() error {
	if !r.HasErrors() {
		return nil
	}
	return apperr.Validation(r.First(), r.Fields())
}

// Validate checks every tagged field of the struct v (or pointer to struct).
func Validate(v any) *Result {
	res := &Result{}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return res
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return res
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		tag := sf.Tag.Get("validate")
		if tag == "" || !sf.IsExported() {
			continue
		}
		label := sf.Tag.Get("label")
		if label == "" {
			label = sf.Name
		}
		field := jsonName(sf)

		if msg := checkField(rv.Field(i), strings.Split(tag, ","), label); msg != "" {
			res.Errors = append(res.Errors, FieldError{Field: field, Label: label, Message: msg})
		}
	}
	return res
}

func jsonName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return sf.Name
	}
	return name
}

// checkField returns the first failing rule's message, or "".
func checkField(fv reflect.Value, rules []string, label string) string {
	required := false
	for _, r := range rules {
		if r == "required" {
			required = true
		}
	}

	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			if required {
				return label + " is required."
			}
			return ""
		}
		fv = fv.Elem()
	}

	if isEmpty(fv) {
		if required {
			return label + " is required."
		}
		return ""
	}

	for _, rule := range rules {
		name, arg, _ := strings.Cut(rule, "=")
		if msg := applyRule(fv, name, arg, label); msg != "" {
			return msg
		}
	}
	return ""
}

func isEmpty(fv reflect.Value) bool {
	switch fv.Kind() {
	case reflect.String:
		return strings.TrimSpace(fv.String()) == ""
	case reflect.Slice, reflect.Map:
		return fv.Len() == 0
	default:
		return false
	}
}

func applyRule(fv reflect.Value, name, arg, label string) string {
	switch name {
	case "required", "":
		return ""
	case "min", "max":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return ""
		}
		return checkBound(fv, name, n, label)
	case "email":
		if !IsValidEmail(fv.String()) {
			return "A valid email address is required."
		}
	case "objectid":
		if !IsValidObjectID(fv.String()) {
			return label + " must be a valid id."
		}
	case "httpurl":
		if !IsValidHTTPURL(fv.String()) {
			return label + " must be a valid http(s) URL."
		}
	case "rfc3339":
		if _, err := time.Parse(time.RFC3339, strings.TrimSpace(fv.String())); err != nil {
			return label + " must be an RFC 3339 timestamp."
		}
	case "oneof":
		allowed := strings.Fields(arg)
		got := fmt.Sprint(fv.Interface())
		for _, a := range allowed {
			if got == a {
				return ""
			}
		}
		return fmt.Sprintf("%s must be one of: %s.", label, strings.Join(allowed, ", "))
	}
	return ""
}

func checkBound(fv reflect.Value, name string, n int, label string) string {
	switch fv.Kind() {
	case reflect.String:
		l := utf8.RuneCountInString(strings.TrimSpace(fv.String()))
		if name == "min" && l < n {
			return fmt.Sprintf("%s must be at least %d characters.", label, n)
		}
		if name == "max" && l > n {
			return fmt.Sprintf("%s must be at most %d characters.", label, n)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v := fv.Int()
		if name == "min" && v < int64(n) {
			return fmt.Sprintf("%s must be at least %d.", label, n)
		}
		if name == "max" && v > int64(n) {
			return fmt.Sprintf("%s must be at most %d.", label, n)
		}
	}
	return ""
}
