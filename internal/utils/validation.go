package utils

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	var messages []string
	for _, err := range ve {
		messages = append(messages, fmt.Sprintf("%s %s", err.Field, err.Message))
	}
	return strings.Join(messages, ", ")
}

var (
	phoneSeparators = regexp.MustCompile(`[\s\-\(\)\.]+`)
	phonePattern    = regexp.MustCompile(`^\+?\d{7,15}$`)
	controlChars    = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	htmlTags        = regexp.MustCompile(`<[^>]*>`)
)

// ValidateStruct validates a struct using reflection and `validate` struct tags.
// Supported rules: required, min, max, oneof, phone.
func ValidateStruct(s interface{}) error {
	var errors ValidationErrors

	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return fmt.Errorf("expected struct, got %s", v.Kind())
	}

	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanInterface() {
			continue
		}

		validateTag := fieldType.Tag.Get("validate")
		if validateTag == "" {
			continue
		}

		name := jsonName(fieldType)
		for _, rule := range strings.Split(validateTag, ",") {
			rule = strings.TrimSpace(rule)
			if err := validateField(name, field, rule); err != nil {
				errors = append(errors, *err)
				// one message per field is enough for the client
				break
			}
		}
	}

	if len(errors) > 0 {
		return errors
	}

	return nil
}

// jsonName returns the field name as the client sees it.
func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" || tag == "-" {
		return f.Name
	}
	if idx := strings.Index(tag, ","); idx >= 0 {
		tag = tag[:idx]
	}
	if tag == "" {
		return f.Name
	}
	return tag
}

// validateField validates a single field against a rule
func validateField(fieldName string, field reflect.Value, rule string) *ValidationError {
	ruleName, ruleValue, _ := strings.Cut(rule, "=")

	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			if ruleName == "required" {
				return &ValidationError{Field: fieldName, Message: "is required"}
			}
			return nil
		}
		field = field.Elem()
	}

	switch ruleName {
	case "required":
		if isEmpty(field) {
			return &ValidationError{
				Field:   fieldName,
				Message: "is required",
			}
		}
	case "min":
		if field.Kind() == reflect.String {
			if len(field.String()) < parseIntOrDefault(ruleValue, 0) {
				return &ValidationError{
					Field:   fieldName,
					Message: fmt.Sprintf("must be at least %s characters", ruleValue),
				}
			}
		}
	case "max":
		if field.Kind() == reflect.String {
			if len(field.String()) > parseIntOrDefault(ruleValue, 0) {
				return &ValidationError{
					Field:   fieldName,
					Message: fmt.Sprintf("must be at most %s characters", ruleValue),
				}
			}
		}
	case "oneof":
		if field.Kind() == reflect.String {
			value := field.String()
			for _, allowed := range strings.Fields(ruleValue) {
				if value == allowed {
					return nil
				}
			}
			return &ValidationError{
				Field:   fieldName,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(strings.Fields(ruleValue), ", ")),
			}
		}
	case "phone":
		if field.Kind() == reflect.String {
			phone := field.String()
			if phone != "" && !IsPhoneNumber(phone) {
				return &ValidationError{
					Field:   fieldName,
					Message: "must be a valid phone number",
				}
			}
		}
	}

	return nil
}

// isEmpty checks if a field is empty
func isEmpty(field reflect.Value) bool {
	switch field.Kind() {
	case reflect.String:
		return strings.TrimSpace(field.String()) == ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return field.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return field.IsNil()
	case reflect.Invalid:
		return true
	default:
		return false
	}
}

// parseIntOrDefault parses an integer or returns default value
func parseIntOrDefault(s string, defaultValue int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return n
}

// NormalizePhoneNumber strips separators so the same number always maps to
// the same stored login handle.
func NormalizePhoneNumber(phone string) string {
	return phoneSeparators.ReplaceAllString(strings.TrimSpace(phone), "")
}

// IsPhoneNumber checks if a string looks like a phone number
func IsPhoneNumber(phone string) bool {
	return phonePattern.MatchString(NormalizePhoneNumber(phone))
}

// SanitizeString removes control characters and markup from free text
func SanitizeString(input string) string {
	sanitized := controlChars.ReplaceAllString(input, "")
	sanitized = htmlTags.ReplaceAllString(sanitized, "")
	return strings.TrimSpace(sanitized)
}
