// Package validator checks edit form values against the rule strings declared on entity
// schemas and renders English messages for the first failing rule.
package validator

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
)

// Message keys beyond plain validator tags.
const (
	KeyRequired    = "required"
	KeyDiffers     = "nefield"
	KeyOneOf       = "oneof"
	KeyInvalid     = "invalid"
	keyMinString   = "min-string"
	keyMaxString   = "max-string"
	keyMinNumber   = "min-number"
	keyMaxNumber   = "max-number"
	keyMinItems    = "min-items"
	keyMaxItems    = "max-items"
	keyLenString   = "len-string"
	KeyNumber      = "number"
	KeyWholeNumber = "whole-number"
	keyCourseCode  = "course_code"
)

var (
	courseCodeRegex  = regexp.MustCompile(`^[A-Z]{2,4}-\d{3}$`)
	deptCodeRegex    = regexp.MustCompile(`^[A-Z]{2,6}$`)
	programCodeRegex = regexp.MustCompile(`^[A-Z]{2,6}(-[A-Z]{2,6})?$`)
	phoneRegex       = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	regNoRegex       = regexp.MustCompile(`^[A-Z0-9-]{4,20}$`)
)

var customRules = map[string]*regexp.Regexp{
	"course_code":  courseCodeRegex,
	"dept_code":    deptCodeRegex,
	"program_code": programCodeRegex,
	"phone":        phoneRegex,
	"reg_no":       regNoRegex,
}

var messages = map[string]string{
	KeyRequired:    "{0} is required",
	KeyDiffers:     "{0} must differ from {1}",
	KeyOneOf:       "{0} must be one of: {1}",
	KeyInvalid:     "{0} is invalid",
	keyMinString:   "{0} must be at least {1} characters",
	keyMaxString:   "{0} must be at most {1} characters",
	keyLenString:   "{0} must be exactly {1} characters",
	keyMinNumber:   "{0} must be {1} or greater",
	keyMaxNumber:   "{0} must be {1} or less",
	keyMinItems:    "{0} needs at least {1} selections",
	keyMaxItems:    "{0} allows at most {1} selections",
	KeyNumber:      "{0} must be a number",
	KeyWholeNumber: "{0} must be a whole number",
	"email":        "{0} must be a valid email address",
	"datetime":     "{0} must be a date in the format YYYY-MM-DD",
	keyCourseCode:  "{0} must look like CS-101",
	"dept_code":    "{0} must be 2 to 6 uppercase letters",
	"program_code": "{0} must look like BSC or BSC-CS",
	"phone":        "{0} must be a phone number of 7 to 15 digits",
	"reg_no":       "{0} may only contain uppercase letters, digits and dashes",
}

// Engine validates single values against tag rules.
type Engine struct {
	validate *govalidator.Validate
	trans    ut.Translator
}

// New builds an engine with the console's custom rules and messages registered.
func New() *Engine {
	validate := govalidator.New()
	for tag, re := range customRules {
		re := re
		_ = validate.RegisterValidation(tag, func(fl govalidator.FieldLevel) bool {
			return re.MatchString(fl.Field().String())
		})
	}

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	for key, text := range messages {
		_ = trans.Add(key, text, true)
	}

	return &Engine{validate: validate, trans: trans}
}

// Check validates value against rules. Empty values only fail when the rules say required.
// The returned message is empty when the value is valid.
func (e *Engine) Check(label string, value any, rules string) (string, bool) {
	rules = strings.TrimSpace(rules)
	if rules == "" {
		return "", true
	}
	required := hasRule(rules, "required")
	if IsEmpty(value) {
		if required {
			return e.Message(KeyRequired, label), false
		}
		return "", true
	}

	remaining := withoutRule(rules, "required")
	if remaining == "" {
		return "", true
	}
	err := e.validate.Var(value, remaining)
	if err == nil {
		return "", true
	}
	fieldErrors, ok := err.(govalidator.ValidationErrors)
	if !ok || len(fieldErrors) == 0 {
		return e.Message(KeyInvalid, label), false
	}
	fe := fieldErrors[0]
	return e.Message(messageKey(fe.Tag(), fe.Kind()), label, fe.Param()), false
}

// Message renders the message registered under key.
func (e *Engine) Message(key, label string, params ...string) string {
	args := append([]string{label}, params...)
	msg, err := e.trans.T(key, args...)
	if err != nil || msg == "" {
		msg, _ = e.trans.T(KeyInvalid, label)
	}
	return msg
}

// IsEmpty reports whether v counts as not filled in.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val) == ""
	case []string:
		return len(val) == 0
	case []any:
		return len(val) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer:
		return rv.IsNil()
	}
	return false
}

func messageKey(tag string, kind reflect.Kind) string {
	switch tag {
	case "min", "gte", "gt":
		return sized("min", kind)
	case "max", "lte", "lt":
		return sized("max", kind)
	case "len":
		return keyLenString
	case "number", "numeric":
		return KeyNumber
	}
	if _, ok := messages[tag]; ok {
		return tag
	}
	return KeyInvalid
}

func sized(prefix string, kind reflect.Kind) string {
	switch kind {
	case reflect.String:
		return prefix + "-string"
	case reflect.Slice, reflect.Array, reflect.Map:
		return prefix + "-items"
	default:
		return prefix + "-number"
	}
}

func hasRule(rules, name string) bool {
	for _, r := range strings.Split(rules, ",") {
		if strings.TrimSpace(r) == name {
			return true
		}
	}
	return false
}

func withoutRule(rules, name string) string {
	parts := strings.Split(rules, ",")
	kept := parts[:0]
	for _, r := range parts {
		r = strings.TrimSpace(r)
		if r == "" || r == name {
			continue
		}
		kept = append(kept, r)
	}
	return strings.Join(kept, ",")
}
