package http

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/yanqian/saas-auth/internal/domain/auth"
)

var registerValidators sync.Once

// setupValidator adds the custom binding rules to gin's shared validator and
// reports field errors by their JSON names.
func setupValidator() {
	registerValidators.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return auth.UsernamePattern.MatchString(fl.Field().String())
		})
	})
}

var fieldMessages = map[string]string{
	"required": "%s is required",
	"email":    "%s must be a valid email address",
	"username": "%s must be 3-30 characters of letters, digits or underscore",
	"min":      "%s must be at least %s characters long",
	"max":      "%s must be no longer than %s characters",
}

// validationMessage renders the first failing field as a client message.
func validationMessage(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "invalid request"
	}
	e := errs[0]
	msg, ok := fieldMessages[e.Tag()]
	if !ok {
		return fmt.Sprintf("%s is invalid", e.Field())
	}
	if strings.Count(msg, "%s") == 2 {
		return fmt.Sprintf(msg, e.Field(), e.Param())
	}
	return fmt.Sprintf(msg, e.Field())
}
