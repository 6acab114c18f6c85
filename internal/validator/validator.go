package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// trans is the singleton English translator for validation errors.
var trans ut.Translator

// accessCodeCharset mirrors the generator's alphabet: uppercase letters
// and digits minus the glyphs students confuse when reading a code off a
// projector (0/O, 1/I).
const accessCodeCharset = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

func isAccessCode(fl govalidator.FieldLevel) bool {
	code := fl.Field().String()
	for _, r := range code {
		if !strings.ContainsRune(accessCodeCharset, r) {
			return false
		}
	}
	return true
}

// Setup registers the validator with English translations on Gin's binding
// engine, plus the domain validations request models use. Call once during
// application startup.
func Setup() {
	v, ok := binding.Validator.Engine().(*govalidator.Validate)
	if !ok {
		return
	}

	// Error messages should name fields by their JSON tag, not the Go
	// struct field.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("access_code", isAccessCode)

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ = uni.GetTranslator("en")
	en_translations.RegisterDefaultTranslations(v, trans)

	v.RegisterTranslation("access_code", trans,
		func(ut ut.Translator) error {
			return ut.Add("access_code", "{0} may only contain digits 2-9 and uppercase letters excluding O and I", true)
		},
		func(ut ut.Translator, fe govalidator.FieldError) string {
			t, _ := ut.T("access_code", fe.Field())
			return t
		},
	)
}

// TranslateErrors takes a binding/validation error and returns a map from
// field name to a human-readable message. If the error is not a validation
// error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(trans)
		}
		return fields
	}

	// Not a validation error (e.g., JSON syntax error).
	fields["detail"] = err.Error()
	return fields
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
