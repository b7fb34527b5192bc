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
	"github.com/stemsi/examsecure/internal/joincode"
	"github.com/stemsi/examsecure/internal/timeutil"
)

// trans is the singleton English translator for validation errors.
var trans ut.Translator

// customTags are the domain tags usable in binding struct tags, with their
// English messages.
var customTags = []struct {
	tag     string
	fn      govalidator.Func
	message string
}{
	{"joincode", validJoinCode, "{0} must be a valid exam code"},
	{"civiltime", validCivilTime, "{0} must be YYYY-MM-DDTHH:MM or RFC3339"},
}

// Setup registers the validator with English translations and the domain tags
// on Gin's binding engine. Call once during application startup.
func Setup() {
	v, ok := binding.Validator.Engine().(*govalidator.Validate)
	if !ok {
		return
	}

	// Use JSON tag name for field names in error messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	for _, ct := range customTags {
		_ = v.RegisterValidation(ct.tag, ct.fn)
		message := ct.message
		_ = v.RegisterTranslation(ct.tag, trans,
			func(u ut.Translator) error { return u.Add(ct.tag, message, true) },
			func(u ut.Translator, fe govalidator.FieldError) string {
				out, _ := u.T(fe.Tag(), fe.Field())
				return out
			},
		)
	}
}

func validJoinCode(fl govalidator.FieldLevel) bool {
	return joincode.Valid(joincode.Normalize(fl.Field().String()))
}

func validCivilTime(fl govalidator.FieldLevel) bool {
	_, err := timeutil.ParseCivil(fl.Field().String())
	return err == nil
}

// TranslateErrors takes a binding/validation error and returns a map of
// field path → human-readable error message. Nested fields keep their path,
// e.g. "questions[1].correct_answer". Anything that is not a validation
// error is reported under "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fieldPath(fe)] = fe.Translate(trans)
		}
		return fields
	}

	fields["detail"] = err.Error()
	return fields
}

// fieldPath drops the root struct name from the error namespace.
func fieldPath(fe govalidator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
