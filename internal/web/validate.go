package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/JonMunkholm/coursehub/internal/core"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 64 * 1024

// maxCodeLength bounds a normalized course code.
const maxCodeLength = 32

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New()

	english := en.New()
	uni := ut.New(english, english)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report JSON field names instead of Go struct names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("notblank", notBlank)
	_ = validate.RegisterValidation("coursecode", courseCode)

	noop := func(ut.Translator) error { return nil }
	_ = validate.RegisterTranslation("notblank", translator, noop, func(ut.Translator, validator.FieldError) string {
		return "this field cannot be blank"
	})
	_ = validate.RegisterTranslation("coursecode", translator, noop, func(ut.Translator, validator.FieldError) string {
		return fmt.Sprintf("must be a course code of at most %d characters without commas", maxCodeLength)
	})
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// courseCode accepts codes that normalize to 1..maxCodeLength characters and
// can round-trip through a CSV cell.
func courseCode(fl validator.FieldLevel) bool {
	code := core.NormalizeCode(fl.Field().String())
	return code != "" && len(code) <= maxCodeLength && !strings.ContainsAny(code, ",/")
}

// createCourseRequest is the body of POST /api/course/create/{code}.
type createCourseRequest struct {
	Code string `json:"code" validate:"coursecode"`
	Name string `json:"name" validate:"required,notblank,max=200"`
}

// renameCourseRequest is the body of PATCH /api/admin/course/{code}.
type renameCourseRequest struct {
	Code    string `json:"code" validate:"coursecode"`
	Name    string `json:"name" validate:"required,notblank,max=200"`
	NewCode string `json:"newCode" validate:"omitempty,coursecode"`
}

// decodeJSON reads a size-limited JSON body into dst. Callers validate
// with validateStruct once path parameters are filled in.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		return badRequest("malformed JSON: %v", err)
	}
	return nil
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
