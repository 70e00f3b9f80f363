package dto

import (
	"html"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	safeStringRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)
	seriesCodeRe = regexp.MustCompile(`^[A-Z0-9]{1,8}$`)
)

// mediaSchemes are the URI schemes accepted for series base paths.
var mediaSchemes = map[string]bool{"http": true, "https": true, "ipfs": true, "ar": true}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("safe_id", validateSafeID)
		_ = v.RegisterValidation("series_code", validateSeriesCode)
		_ = v.RegisterValidation("media_uri", validateMediaURI)
	}
}

// validateSafeID allows alphanumeric, underscore, dash, and dot.
func validateSafeID(fl validator.FieldLevel) bool {
	return safeStringRe.MatchString(fl.Field().String())
}

// validateSeriesCode allows short upper-case codes such as "AA".
func validateSeriesCode(fl validator.FieldLevel) bool {
	return seriesCodeRe.MatchString(fl.Field().String())
}

// validateMediaURI accepts http, https, ipfs and ar URIs.
func validateMediaURI(fl validator.FieldLevel) bool {
	return isMediaURI(fl.Field().String())
}

func isMediaURI(raw string) bool {
	if raw == "" {
		return true // optional field; use "required" tag to enforce presence
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return mediaSchemes[u.Scheme]
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
