package refresh

import (
	"net/url"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/sowilo/internal/apperr"
)

// ValidateURL checks that raw is an absolute http(s) URL.
func ValidateURL(raw string) error {
	if err := validation.Validate(raw, validation.Required, is.URL); err != nil {
		return &apperr.ValidationError{Field: "url", Reason: err.Error()}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &apperr.ValidationError{Field: "url", Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &apperr.ValidationError{Field: "url", Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &apperr.ValidationError{Field: "url", Reason: "missing host"}
	}
	return nil
}
