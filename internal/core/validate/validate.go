// Package validate provides shared validation functions.
package validate

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/hay-kot/criterio"
)

// Required validates a value is non-empty after trimming whitespace.
func Required(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("value is required")
	}
	return nil
}

// BaseURL validates an absolute http or https URL with a host.
func BaseURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

// Email validates a bare email address.
func Email(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return fmt.Errorf("email is required")
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return fmt.Errorf("invalid email address %q", addr)
	}
	return nil
}

// BaseURLField returns a criterio validator for base URLs.
func BaseURLField(field, raw string) error {
	return criterio.Run(field, raw, BaseURL)
}

// Credentials validates a login form.
func Credentials(email, password string) error {
	return criterio.ValidateStruct(
		criterio.Run("email", email, Email),
		criterio.Run("password", password, Required),
	)
}
