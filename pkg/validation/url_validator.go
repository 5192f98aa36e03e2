package validation

import (
	"net/url"
	"path"
	"strings"

	apperrors "github.com/anime-shed/jersey-faceswap-go/internal/errors"
)

// URLValidator checks template references fetched over HTTP
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewURLValidator creates a new URL validator with default settings
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https"},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewURLValidatorWithOptions creates a URL validator with custom options
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	return &URLValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// ValidateTemplateRef validates a template URL before it is fetched
func (v *URLValidator) ValidateTemplateRef(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	if !v.isSchemeAllowed(parsedURL.Scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	if parsedURL.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}

	if len(v.allowedHosts) > 0 && !v.isHostAllowed(parsedURL.Hostname()) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}

	return nil
}

func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

// isHostAllowed returns true if no host restrictions are set
func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if strings.EqualFold(host, allowed) {
			return true
		}
	}
	return false
}

// NameValidator checks template names resolved against a directory or container
type NameValidator struct {
	maxLength int
}

// NewNameValidator creates a name validator
func NewNameValidator() *NameValidator {
	return &NameValidator{maxLength: 1024}
}

// ValidateTemplateRef accepts relative slash-separated names. Full https URLs
// pass through for backends that understand them.
func (v *NameValidator) ValidateTemplateRef(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return apperrors.NewValidationError("template name cannot be empty", nil)
	}
	if len(ref) > v.maxLength {
		return apperrors.NewValidationError("template name too long", nil)
	}
	if strings.HasPrefix(ref, "https://") {
		return nil
	}
	if strings.Contains(ref, "://") {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}
	if strings.ContainsAny(ref, "\\\x00") || strings.HasPrefix(ref, "/") {
		return apperrors.NewValidationError("template name must be a relative path", nil)
	}
	for _, seg := range strings.Split(path.Clean(ref), "/") {
		if seg == ".." {
			return apperrors.NewValidationError("template name must be a relative path", nil)
		}
	}
	return nil
}
