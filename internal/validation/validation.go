// Package validation provides input validation helpers for the API layer.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20

// MaxIdentityLength bounds opaque identity keys.
const MaxIdentityLength = 128

// MaxStringLength is the maximum length for free-form string fields
const MaxStringLength = 512

// identityRegex keeps identities to printable, URL-safe characters.
var identityRegex = regexp.MustCompile(`^[A-Za-z0-9._:@-]+$`)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidIdentity checks that an identity key is usable as a ledger key.
func IsValidIdentity(id string) bool {
	if id == "" || len(id) > MaxIdentityLength {
		return false
	}
	return identityRegex.MatchString(id)
}

// IsValidAmount checks that a minor-unit amount is positive.
func IsValidAmount(amount int64) bool {
	return amount > 0
}

// SanitizeString trims whitespace, strips null bytes, and caps length.
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return strings.ReplaceAll(s, "\x00", "")
}
