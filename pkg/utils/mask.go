package utils

import (
	"regexp"
	"strings"
)

var dsnPasswordRegex = regexp.MustCompile(`(:)([^:@/]+)(@)`)

// MaskDSN hides the password part of a connection string.
func MaskDSN(dsn string) string {
	return dsnPasswordRegex.ReplaceAllString(dsn, ":***@")
}

// sensitiveHeaders are never logged in clear.
var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"cookie":        true,
	"x-auth-token":  true,
	"token":         true,
}

// MaskSecret keeps the first four characters of a secret value.
func MaskSecret(v string) string {
	if len(v) <= 4 {
		return "***"
	}
	return v[:4] + "***"
}

// MaskHeaders returns a copy of h safe for logging.
func MaskHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if sensitiveHeaders[strings.ToLower(k)] {
			out[k] = MaskSecret(v)
			continue
		}
		out[k] = v
	}
	return out
}
