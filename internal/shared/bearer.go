package shared

import (
	"net/http"
	"strings"
)

// BearerToken extracts the bearer token from the Authorization header.
// Returns "" when the header is absent or malformed.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
