package http

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// sanitizeInput trims s and drops control characters other than tab and
// newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// requestID reuses a well-formed X-Request-ID header or issues a new one.
func requestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Request-ID")); id != "" && len(id) <= 64 && !strings.ContainsAny(id, " \t\r\n") {
		return id
	}
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
