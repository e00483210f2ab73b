// Package security decides which browser origins may call the hub and which
// peers may report a client IP through forwarding headers.
package security

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginChecker validates CORS and WebSocket origins. Localhost origins are
// always allowed.
type OriginChecker struct {
	allowedOrigins []string
}

// NewOriginChecker creates an origin checker. Entries are exact origins
// (https://app.example.com), wildcard subdomains (*.example.com) or "*".
func NewOriginChecker(allowedOrigins []string) *OriginChecker {
	cleaned := make([]string, 0, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			cleaned = append(cleaned, o)
		}
	}
	return &OriginChecker{allowedOrigins: cleaned}
}

// CheckOrigin validates the Origin header of r. Requests without one are
// same-origin or non-browser and are allowed.
func (oc *OriginChecker) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return oc.Allowed(origin)
}

// Allowed reports whether origin may access the hub.
func (oc *OriginChecker) Allowed(origin string) bool {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}

	if isLocalhost(parsed.Hostname()) {
		return true
	}

	for _, allowed := range oc.allowedOrigins {
		if matchOrigin(parsed, origin, allowed) {
			return true
		}
	}
	return false
}

// isLocalhost checks if a host is localhost.
func isLocalhost(host string) bool {
	return host == "localhost" ||
		host == "127.0.0.1" ||
		host == "::1" ||
		strings.HasSuffix(host, ".localhost")
}

// matchOrigin checks if an origin matches an allowed pattern.
func matchOrigin(parsed *url.URL, origin, allowed string) bool {
	if allowed == "*" || origin == allowed {
		return true
	}

	// *.example.com matches any subdomain but not example.com itself.
	if strings.HasPrefix(allowed, "*.") {
		return strings.HasSuffix(parsed.Hostname(), allowed[1:])
	}

	return false
}
